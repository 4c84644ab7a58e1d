// Package server implements the QuickRoom relay: an ephemeral, room-based
// chat service over WebSocket.
//
// Clients create or join short-lived rooms identified by 6-character codes
// and exchange text messages fanned out to the other room members. State
// lives only in process memory: the RoomRegistry owns the room-to-members
// mapping, each Session owns its connection's membership and display
// attributes, and the Hub maps connection IDs to live transports for
// delivery. Nothing survives a disconnect or a restart.
//
// The implementation is organized into specialized files for configuration,
// the registry, rate limiting, sessions, the hub, clients, routing, and HTTP
// handlers to keep the codebase maintainable and testable as the project
// grows.
package server
