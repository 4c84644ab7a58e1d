// Package server defines the recoverable error kinds surfaced to clients
// through event acknowledgments.
package server

import "errors"

// Sentinel errors for the room and messaging operations. Every one of these
// is local to a single event; none is fatal to the connection or the process.
// The error strings are the exact texts sent back in failure acknowledgments.
var (
	// ErrMissingCode indicates a join attempt without a room code.
	ErrMissingCode = errors.New("Missing code")

	// ErrRoomFull indicates a join attempt on a room already at capacity.
	ErrRoomFull = errors.New("Room full")

	// ErrNotInRoom indicates a message or leave attempt while not joined to any room.
	ErrNotInRoom = errors.New("Not in room")

	// ErrRateLimited indicates a message attempt exceeding the burst budget
	// within the trailing rate-limit window.
	ErrRateLimited = errors.New("Rate limit exceeded")

	// ErrEmptyMessage indicates message text that is empty after truncation.
	ErrEmptyMessage = errors.New("Empty message")
)
