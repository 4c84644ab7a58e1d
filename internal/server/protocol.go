// Package server defines the JSON event envelope and payload types exchanged
// with clients, plus shared close-error helpers.
package server

import (
	"encoding/json"
	"strings"
)

// Client-to-server event names.
const (
	EventCreateRoom = "createRoom"
	EventJoinRoom   = "joinRoom"
	EventMessage    = "message"
	EventLeaveRoom  = "leaveRoom"
)

// Server-to-client event names. EventMessage is shared by both directions.
const (
	EventAck           = "ack"
	EventRoomUsers     = "roomUsers"
	EventSystemMessage = "systemMessage"
)

// ClientEnvelope is an inbound event frame. Seq correlates the eventual
// acknowledgment with the request; Payload is decoded per event type.
type ClientEnvelope struct {
	Event   string          `json:"event"`
	Seq     int64           `json:"seq,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerEnvelope is an outbound event frame. Seq is set only on acks, where
// it echoes the inbound sequence number.
type ServerEnvelope struct {
	Event string `json:"event"`
	Seq   int64  `json:"seq,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// JoinPayload carries the room code for a joinRoom event.
type JoinPayload struct {
	Room string `json:"room"`
}

// MessagePayload carries the text of an inbound message event.
type MessagePayload struct {
	Text string `json:"text"`
}

// ChatMessage is the broadcast form of a relayed message. The same value is
// delivered to the other room members and echoed back to the sender inside
// the success acknowledgment.
type ChatMessage struct {
	From        string `json:"from"`
	Text        string `json:"text"`
	TS          int64  `json:"ts"`
	AvatarColor string `json:"avatarColor"`
}

// RoomUsersData carries the member count broadcast after membership changes.
type RoomUsersData struct {
	Count int `json:"count"`
}

// AckResult is the acknowledgment sent in response to every inbound event
// that carries a sequence number: either success with data or failure with a
// human-readable error string.
type AckResult struct {
	OK    bool         `json:"ok"`
	Room  string       `json:"room,omitempty"`
	Count int          `json:"count,omitempty"`
	Msg   *ChatMessage `json:"msg,omitempty"`
	Error string       `json:"error,omitempty"`
}

func ackError(err error) AckResult {
	return AckResult{OK: false, Error: err.Error()}
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
