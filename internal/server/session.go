// Package server implements the per-connection session state machine that
// turns inbound client events into registry mutations, broadcasts, and
// acknowledgments.
package server

import (
	"encoding/json"
	"log"
	"math/rand"
	"strings"
	"time"
)

// avatarPalette is the fixed set of display colors assigned to connections.
var avatarPalette = []string{
	"#f44336", "#e91e63", "#9c27b0", "#673ab7", "#3f51b5",
	"#2196f3", "#009688", "#4caf50", "#ff9800", "#795548",
}

// roomEmitter is the slice of the transport a session needs for fan-out.
// The hub implements it; tests substitute a recording fake.
type roomEmitter interface {
	emitToRoom(room, event string, data any)
	emitToRoomExcept(room, exceptID, event string, data any)
}

// Session holds the fixed-shape per-connection state: the opaque connection
// ID, the display color assigned at connect time, and the code of the room
// the connection is currently in ("" while unjoined). Events for one session
// are dispatched serially from its connection's read pump, so Session methods
// need no internal locking; all cross-connection coordination happens inside
// the registry and the rate limiter.
type Session struct {
	id          string
	avatarColor string
	room        string

	registry *RoomRegistry
	limiter  *rateLimiter
	emitter  roomEmitter

	maxMessageLength int
	now              func() time.Time
}

// NewSession creates a session for a freshly accepted connection, assigning
// it a random avatar color from the fixed palette.
func NewSession(id string, registry *RoomRegistry, limiter *rateLimiter, emitter roomEmitter) *Session {
	cfg := currentConfig()
	return &Session{
		id:               id,
		avatarColor:      avatarPalette[rand.Intn(len(avatarPalette))],
		registry:         registry,
		limiter:          limiter,
		emitter:          emitter,
		maxMessageLength: cfg.MaxMessageLength,
		now:              time.Now,
	}
}

// ID returns the opaque connection identifier of this session.
func (s *Session) ID() string {
	return s.id
}

// Room returns the code of the room the session is currently in, or "" while
// unjoined.
func (s *Session) Room() string {
	return s.room
}

// HandleEvent dispatches one inbound event and returns the acknowledgment for
// it. Any panic raised while handling is recovered here and converted into a
// generic failure acknowledgment, leaving the session usable for subsequent
// events.
func (s *Session) HandleEvent(event string, payload json.RawMessage) (result AckResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic handling %q for %s: %v", event, s.id, r)
			result = AckResult{OK: false, Error: "Server error handling " + event}
		}
	}()

	switch event {
	case EventCreateRoom:
		return s.createRoom()
	case EventJoinRoom:
		return s.joinRoom(decodeRoomCode(payload))
	case EventMessage:
		var p MessagePayload
		if len(payload) > 0 {
			// A malformed payload is treated as empty text and rejected below.
			_ = json.Unmarshal(payload, &p)
		}
		return s.message(p.Text)
	case EventLeaveRoom:
		return s.leaveRoom()
	default:
		return AckResult{OK: false, Error: "Unknown event: " + event}
	}
}

// decodeRoomCode accepts the join payload either as {"room":"ABC123"} or as a
// bare JSON string, matching what existing clients send.
func decodeRoomCode(payload json.RawMessage) string {
	if len(payload) == 0 {
		return ""
	}

	var p JoinPayload
	if err := json.Unmarshal(payload, &p); err == nil && p.Room != "" {
		return p.Room
	}

	var code string
	if err := json.Unmarshal(payload, &code); err == nil {
		return code
	}
	return ""
}

func (s *Session) createRoom() AckResult {
	// Creating while already in a room implicitly leaves the old one first,
	// keeping the at-most-one-membership invariant.
	s.leaveCurrentRoom(" left")

	code := s.registry.CreateRoom()
	count, err := s.registry.Join(code, s.id)
	if err != nil {
		return ackError(err)
	}

	s.room = code
	s.emitter.emitToRoom(code, EventRoomUsers, RoomUsersData{Count: count})
	return AckResult{OK: true, Room: code, Count: count}
}

func (s *Session) joinRoom(code string) AckResult {
	code = NormalizeCode(code)
	if code == "" {
		return ackError(ErrMissingCode)
	}

	s.leaveCurrentRoom(" left")

	count, err := s.registry.Join(code, s.id)
	if err != nil {
		return ackError(err)
	}

	s.room = code
	s.emitter.emitToRoom(code, EventRoomUsers, RoomUsersData{Count: count})
	s.emitter.emitToRoom(code, EventSystemMessage, s.id+" joined")
	return AckResult{OK: true, Room: code, Count: count}
}

func (s *Session) message(text string) AckResult {
	if s.room == "" {
		return ackError(ErrNotInRoom)
	}

	if !s.limiter.allow(s.id) {
		return ackError(ErrRateLimited)
	}

	text = truncateRunes(text, s.maxMessageLength)
	if strings.TrimSpace(text) == "" {
		return ackError(ErrEmptyMessage)
	}

	msg := &ChatMessage{
		From:        s.id,
		Text:        text,
		TS:          s.now().UnixMilli(),
		AvatarColor: s.avatarColor,
	}

	// The sender sees its own message only through the acknowledgment; the
	// broadcast goes to everyone else in the room.
	s.emitter.emitToRoomExcept(s.room, s.id, EventMessage, msg)
	return AckResult{OK: true, Msg: msg}
}

func (s *Session) leaveRoom() AckResult {
	if s.room == "" {
		return ackError(ErrNotInRoom)
	}

	s.leaveCurrentRoom(" left")
	return AckResult{OK: true}
}

// Disconnect runs the terminal cleanup for a dropped connection: leave the
// current room, notify the remaining members, and release rate-limiter state.
// Callers must ensure it runs exactly once per connection.
func (s *Session) Disconnect() {
	s.leaveCurrentRoom(" disconnected")
	s.limiter.release(s.id)
}

// leaveCurrentRoom removes the session from its room, if any, and broadcasts
// the updated member count plus a system notice to the remaining members.
// No-op while unjoined.
func (s *Session) leaveCurrentRoom(noticeSuffix string) {
	if s.room == "" {
		return
	}

	room := s.room
	s.room = ""

	count := s.registry.Leave(room, s.id)
	if count > 0 {
		s.emitter.emitToRoom(room, EventRoomUsers, RoomUsersData{Count: count})
		s.emitter.emitToRoom(room, EventSystemMessage, s.id+noticeSuffix)
	}
}

// truncateRunes cuts text to at most max runes without splitting a character.
func truncateRunes(text string, max int) string {
	if max <= 0 {
		return text
	}

	runes := 0
	for i := range text {
		if runes == max {
			return text[:i]
		}
		runes++
	}
	return text
}
