// Package testhelpers provides common utilities for testing the QuickRoom
// relay over real WebSocket connections.
//
// The central type is RelayConn, a test-facing client that speaks the event
// envelope protocol: it correlates acknowledgments by sequence number and
// buffers server-pushed events so tests can assert on them in any order.
package testhelpers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultWait bounds how long helpers wait for an expected frame.
const DefaultWait = 3 * time.Second

// CreateTestServer creates a test HTTP server with the given handler.
// It returns a running httptest.Server that should be closed after use.
func CreateTestServer(handler http.Handler) *httptest.Server {
	return httptest.NewServer(handler)
}

// Envelope mirrors the server's outbound event frame.
type Envelope struct {
	Event string          `json:"event"`
	Seq   int64           `json:"seq"`
	Data  json.RawMessage `json:"data"`
}

// ChatMsg mirrors the broadcast message payload.
type ChatMsg struct {
	From        string `json:"from"`
	Text        string `json:"text"`
	TS          int64  `json:"ts"`
	AvatarColor string `json:"avatarColor"`
}

// AckData mirrors the acknowledgment payload.
type AckData struct {
	OK    bool     `json:"ok"`
	Room  string   `json:"room"`
	Count int      `json:"count"`
	Msg   *ChatMsg `json:"msg"`
	Error string   `json:"error"`
}

// RoomUsers mirrors the member-count payload.
type RoomUsers struct {
	Count int `json:"count"`
}

// RelayConn wraps a WebSocket connection to the relay. A background goroutine
// drains inbound frames (splitting coalesced newline-separated envelopes)
// into a channel; Wait-style helpers consume from it with a timeout.
type RelayConn struct {
	t       *testing.T
	ws      *websocket.Conn
	seq     int64
	events  chan Envelope
	pending []Envelope
}

// Dial connects to the relay's WebSocket endpoint and starts the read loop.
// The connection is closed automatically when the test finishes.
func Dial(t *testing.T, wsURL string) *RelayConn {
	t.Helper()

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	headers := http.Header{}
	headers.Set("Origin", "http://localhost:8080")

	ws, resp, err := dialer.Dial(wsURL, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Failed to dial %s: %v", wsURL, err)
	}

	rc := &RelayConn{
		t:      t,
		ws:     ws,
		events: make(chan Envelope, 64),
	}
	go rc.readLoop()

	t.Cleanup(func() { _ = ws.Close() })
	return rc
}

// TryDial attempts a connection without failing the test, for asserting that
// handshakes are refused.
func TryDial(wsURL, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	ws, resp, err := dialer.Dial(wsURL, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return ws, err
}

func (c *RelayConn) readLoop() {
	defer close(c.events)

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}

		for _, line := range bytes.Split(raw, []byte{'\n'}) {
			if len(line) == 0 {
				continue
			}
			var env Envelope
			if err := json.Unmarshal(line, &env); err != nil {
				continue
			}
			c.events <- env
		}
	}
}

// Close performs a graceful WebSocket close handshake.
func (c *RelayConn) Close() {
	_ = c.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = c.ws.Close()
}

// CloseAbruptly drops the underlying connection without a close frame,
// simulating a client that vanished.
func (c *RelayConn) CloseAbruptly() {
	_ = c.ws.Close()
}

// Send writes one event frame and returns the sequence number assigned to it.
func (c *RelayConn) Send(event string, payload any) int64 {
	c.t.Helper()

	c.seq++
	frame := map[string]any{"event": event, "seq": c.seq}
	if payload != nil {
		frame["payload"] = payload
	}
	if err := c.ws.WriteJSON(frame); err != nil {
		c.t.Fatalf("Failed to send %s: %v", event, err)
	}
	return c.seq
}

// SendRaw writes an arbitrary text frame, for exercising malformed input.
func (c *RelayConn) SendRaw(data []byte) {
	c.t.Helper()

	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		c.t.Fatalf("Failed to send raw frame: %v", err)
	}
}

// WaitFor returns the first buffered or newly arriving envelope matching the
// predicate, or ok=false if none arrives within the timeout.
func (c *RelayConn) WaitFor(timeout time.Duration, match func(Envelope) bool) (Envelope, bool) {
	for i, env := range c.pending {
		if match(env) {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return env, true
		}
	}

	deadline := time.After(timeout)
	for {
		select {
		case env, open := <-c.events:
			if !open {
				return Envelope{}, false
			}
			if match(env) {
				return env, true
			}
			c.pending = append(c.pending, env)
		case <-deadline:
			return Envelope{}, false
		}
	}
}

// ExpectAck waits for the acknowledgment of the given sequence number and
// decodes its payload.
func (c *RelayConn) ExpectAck(seq int64) AckData {
	c.t.Helper()

	env, found := c.WaitFor(DefaultWait, func(e Envelope) bool {
		return e.Event == "ack" && e.Seq == seq
	})
	if !found {
		c.t.Fatalf("Timed out waiting for ack of seq %d", seq)
	}

	var ack AckData
	if err := json.Unmarshal(env.Data, &ack); err != nil {
		c.t.Fatalf("Failed to decode ack data: %v", err)
	}
	return ack
}

// ExpectOKAck waits for the acknowledgment and fails the test unless it
// reports success.
func (c *RelayConn) ExpectOKAck(seq int64) AckData {
	c.t.Helper()

	ack := c.ExpectAck(seq)
	if !ack.OK {
		c.t.Fatalf("Expected successful ack for seq %d, got error %q", seq, ack.Error)
	}
	return ack
}

// ExpectRoomUsers waits for a roomUsers event carrying the given count.
func (c *RelayConn) ExpectRoomUsers(count int) {
	c.t.Helper()

	_, found := c.WaitFor(DefaultWait, func(e Envelope) bool {
		if e.Event != "roomUsers" {
			return false
		}
		var data RoomUsers
		return json.Unmarshal(e.Data, &data) == nil && data.Count == count
	})
	if !found {
		c.t.Fatalf("Timed out waiting for roomUsers count=%d", count)
	}
}

// ExpectSystemMessage waits for a systemMessage event and returns its text.
func (c *RelayConn) ExpectSystemMessage() string {
	c.t.Helper()

	env, found := c.WaitFor(DefaultWait, func(e Envelope) bool {
		return e.Event == "systemMessage"
	})
	if !found {
		c.t.Fatal("Timed out waiting for systemMessage")
	}

	var text string
	if err := json.Unmarshal(env.Data, &text); err != nil {
		c.t.Fatalf("Failed to decode systemMessage data: %v", err)
	}
	return text
}

// ExpectChatMessage waits for a message event and decodes it.
func (c *RelayConn) ExpectChatMessage() ChatMsg {
	c.t.Helper()

	env, found := c.WaitFor(DefaultWait, func(e Envelope) bool {
		return e.Event == "message"
	})
	if !found {
		c.t.Fatal("Timed out waiting for message event")
	}

	var msg ChatMsg
	if err := json.Unmarshal(env.Data, &msg); err != nil {
		c.t.Fatalf("Failed to decode message data: %v", err)
	}
	return msg
}

// ExpectNoEvent asserts that no envelope with the given event name arrives
// within the wait period.
func (c *RelayConn) ExpectNoEvent(event string, within time.Duration) {
	c.t.Helper()

	env, found := c.WaitFor(within, func(e Envelope) bool {
		return e.Event == event
	})
	if found {
		c.t.Fatalf("Expected no %q event, got one with data %s", event, string(env.Data))
	}
}
