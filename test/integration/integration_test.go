// Package integration contains end-to-end tests that drive the QuickRoom
// relay through real WebSocket connections.
//
// These tests start the actual router and hub, connect clients with the
// gorilla dialer, and assert on the acknowledgments and events crossing the
// wire. They are intentionally black-box: only the registry is inspected
// directly, to verify room garbage collection.
package integration

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/quickroom/quickroom/internal/server"
)

// startRelay boots a hub and HTTP server with the given configuration (nil
// for defaults) and returns the hub plus the WebSocket URL. The default
// allow-list accepts the origin the Dial helper sends. Everything is torn
// down when the test finishes.
func startRelay(t *testing.T, cfg *server.Config) (*server.Hub, string) {
	t.Helper()

	if cfg == nil {
		cfg = server.NewConfig()
	}
	server.SetConfig(cfg)
	t.Cleanup(func() { server.SetConfig(nil) })

	hub := server.NewHub()
	go hub.Run()
	t.Cleanup(func() { _ = hub.Shutdown(5 * time.Second) })

	ts := httptest.NewServer(server.NewRouter(hub))
	t.Cleanup(ts.Close)

	return hub, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

// waitForRoomGone polls the registry until the room disappears or the
// deadline passes.
func waitForRoomGone(t *testing.T, hub *server.Hub, code string) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if !hub.Registry().RoomExists(code) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Room %s is still registered after its last member left", code)
}
