package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newConnPair upgrades one WebSocket connection through a throwaway server and
// returns both ends of it.
func newConnPair(t *testing.T) (serverConn, clientConn *websocket.Conn) {
	t.Helper()

	accepted := make(chan *websocket.Conn, 1)
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepted <- conn
	}))
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	clientConn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if resp != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = clientConn.Close() })

	select {
	case serverConn = <-accepted:
	case <-time.After(time.Second):
		t.Fatal("Server side of the connection never arrived")
	}
	t.Cleanup(func() { _ = serverConn.Close() })

	return serverConn, clientConn
}

func newBareClient(conn *websocket.Conn, sendCapacity int) *Client {
	registry := NewRoomRegistry(10)
	limiter := newRateLimiter(5, 10*time.Second)
	return &Client{
		conn:    conn,
		send:    make(chan []byte, sendCapacity),
		session: NewSession("conn-a", registry, limiter, &fakeEmitter{}),
	}
}

func TestQueueAck_QueuesEnvelope(t *testing.T) {
	c := newBareClient(nil, 1)

	c.queueAck(7, AckResult{OK: false, Error: "Room full"})

	var env struct {
		Event string    `json:"event"`
		Seq   int64     `json:"seq"`
		Data  AckResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(<-c.send, &env))
	assert.Equal(t, EventAck, env.Event)
	assert.Equal(t, int64(7), env.Seq)
	assert.False(t, env.Data.OK)
	assert.Equal(t, "Room full", env.Data.Error)
}

func TestQueueAck_EvictsConnectionWithFullBuffer(t *testing.T) {
	serverConn, clientConn := newConnPair(t)

	// Zero-capacity send channel with no write pump: the buffer is full by
	// construction, so the ack cannot be queued and the connection must go.
	c := newBareClient(serverConn, 0)

	c.queueAck(1, AckResult{OK: true})

	require.NoError(t, clientConn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := clientConn.ReadMessage()
	assert.Error(t, err, "an unresponsive connection must be dropped rather than lose an ack")
}
