// Package server coordinates connection registration, room fan-out, and
// connection cleanup for the QuickRoom relay via the Hub type.
package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// roomBroadcast is one fan-out request: deliver payload to every current
// member of room, skipping excludeID when set.
type roomBroadcast struct {
	room      string
	excludeID string
	payload   []byte
}

// Hub owns the live connection table and performs room fan-out. It maintains
// client registration/unregistration through its run loop and ensures
// thread-safe delivery through mutex protection. Room membership itself lives
// in the registry; the hub only maps connection IDs to transports.
type Hub struct {
	registry *RoomRegistry
	limiter  *rateLimiter

	clients    map[string]*Client
	broadcast  chan roomBroadcast
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a Hub with its own room registry and rate limiter sized from
// the active configuration. Each hub is fully independent, so tests can run
// several side by side.
func NewHub() *Hub {
	cfg := currentConfig()
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		registry:   NewRoomRegistry(cfg.RoomCapacity),
		limiter:    newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.Window),
		clients:    make(map[string]*Client),
		broadcast:  make(chan roomBroadcast, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Registry returns the room registry owned by this hub.
func (h *Hub) Registry() *RoomRegistry {
	return h.registry
}

// Run starts the hub's main event loop, handling client registration,
// unregistration, and room fan-out. This method should be called in a
// separate goroutine as it runs indefinitely.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				log.Printf("Received nil client registration; skipping")
				continue
			}

			h.mutex.Lock()
			client.closed = false
			h.clients[client.session.ID()] = client
			clientCount := len(h.clients)
			h.mutex.Unlock()
			log.Printf("Connection %s registered from %s. Total connections: %d",
				client.session.ID(), client.addr, clientCount)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client.session.ID()]; ok {
				delete(h.clients, client.session.ID())
				client.closed = true
				clientCount := len(h.clients)
				h.mutex.Unlock()
				// Close the channel after releasing the lock
				close(client.send)
				log.Printf("Connection %s unregistered from %s. Total connections: %d",
					client.session.ID(), client.addr, clientCount)
			} else {
				h.mutex.Unlock()
			}

		case rb := <-h.broadcast:
			h.handleBroadcast(rb)
		}
	}
}

// emitToRoom queues an event for delivery to every current member of a room,
// the originator included.
func (h *Hub) emitToRoom(room, event string, data any) {
	h.publish(room, "", event, data)
}

// emitToRoomExcept queues an event for delivery to every current member of a
// room except the named connection.
func (h *Hub) emitToRoomExcept(room, exceptID, event string, data any) {
	h.publish(room, exceptID, event, data)
}

func (h *Hub) publish(room, exceptID, event string, data any) {
	payload, err := json.Marshal(ServerEnvelope{Event: event, Data: data})
	if err != nil {
		log.Printf("Error encoding %q event for room %s: %v", event, room, err)
		return
	}

	select {
	case h.broadcast <- roomBroadcast{room: room, excludeID: exceptID, payload: payload}:
	case <-h.ctx.Done():
	}
}

// handleBroadcast resolves the room's current members through the registry
// and delivers the payload to each mapped connection. Delivery is best-effort
// per recipient; a member whose send buffer is full is evicted rather than
// allowed to stall the others.
func (h *Hub) handleBroadcast(rb roomBroadcast) {
	memberIDs := h.registry.Members(rb.room)

	var clientsToRemove []*Client
	for _, id := range memberIDs {
		if id == rb.excludeID {
			continue
		}

		client := h.getClient(id)
		if client == nil {
			// Member disconnected between the snapshot and delivery.
			continue
		}

		if !h.safeSend(client, rb.payload) {
			clientsToRemove = append(clientsToRemove, client)
		}
	}

	h.removeFailedClients(clientsToRemove)
}

func (h *Hub) getClient(id string) *Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.clients[id]
}

func (h *Hub) safeSend(client *Client, message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in safeSend: %v", r)
		}
	}()

	// Hold the lock during the entire send operation to prevent race conditions
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	// Check if client is still registered and not closed
	_, exists := h.clients[client.session.ID()]
	if !exists || client.closed {
		return false
	}

	// Try to send the message (channel might be closed, so we need to recover from panic)
	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// removeFailedClients removes clients that failed to receive messages and closes their channels
func (h *Hub) removeFailedClients(clientsToRemove []*Client) {
	if len(clientsToRemove) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	for _, client := range clientsToRemove {
		if _, exists := h.clients[client.session.ID()]; exists {
			delete(h.clients, client.session.ID())
			client.closed = true
			channelsToClose = append(channelsToClose, client.send)
			log.Printf("Connection %s removed due to full send buffer", client.session.ID())
		}
	}
	h.mutex.Unlock()

	// Close channels after releasing the lock
	for _, ch := range channelsToClose {
		close(ch)
	}
}

// shutdownClients gracefully closes all active client connections
func (h *Hub) shutdownClients() {
	log.Println("Shutting down all client connections...")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	// Close all client connections
	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error closing client connection from %s: %v", client.addr, err)
				}
			}
		}
	}

	log.Printf("Closed %d client connections", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	// Signal shutdown
	h.cancel()

	// Wait for Run() to complete
	<-h.done

	// Wait for all client goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
