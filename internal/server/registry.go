// Package server implements the in-memory room registry that owns the
// room-code to member mapping shared by all connections.
package server

import "sync"

// RoomRegistry maps room codes to the set of member connection IDs. It is the
// only state mutated by multiple connections concurrently, so every compound
// operation (capacity check + insert, remove + empty-room delete) runs under
// a single lock acquisition.
//
// Rooms are created lazily and deleted as soon as their member set becomes
// empty; a registered room always has at least one member once the operation
// that touched it returns.
type RoomRegistry struct {
	mu       sync.Mutex
	capacity int
	rooms    map[string]map[string]struct{}
}

// NewRoomRegistry creates an empty registry with the given per-room member
// capacity. Non-positive capacities fall back to the configured default.
func NewRoomRegistry(capacity int) *RoomRegistry {
	if capacity <= 0 {
		capacity = defaultConfig().RoomCapacity
	}
	return &RoomRegistry{
		capacity: capacity,
		rooms:    make(map[string]map[string]struct{}),
	}
}

// CreateRoom generates a fresh room code not currently in use, registers it,
// and returns it. Code collisions are retried transparently; with a 36^6 code
// space the loop terminates after one iteration in practice.
func (r *RoomRegistry) CreateRoom() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var code string
	for {
		code = generateRoomCode()
		if _, exists := r.rooms[code]; !exists {
			break
		}
	}

	r.rooms[code] = make(map[string]struct{})
	return code
}

// EnsureRoom idempotently registers an empty room entry for code if absent.
// This lets clients join codes distributed out-of-band without a prior
// createRoom call.
func (r *RoomRegistry) EnsureRoom(code string) {
	code = NormalizeCode(code)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureRoomLocked(code)
}

func (r *RoomRegistry) ensureRoomLocked(code string) map[string]struct{} {
	members, exists := r.rooms[code]
	if !exists {
		members = make(map[string]struct{})
		r.rooms[code] = members
	}
	return members
}

// Join adds a connection to a room, creating the room if needed, and returns
// the new member count. It returns ErrRoomFull without mutating membership if
// the room is already at capacity. The capacity check and the insert happen
// atomically so two concurrent joins cannot both squeeze past the limit.
func (r *RoomRegistry) Join(code, connID string) (int, error) {
	code = NormalizeCode(code)

	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.ensureRoomLocked(code)
	if _, already := members[connID]; !already && len(members) >= r.capacity {
		// A failed join must not leave behind a room it just created.
		if len(members) == 0 {
			delete(r.rooms, code)
		}
		return 0, ErrRoomFull
	}

	members[connID] = struct{}{}
	return len(members), nil
}

// Leave removes a connection from a room and returns the remaining member
// count. The room is deleted entirely once its member set becomes empty.
// Leaving a room the connection is not in, or one that does not exist, is a
// safe no-op.
func (r *RoomRegistry) Leave(code, connID string) int {
	code = NormalizeCode(code)

	r.mu.Lock()
	defer r.mu.Unlock()

	members, exists := r.rooms[code]
	if !exists {
		return 0
	}

	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, code)
		return 0
	}
	return len(members)
}

// MemberCount returns the current size of a room, 0 if it does not exist.
func (r *RoomRegistry) MemberCount(code string) int {
	code = NormalizeCode(code)

	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms[code])
}

// Members returns a snapshot of the connection IDs currently in a room.
// The returned slice is owned by the caller; mutating it does not affect
// registry state.
func (r *RoomRegistry) Members(code string) []string {
	code = NormalizeCode(code)

	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.rooms[code]
	snapshot := make([]string, 0, len(members))
	for id := range members {
		snapshot = append(snapshot, id)
	}
	return snapshot
}

// RoomExists reports whether a room is currently registered.
func (r *RoomRegistry) RoomExists(code string) bool {
	code = NormalizeCode(code)

	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.rooms[code]
	return exists
}
