package chat

import (
	"sort"
	"strings"
	"sync"
)

// GlobalRoom is implicitly joined by every connected client.
const GlobalRoom = "global"

// Conn is one live client connection.
type Conn interface {
	ID() string
	Username() string
	// Send queues msg without blocking. It reports false when the message was dropped.
	Send(msg Message) bool
	Close()
}

type set map[Conn]struct{}

// Registry tracks connected clients and the private rooms each of them joined.
type Registry struct {
	mu     sync.RWMutex
	conns  set
	rooms  map[string]set
	joined map[Conn]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(set),
		rooms:  make(map[string]set),
		joined: make(map[Conn]map[string]struct{}),
	}
}

// RoomKey names the private room of two users. The result does not depend on argument order.
func RoomKey(userA, userB string) string {
	pair := []string{userA, userB}
	sort.Strings(pair)

	return strings.Join(pair, "-")
}

func (r *Registry) Connect(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[c] = struct{}{}
}

// Disconnect forgets c and removes it from every room it joined.
func (r *Registry) Disconnect(c Conn) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.conns, c)

	rooms := make([]string, 0, len(r.joined[c]))
	for roomID := range r.joined[c] {
		r.removeMember(roomID, c)
		rooms = append(rooms, roomID)
	}
	delete(r.joined, c)

	return rooms
}

// Join is idempotent.
func (r *Registry) Join(roomID string, c Conn) {
	if roomID == GlobalRoom {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(set)
		r.rooms[roomID] = members
	}
	members[c] = struct{}{}

	rooms, ok := r.joined[c]
	if !ok {
		rooms = make(map[string]struct{})
		r.joined[c] = rooms
	}
	rooms[roomID] = struct{}{}
}

// Leave is a no-op when c is not a member.
func (r *Registry) Leave(roomID string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeMember(roomID, c)
	if rooms, ok := r.joined[c]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(r.joined, c)
		}
	}
}

func (r *Registry) removeMember(roomID string, c Conn) {
	members, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
}

// Members returns a snapshot, safe to iterate while others join or leave.
func (r *Registry) Members(roomID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src := r.rooms[roomID]
	if roomID == GlobalRoom {
		src = r.conns
	}

	members := make([]Conn, 0, len(src))
	for c := range src {
		members = append(members, c)
	}

	return members
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conns)
}

// CloseAll disconnects every client. Used on shutdown.
func (r *Registry) CloseAll() {
	for _, c := range r.Members(GlobalRoom) {
		c.Close()
		r.Disconnect(c)
	}
}
