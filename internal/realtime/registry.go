package realtime

import (
	"errors"
	"sync"

	"github.com/samber/lo"
)

var ErrUnknownSession = errors.New("session is not registered")

// Subscriber is the registry's view of a connection session.
type Subscriber interface {
	ID() string
	PrincipalID() string
	// Enqueue hands payload to the session's outbound queue without blocking.
	Enqueue(payload []byte) bool
}

type membership struct {
	sub   Subscriber
	rooms map[string]struct{}
}

// Registry maps conversation ids to the sessions subscribed to them. It is
// the only component that mutates subscription sets.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[string]map[string]Subscriber
	sessions map[string]*membership
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:    make(map[string]map[string]Subscriber),
		sessions: make(map[string]*membership),
	}
}

// Register makes an open session eligible for subscriptions.
func (r *Registry) Register(sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[sub.ID()]; !ok {
		r.sessions[sub.ID()] = &membership{sub: sub, rooms: make(map[string]struct{})}
	}
}

// Subscribe is idempotent: a session is a member of a room at most once.
func (r *Registry) Subscribe(sessionID, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.sessions[sessionID]
	if !ok {
		return ErrUnknownSession
	}

	room, ok := r.rooms[conversationID]
	if !ok {
		room = make(map[string]Subscriber)
		r.rooms[conversationID] = room
	}
	room[sessionID] = m.sub
	m.rooms[conversationID] = struct{}{}
	return nil
}

// Unsubscribe reports whether the session was subscribed.
func (r *Registry) Unsubscribe(sessionID, conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	if _, ok := m.rooms[conversationID]; !ok {
		return false
	}

	delete(m.rooms, conversationID)
	r.leaveRoom(sessionID, conversationID)
	return true
}

// RemoveSession drops the session and all of its memberships, returning the
// conversations it was subscribed to.
func (r *Registry) RemoveSession(sessionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	delete(r.sessions, sessionID)

	rooms := lo.Keys(m.rooms)
	for _, conversationID := range rooms {
		r.leaveRoom(sessionID, conversationID)
	}
	return rooms
}

func (r *Registry) leaveRoom(sessionID, conversationID string) {
	room := r.rooms[conversationID]
	delete(room, sessionID)
	if len(room) == 0 {
		delete(r.rooms, conversationID)
	}
}

// MembersOf returns a snapshot of the sessions subscribed to conversationID.
func (r *Registry) MembersOf(conversationID string) []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Values(r.rooms[conversationID])
}

func (r *Registry) IsSubscribed(sessionID, conversationID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.rooms[conversationID][sessionID]
	return ok
}

func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
