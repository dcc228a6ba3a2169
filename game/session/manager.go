package session

import (
	"errors"
	"slices"
	"sync"
	"time"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrNilHandle            = errors.New("nil transport handle")
)

// Handle is the transport side of a viewer connection. The registry only
// uses it as a map key and as a send target.
type Handle interface {
	Send(data []byte) error
}

// Session is one connected viewer
type Session struct {
	ID          int
	Handle      Handle
	ConnectedAt time.Time
}

// Registry tracks connected viewers and hands out process-unique ids
type Registry struct {
	sessions map[Handle]*Session
	nextID   int
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry. The first id handed out is 1.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[Handle]*Session),
		nextID:   1,
	}
}

// Register associates handle with the next unused id and returns it.
// Ids strictly increase and are never reused, even after Unregister.
func (r *Registry) Register(handle Handle) (int, error) {
	if handle == nil {
		return 0, ErrNilHandle
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[handle]; exists {
		return 0, ErrSessionAlreadyExists
	}

	id := r.nextID
	r.nextID++
	r.sessions[handle] = &Session{
		ID:          id,
		Handle:      handle,
		ConnectedAt: time.Now(),
	}

	return id, nil
}

// Unregister removes handle and returns the id it held
func (r *Registry) Unregister(handle Handle) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[handle]
	if !exists {
		return 0, ErrSessionNotFound
	}
	delete(r.sessions, handle)

	return session.ID, nil
}

// Lookup returns the id registered for handle
func (r *Registry) Lookup(handle Handle) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[handle]
	if !exists {
		return 0, false
	}
	return session.ID, true
}

// List returns a snapshot of all sessions in registration order
func (r *Registry) List() []Session {
	r.mu.RLock()
	result := make([]Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		result = append(result, *session)
	}
	r.mu.RUnlock()

	slices.SortFunc(result, func(a, b Session) int {
		return a.ID - b.ID
	})
	return result
}

// ForEach calls fn for every registered session in registration order.
// It iterates over a snapshot, so fn may register or unregister handles
// (including its own) without disturbing the iteration.
func (r *Registry) ForEach(fn func(handle Handle, id int)) {
	for _, session := range r.List() {
		fn(session.Handle, session.ID)
	}
}

// Count returns the number of registered sessions
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
