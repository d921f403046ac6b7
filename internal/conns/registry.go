// Package conns tracks live websocket connections per user and owns the
// per-connection write path.
package conns

import (
	"sync"

	"github.com/fy-st0rm/lobic/internal/metrics"
)

// Pusher is the write side of a live connection. Implementations must not
// block the caller.
type Pusher interface {
	Send(v any)
}

// Registry maps user IDs to their single live connection. A user has at most
// one entry; a reconnect replaces the previous one.
type Registry struct {
	mu    sync.RWMutex
	users map[string]Pusher
}

func NewRegistry() *Registry {
	return &Registry{users: make(map[string]Pusher)}
}

// Register binds the connection to the user, replacing any previous binding.
func (r *Registry) Register(userID string, p Pusher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[userID] = p
	metrics.ConnectionsOpen.Set(float64(len(r.users)))
}

// Lookup returns the user's live connection, if any.
func (r *Registry) Lookup(userID string) (Pusher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.users[userID]
	return p, ok
}

// Remove unbinds whatever connection the user currently has.
func (r *Registry) Remove(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.users[userID]
	delete(r.users, userID)
	metrics.ConnectionsOpen.Set(float64(len(r.users)))
	return ok
}

// RemoveConn unbinds the user only if p is still their current connection.
// A teardown racing a reconnect must not evict the fresh connection.
func (r *Registry) RemoveConn(userID string, p Pusher) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.users[userID]
	if !ok || current != p {
		return false
	}
	delete(r.users, userID)
	metrics.ConnectionsOpen.Set(float64(len(r.users)))
	return true
}

// UserIDs returns a snapshot of all connected user IDs.
func (r *Registry) UserIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// CloseAll unbinds every connection and gracefully stops those that support
// it, used on server shutdown. Stops happen outside the lock because a
// graceful stop waits for the writer goroutine to drain.
func (r *Registry) CloseAll(reason string) {
	r.mu.Lock()
	users := r.users
	r.users = make(map[string]Pusher)
	metrics.ConnectionsOpen.Set(0)
	r.mu.Unlock()

	for _, p := range users {
		if s, ok := p.(interface{ StopGraceful(reason string) }); ok {
			s.StopGraceful(reason)
		}
	}
}
