// Package presence tracks which users hold a live connection.
package presence

import (
	"sync"
	"time"

	"github.com/sudo-init-do/fieldhub/internal/marketplace"
)

// Metadata is declared by a user when connecting.
type Metadata struct {
	City string
	Role marketplace.Role
}

// Entry is one live connection.
type Entry struct {
	Username     string           `json:"username"`
	ConnectionID string           `json:"connection_id"`
	City         string           `json:"city"`
	Role         marketplace.Role `json:"role"`
	ConnectedAt  time.Time        `json:"connected_at"`
}

// Registry maps usernames to their current connection. A user has at most one
// registered connection; the latest registration wins.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]Entry
	byConn map[string]string
	now    func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]Entry),
		byConn: make(map[string]string),
		now:    time.Now,
	}
}

// WithClock replaces the time source used for ConnectedAt.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Register records username as reachable on connectionID. When the user was
// already registered under another connection, that connection id is returned
// so the caller can close it.
func (r *Registry) Register(username, connectionID string, meta Metadata) (evicted string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byUser[username]; ok && prev.ConnectionID != connectionID {
		delete(r.byConn, prev.ConnectionID)
		evicted = prev.ConnectionID
	}
	r.byUser[username] = Entry{
		Username:     username,
		ConnectionID: connectionID,
		City:         meta.City,
		Role:         meta.Role,
		ConnectedAt:  r.now(),
	}
	r.byConn[connectionID] = username
	return evicted
}

// Unregister removes the entry owned by connectionID. Lookup is by connection
// so a late disconnect of a replaced connection cannot evict the newer one.
func (r *Registry) Unregister(connectionID string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	username, ok := r.byConn[connectionID]
	if !ok {
		return Entry{}, false
	}
	delete(r.byConn, connectionID)
	entry := r.byUser[username]
	if entry.ConnectionID == connectionID {
		delete(r.byUser, username)
	}
	return entry, true
}

func (r *Registry) IsOnline(username string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byUser[username]
	return ok
}

func (r *Registry) ConnectionIDFor(username string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byUser[username]
	if !ok {
		return "", false
	}
	return e.ConnectionID, true
}

// Lookup returns the full entry for username.
func (r *Registry) Lookup(username string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byUser[username]
	return e, ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// Snapshot returns the entries matching match. A nil match selects everyone.
func (r *Registry) Snapshot(match func(Entry) bool) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.byUser))
	for _, e := range r.byUser {
		if match == nil || match(e) {
			out = append(out, e)
		}
	}
	return out
}

// InCity selects freelancers connected from city.
func InCity(city string, role marketplace.Role) func(Entry) bool {
	return func(e Entry) bool {
		return e.Role == role && e.City == city
	}
}
