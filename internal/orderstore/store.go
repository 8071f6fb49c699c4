// Package orderstore holds the orders currently negotiated over live
// connections. It is a delivery aid: every change it records has also been
// written to durable storage.
package orderstore

import (
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sudo-init-do/fieldhub/internal/marketplace"
)

// Store is an in-memory table of orders keyed by id with a reverse index per
// participant. Every method runs in a single critical section, so an order
// and both of its index entries always change together.
type Store struct {
	mu     sync.Mutex
	orders map[string]*marketplace.Order
	byUser map[string]map[string]struct{}
	now    func() time.Time
	logger *slog.Logger
}

func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		orders: make(map[string]*marketplace.Order),
		byUser: make(map[string]map[string]struct{}),
		now:    time.Now,
		logger: logger,
	}
}

// WithClock replaces the time source used for timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Create inserts order under orderID. If the id is already present the
// existing order is returned unchanged and created is false.
func (s *Store) Create(orderID string, order marketplace.Order) (stored marketplace.Order, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.orders[orderID]; ok {
		return existing.Clone(), false
	}

	o := order.Clone()
	o.ID = orderID
	o.IsRealtime = true
	now := s.now()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.LastUpdated = now

	s.orders[orderID] = &o
	s.index(o.ClientUsername, orderID)
	s.index(o.FreelancerUsername, orderID)
	return o.Clone(), true
}

// Get returns a copy of the order.
func (s *Store) Get(orderID string) (marketplace.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return marketplace.Order{}, false
	}
	return o.Clone(), true
}

// Update applies mutate to a copy of the order and stores the copy, bumping
// LastUpdated and Revision. The stored order is replaced only after mutate returns, so a
// panic inside it leaves the previous value in place. Participants are fixed
// for the life of an order and any change to them is discarded.
func (s *Store) Update(orderID string, mutate func(*marketplace.Order)) (marketplace.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.orders[orderID]
	if !ok {
		s.logger.Warn("transient order missing on update", "order_id", orderID)
		return marketplace.Order{}, false
	}

	next := cur.Clone()
	mutate(&next)
	next.ID = cur.ID
	next.ClientUsername = cur.ClientUsername
	next.FreelancerUsername = cur.FreelancerUsername
	next.CreatedAt = cur.CreatedAt
	next.IsRealtime = true
	next.Revision = cur.Revision + 1
	next.LastUpdated = s.now()

	s.orders[orderID] = &next
	return next.Clone(), true
}

// Remove deletes the order and both reverse-index entries.
func (s *Store) Remove(orderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return false
	}
	delete(s.orders, orderID)
	s.unindex(o.ClientUsername, orderID)
	s.unindex(o.FreelancerUsername, orderID)
	return true
}

// OrdersFor returns the orders username takes part in, oldest first.
func (s *Store) OrdersFor(username string) []marketplace.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.byUser[username]
	out := make([]marketplace.Order, 0, len(ids))
	for id := range ids {
		if o, ok := s.orders[id]; ok {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of orders held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// IndexSize returns how many orders are indexed under username.
func (s *Store) IndexSize(username string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byUser[username])
}

func (s *Store) index(username, orderID string) {
	if username == "" {
		return
	}
	ids, ok := s.byUser[username]
	if !ok {
		ids = make(map[string]struct{})
		s.byUser[username] = ids
	}
	ids[orderID] = struct{}{}
}

func (s *Store) unindex(username, orderID string) {
	ids, ok := s.byUser[username]
	if !ok {
		return
	}
	delete(ids, orderID)
	if len(ids) == 0 {
		delete(s.byUser, username)
	}
}
