package durable

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sudo-init-do/fieldhub/internal/marketplace"
)

// MemoryRepository keeps durable copies in process memory. It backs the
// memory store driver used for local development and exercises the same
// per-owner copy semantics as the Postgres repository.
type MemoryRepository struct {
	mu      sync.Mutex
	orders  map[string]map[string]marketplace.Order
	reviews map[string]marketplace.Review
	now     func() time.Time
	failErr error
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		orders:  make(map[string]map[string]marketplace.Order),
		reviews: make(map[string]marketplace.Review),
		now:     time.Now,
	}
}

// FailWith makes every subsequent write return err until called with nil.
func (m *MemoryRepository) FailWith(err error) {
	m.mu.Lock()
	m.failErr = err
	m.mu.Unlock()
}

func (m *MemoryRepository) PersistOrderField(ctx context.Context, u marketplace.OrderUpdate) error {
	if err := validate(u); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}

	owners := []string{u.Order.ClientUsername, u.Order.FreelancerUsername}
	if u.Type == marketplace.UpdateReject {
		for _, owner := range owners {
			delete(m.orders[owner], u.Order.ID)
		}
		return nil
	}

	for _, owner := range owners {
		copies, ok := m.orders[owner]
		if !ok {
			copies = make(map[string]marketplace.Order)
			m.orders[owner] = copies
		}
		existing, ok := copies[u.Order.ID]
		switch {
		case !ok:
			o := u.Order.Clone()
			o.IsRealtime = false
			copies[u.Order.ID] = o
		case u.Type == marketplace.UpdateCreate:
			// duplicate create keeps the first write
		default:
			merge(&existing, u.Order, u.Type)
			copies[u.Order.ID] = existing
		}
	}
	return nil
}

func (m *MemoryRepository) FindOrder(_ context.Context, owner, orderID string) (marketplace.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[owner][orderID]
	if !ok {
		return marketplace.Order{}, ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (m *MemoryRepository) ListOrders(_ context.Context, owner string) ([]marketplace.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]marketplace.Order, 0, len(m.orders[owner]))
	for _, o := range m.orders[owner] {
		out = append(out, o.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryRepository) SaveReview(_ context.Context, r marketplace.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reviews[r.OrderID]; ok {
		return ErrDuplicateReview
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = m.now()
	}
	m.reviews[r.OrderID] = r
	return nil
}

func (m *MemoryRepository) ListReviews(_ context.Context, freelancer string) ([]marketplace.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []marketplace.Review
	for _, r := range m.reviews {
		if r.FreelancerUsername == freelancer {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
