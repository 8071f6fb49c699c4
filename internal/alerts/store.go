package alerts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotificationNotFound = errors.New("alerts: notification not found or already read")

type NotificationStore interface {
	Create(ctx context.Context, n Notification) (Notification, error)
	List(ctx context.Context, username string) ([]Notification, error)
	MarkRead(ctx context.Context, id, username string) error
}

type PostgresNotifications struct {
	pool *pgxpool.Pool
}

func NewPostgresNotifications(pool *pgxpool.Pool) *PostgresNotifications {
	return &PostgresNotifications{pool: pool}
}

func (s *PostgresNotifications) Create(ctx context.Context, n Notification) (Notification, error) {
	n = withDefaults(n)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO notifications (id, username, type, title, body, order_id, created_at)
         VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)`,
		n.ID, n.Username, n.Type, n.Title, n.Body, n.OrderID, n.CreatedAt,
	)
	if err != nil {
		return Notification{}, fmt.Errorf("alerts: insert notification: %w", err)
	}
	return n, nil
}

func (s *PostgresNotifications) List(ctx context.Context, username string) ([]Notification, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, username, type, title, body, COALESCE(order_id, ''), created_at, read_at
         FROM notifications WHERE username = $1 ORDER BY created_at DESC LIMIT 200`, username,
	)
	if err != nil {
		return nil, fmt.Errorf("alerts: list notifications: %w", err)
	}
	defer rows.Close()

	out := []Notification{}
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.Username, &n.Type, &n.Title, &n.Body, &n.OrderID, &n.CreatedAt, &n.ReadAt); err != nil {
			return nil, fmt.Errorf("alerts: scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *PostgresNotifications) MarkRead(ctx context.Context, id, username string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotificationNotFound
	}
	res, err := s.pool.Exec(ctx,
		`UPDATE notifications SET read_at = NOW() WHERE id = $1 AND username = $2 AND read_at IS NULL`, id, username,
	)
	if err != nil {
		return fmt.Errorf("alerts: mark read: %w", err)
	}
	if res.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MemoryNotifications backs the memory store driver and tests.
type MemoryNotifications struct {
	mu    sync.Mutex
	items map[string]Notification
	now   func() time.Time
}

func NewMemoryNotifications() *MemoryNotifications {
	return &MemoryNotifications{items: make(map[string]Notification), now: time.Now}
}

func (s *MemoryNotifications) Create(_ context.Context, n Notification) (Notification, error) {
	n = withDefaults(n)
	s.mu.Lock()
	s.items[n.ID] = n
	s.mu.Unlock()
	return n, nil
}

func (s *MemoryNotifications) List(_ context.Context, username string) ([]Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Notification{}
	for _, n := range s.items {
		if n.Username == username {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryNotifications) MarkRead(_ context.Context, id, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[id]
	if !ok || n.Username != username || n.ReadAt != nil {
		return ErrNotificationNotFound
	}
	now := s.now()
	n.ReadAt = &now
	s.items[id] = n
	return nil
}

func withDefaults(n Notification) Notification {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	return n
}
