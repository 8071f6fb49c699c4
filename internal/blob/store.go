// Package blob stores audio, image and proof artifacts referenced by orders.
package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound     = errors.New("blob: not found")
	ErrEmpty        = errors.New("blob: empty content")
	ErrTooLarge     = errors.New("blob: content too large")
	ErrKindMismatch = errors.New("blob: content does not match kind")
	ErrUnknownKind  = errors.New("blob: unknown kind")
)

// MaxSize caps a single artifact.
const MaxSize = 10 << 20

type Kind string

const (
	KindAudio Kind = "audio"
	KindImage Kind = "image"
	KindProof Kind = "proof"
)

type Blob struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	ContentType string    `json:"content_type"`
	OrderID     string    `json:"order_id,omitempty"`
	Size        int       `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
	Data        []byte    `json:"-"`
}

type Store interface {
	Put(ctx context.Context, data []byte, kind Kind, orderID string) (Blob, error)
	Get(ctx context.Context, id string) (Blob, error)
}

// Prepare validates data against kind and returns the blob to be stored.
func Prepare(data []byte, kind Kind, orderID string) (Blob, error) {
	if len(data) == 0 {
		return Blob{}, ErrEmpty
	}
	if len(data) > MaxSize {
		return Blob{}, ErrTooLarge
	}
	mt := mimetype.Detect(data)
	if err := checkKind(kind, mt); err != nil {
		return Blob{}, err
	}
	return Blob{
		ID:          uuid.NewString(),
		Kind:        kind,
		ContentType: mt.String(),
		OrderID:     orderID,
		Size:        len(data),
		CreatedAt:   time.Now().UTC(),
		Data:        data,
	}, nil
}

func checkKind(kind Kind, mt *mimetype.MIME) error {
	switch kind {
	case KindAudio:
		if !hasTopLevel(mt, "audio/") {
			return fmt.Errorf("%w: %s is not audio", ErrKindMismatch, mt.String())
		}
	case KindImage:
		if !hasTopLevel(mt, "image/") {
			return fmt.Errorf("%w: %s is not an image", ErrKindMismatch, mt.String())
		}
	case KindProof:
		if !hasTopLevel(mt, "image/") && !mt.Is("application/pdf") {
			return fmt.Errorf("%w: proof must be an image or pdf, got %s", ErrKindMismatch, mt.String())
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return nil
}

// hasTopLevel walks the detected type and its parents.
func hasTopLevel(mt *mimetype.MIME, prefix string) bool {
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), prefix) {
			return true
		}
	}
	return false
}

// PostgresStore keeps blobs in a bytea column.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Put(ctx context.Context, data []byte, kind Kind, orderID string) (Blob, error) {
	b, err := Prepare(data, kind, orderID)
	if err != nil {
		return Blob{}, err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO blobs (id, kind, content_type, data, order_id, created_at) VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)`,
		b.ID, string(b.Kind), b.ContentType, b.Data, b.OrderID, b.CreatedAt,
	)
	if err != nil {
		return Blob{}, fmt.Errorf("blob: insert: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Blob, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Blob{}, ErrNotFound
	}
	var (
		b       Blob
		kind    string
		orderID *string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, kind, content_type, data, order_id, created_at FROM blobs WHERE id = $1`, id,
	).Scan(&b.ID, &kind, &b.ContentType, &b.Data, &orderID, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Blob{}, ErrNotFound
		}
		return Blob{}, fmt.Errorf("blob: select: %w", err)
	}
	b.Kind = Kind(kind)
	b.Size = len(b.Data)
	if orderID != nil {
		b.OrderID = *orderID
	}
	return b, nil
}

// MemoryStore keeps blobs in process memory for the memory store driver.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]Blob
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]Blob)}
}

func (s *MemoryStore) Put(_ context.Context, data []byte, kind Kind, orderID string) (Blob, error) {
	b, err := Prepare(data, kind, orderID)
	if err != nil {
		return Blob{}, err
	}
	b.Data = append([]byte(nil), data...)
	s.mu.Lock()
	s.blobs[b.ID] = b
	s.mu.Unlock()
	return b, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Blob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[id]
	if !ok {
		return Blob{}, ErrNotFound
	}
	return b, nil
}
