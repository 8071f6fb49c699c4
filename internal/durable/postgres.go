package durable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sudo-init-do/fieldhub/internal/marketplace"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Querier is the read side of pgxpool.Pool.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresRepository stores one user_orders row per (owner, order).
type PostgresRepository struct {
	pool TxBeginner
	db   Querier
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool, db: pool}
}

const orderColumns = `order_id, client_username, freelancer_username, description, city, status,
price, currency, negotiation, expected_reach_time, is_reached, client_location, proof,
revision, created_at, updated_at`

func (r *PostgresRepository) PersistOrderField(ctx context.Context, u marketplace.OrderUpdate) error {
	if err := validate(u); err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("durable: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if u.Type == marketplace.UpdateReject {
		if _, err := tx.Exec(ctx,
			`DELETE FROM user_orders WHERE order_id = $1 AND owner_username IN ($2, $3)`,
			u.Order.ID, u.Order.ClientUsername, u.Order.FreelancerUsername,
		); err != nil {
			return fmt.Errorf("durable: delete rejected order: %w", err)
		}
	} else {
		query, err := upsertSQL(u.Type)
		if err != nil {
			return err
		}
		for _, owner := range []string{u.Order.ClientUsername, u.Order.FreelancerUsername} {
			args, err := rowArgs(owner, u.Order)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, query, args...); err != nil {
				return fmt.Errorf("durable: upsert %s copy for %s: %w", u.Type, owner, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("durable: commit order update: %w", err)
	}
	return nil
}

func upsertSQL(t marketplace.UpdateType) (string, error) {
	insert := `
INSERT INTO user_orders (owner_username, ` + orderColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11, $12::jsonb, $13::jsonb, $14::jsonb, $15, $16, $17)
ON CONFLICT (owner_username, order_id) `

	if t == marketplace.UpdateCreate {
		return insert + `DO NOTHING`, nil
	}
	cols, ok := updateColumns[t]
	if !ok {
		return "", fmt.Errorf("durable: unknown update type %q", t)
	}
	sets := make([]string, 0, len(cols)+2)
	for _, c := range cols {
		sets = append(sets, c+" = EXCLUDED."+c)
	}
	sets = append(sets, "revision = EXCLUDED.revision", "updated_at = EXCLUDED.updated_at")
	return insert + `DO UPDATE SET ` + strings.Join(sets, ", "), nil
}

func rowArgs(owner string, o marketplace.Order) ([]any, error) {
	negotiation, err := json.Marshal(o.Negotiation)
	if err != nil {
		return nil, fmt.Errorf("durable: marshal negotiation: %w", err)
	}
	reached, err := json.Marshal(o.IsReached)
	if err != nil {
		return nil, fmt.Errorf("durable: marshal is_reached: %w", err)
	}
	location, err := nullableJSON(o.ClientLocation)
	if err != nil {
		return nil, fmt.Errorf("durable: marshal client_location: %w", err)
	}
	proof, err := nullableJSON(o.Proof)
	if err != nil {
		return nil, fmt.Errorf("durable: marshal proof: %w", err)
	}
	created := o.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	updated := o.LastUpdated
	if updated.IsZero() {
		updated = created
	}
	return []any{
		owner, o.ID, o.ClientUsername, o.FreelancerUsername, o.Description, o.City,
		string(o.Status), o.Price, o.Currency, string(negotiation), o.ExpectedReachTime,
		string(reached), location, proof, o.Revision, created, updated,
	}, nil
}

func nullableJSON[T any](v *T) (*string, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func (r *PostgresRepository) FindOrder(ctx context.Context, owner, orderID string) (marketplace.Order, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM user_orders WHERE owner_username = $1 AND order_id = $2`,
		owner, orderID,
	)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return marketplace.Order{}, ErrOrderNotFound
		}
		return marketplace.Order{}, fmt.Errorf("durable: find order: %w", err)
	}
	return o, nil
}

func (r *PostgresRepository) ListOrders(ctx context.Context, owner string) ([]marketplace.Order, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+orderColumns+` FROM user_orders WHERE owner_username = $1 ORDER BY created_at DESC`,
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("durable: list orders: %w", err)
	}
	defer rows.Close()

	var out []marketplace.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("durable: scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (marketplace.Order, error) {
	var (
		o                    marketplace.Order
		status               string
		negotiation, reached []byte
		location, proof      []byte
		expectedReach        *time.Time
	)
	if err := row.Scan(
		&o.ID, &o.ClientUsername, &o.FreelancerUsername, &o.Description, &o.City, &status,
		&o.Price, &o.Currency, &negotiation, &expectedReach, &reached, &location, &proof,
		&o.Revision, &o.CreatedAt, &o.LastUpdated,
	); err != nil {
		return marketplace.Order{}, err
	}
	o.Status = marketplace.Status(status)
	o.ExpectedReachTime = expectedReach
	if err := json.Unmarshal(negotiation, &o.Negotiation); err != nil {
		return marketplace.Order{}, fmt.Errorf("durable: decode negotiation: %w", err)
	}
	if err := json.Unmarshal(reached, &o.IsReached); err != nil {
		return marketplace.Order{}, fmt.Errorf("durable: decode is_reached: %w", err)
	}
	if len(location) > 0 {
		o.ClientLocation = &marketplace.Location{}
		if err := json.Unmarshal(location, o.ClientLocation); err != nil {
			return marketplace.Order{}, fmt.Errorf("durable: decode client_location: %w", err)
		}
	}
	if len(proof) > 0 {
		o.Proof = &marketplace.Proof{}
		if err := json.Unmarshal(proof, o.Proof); err != nil {
			return marketplace.Order{}, fmt.Errorf("durable: decode proof: %w", err)
		}
	}
	return o, nil
}

func (r *PostgresRepository) SaveReview(ctx context.Context, rv marketplace.Review) error {
	if rv.ID == "" {
		rv.ID = uuid.NewString()
	}
	if rv.CreatedAt.IsZero() {
		rv.CreatedAt = time.Now()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO reviews (id, order_id, freelancer_username, client_username, rating, comment, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rv.ID, rv.OrderID, rv.FreelancerUsername, rv.ClientUsername, rv.Rating, rv.Comment, rv.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateReview
		}
		return fmt.Errorf("durable: insert review: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListReviews(ctx context.Context, freelancer string) ([]marketplace.Review, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id::text, order_id, freelancer_username, client_username, rating, comment, created_at
		 FROM reviews WHERE freelancer_username = $1 ORDER BY created_at DESC`,
		freelancer,
	)
	if err != nil {
		return nil, fmt.Errorf("durable: list reviews: %w", err)
	}
	defer rows.Close()

	var out []marketplace.Review
	for rows.Next() {
		var rv marketplace.Review
		if err := rows.Scan(&rv.ID, &rv.OrderID, &rv.FreelancerUsername, &rv.ClientUsername, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, fmt.Errorf("durable: scan review: %w", err)
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}
