package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/sudo-init-do/fieldhub/internal/marketplace"
)

var ErrUserNotFound = errors.New("auth: user not found")

type User struct {
	Username     string
	PasswordHash string
	Role         marketplace.Role
	City         string
}

func (u User) Identity() Identity {
	return Identity{Username: u.Username, Role: u.Role, City: u.City}
}

type UserRepository interface {
	FindUser(ctx context.Context, username string) (User, error)
}

// PostgresUsers reads accounts from the users table.
type PostgresUsers struct {
	pool *pgxpool.Pool
}

func NewPostgresUsers(pool *pgxpool.Pool) *PostgresUsers {
	return &PostgresUsers{pool: pool}
}

func (r *PostgresUsers) FindUser(ctx context.Context, username string) (User, error) {
	var (
		u    User
		role string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT username, password_hash, role, city FROM users WHERE username = $1`,
		username,
	).Scan(&u.Username, &u.PasswordHash, &role, &u.City)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("auth: find user: %w", err)
	}
	u.Role = marketplace.Role(role)
	return u, nil
}

// UpsertUser creates or replaces an account. Used by the seeding tool.
func (r *PostgresUsers) UpsertUser(ctx context.Context, u User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO users (username, password_hash, role, city)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username) DO UPDATE
		SET password_hash = EXCLUDED.password_hash, role = EXCLUDED.role, city = EXCLUDED.city
	`, u.Username, string(hash), string(u.Role), u.City)
	if err != nil {
		return fmt.Errorf("auth: upsert user: %w", err)
	}
	return nil
}

// StaticUsers is an in-memory account list for the memory store driver.
type StaticUsers struct {
	users map[string]User
}

// ParseStaticUsers reads "username:password:role:city" entries separated by
// commas. City may be omitted.
func ParseStaticUsers(list string) (*StaticUsers, error) {
	s := &StaticUsers{users: make(map[string]User)}
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 4)
		if len(parts) < 3 {
			return nil, fmt.Errorf("auth: malformed user entry %q", entry)
		}
		role := marketplace.Role(parts[2])
		if parts[0] == "" || !role.Valid() {
			return nil, fmt.Errorf("auth: malformed user entry %q", entry)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(parts[1]), bcrypt.MinCost)
		if err != nil {
			return nil, fmt.Errorf("auth: hash password: %w", err)
		}
		u := User{Username: parts[0], PasswordHash: string(hash), Role: role}
		if len(parts) == 4 {
			u.City = parts[3]
		}
		s.users[u.Username] = u
	}
	return s, nil
}

func (s *StaticUsers) FindUser(_ context.Context, username string) (User, error) {
	u, ok := s.users[username]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

// Authenticate checks a password against the stored bcrypt hash. Unknown
// users and wrong passwords both yield ErrInvalidCredentials.
func Authenticate(ctx context.Context, users UserRepository, username, password string) (User, error) {
	u, err := users.FindUser(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}
