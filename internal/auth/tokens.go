package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sudo-init-do/fieldhub/internal/marketplace"
)

var (
	ErrInvalidToken       = errors.New("auth: invalid or expired token")
	ErrWrongTokenKind     = errors.New("auth: token not valid for this use")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrMissingSecret      = errors.New("auth: signing secret is empty")
)

// Kind separates long-lived session tokens from the short-lived credentials
// presented when opening a live connection.
type Kind string

const (
	KindSession    Kind = "session"
	KindConnection Kind = "connection"
)

type Claims struct {
	Username string           `json:"username"`
	Role     marketplace.Role `json:"role"`
	City     string           `json:"city,omitempty"`
	Kind     Kind             `json:"kind"`
	jwt.RegisteredClaims
}

// Identity is what a token asserts about its bearer.
type Identity struct {
	Username string
	Role     marketplace.Role
	City     string
}

func (c *Claims) Identity() Identity {
	return Identity{Username: c.Username, Role: c.Role, City: c.City}
}

// Service signs and verifies HS256 tokens.
type Service struct {
	secret        []byte
	credentialTTL time.Duration
	sessionTTL    time.Duration
	now           func() time.Time
}

func NewService(secret string, credentialTTL, sessionTTL time.Duration) (*Service, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Service{
		secret:        []byte(secret),
		credentialTTL: credentialTTL,
		sessionTTL:    sessionTTL,
		now:           time.Now,
	}, nil
}

// WithClock overrides time.Now (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// IssueSession returns a session token for id.
func (s *Service) IssueSession(id Identity) (string, time.Time, error) {
	return s.issue(id, KindSession, s.sessionTTL)
}

// IssueConnectionCredential exchanges an authenticated session for a
// short-lived credential accepted by the live gateway.
func (s *Service) IssueConnectionCredential(id Identity) (string, time.Time, error) {
	return s.issue(id, KindConnection, s.credentialTTL)
}

func (s *Service) VerifySession(token string) (*Claims, error) {
	return s.verify(token, KindSession)
}

func (s *Service) VerifyConnection(token string) (*Claims, error) {
	return s.verify(token, KindConnection)
}

func (s *Service) issue(id Identity, kind Kind, ttl time.Duration) (string, time.Time, error) {
	if id.Username == "" || !id.Role.Valid() {
		return "", time.Time{}, fmt.Errorf("auth: issue %s token: incomplete identity", kind)
	}
	now := s.now()
	exp := now.Add(ttl)
	claims := Claims{
		Username: id.Username,
		Role:     id.Role,
		City:     id.City,
		Kind:     kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign %s token: %w", kind, err)
	}
	return signed, exp, nil
}

func (s *Service) verify(token string, kind Kind) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Kind != kind {
		return nil, ErrWrongTokenKind
	}
	if claims.Username == "" || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
