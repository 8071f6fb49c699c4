package auth

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Handler struct {
	svc    *Service
	users  UserRepository
	logger *slog.Logger
}

func NewHandler(svc *Service, users UserRepository, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{svc: svc, users: users, logger: logger}
}

// Login checks a password and returns a session token.
func (h *Handler) Login(c echo.Context) error {
	req := new(LoginRequest)
	if err := c.Bind(req); err != nil || req.Username == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	u, err := Authenticate(c.Request().Context(), h.users, req.Username, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err != nil {
		h.logger.Error("login lookup failed", "username", req.Username, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "server error"})
	}

	token, exp, err := h.svc.IssueSession(u.Identity())
	if err != nil {
		h.logger.Error("issue session failed", "username", u.Username, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token generation failed"})
	}
	return c.JSON(http.StatusOK, TokenResponse{Token: token, ExpiresAt: exp})
}

// Credential issues a short-lived token for opening a live connection. It
// runs behind the session middleware.
func (h *Handler) Credential(c echo.Context) error {
	id, ok := IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	token, exp, err := h.svc.IssueConnectionCredential(id)
	if err != nil {
		h.logger.Error("issue credential failed", "username", id.Username, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token generation failed"})
	}
	return c.JSON(http.StatusOK, TokenResponse{Token: token, ExpiresAt: exp})
}

// Me echoes the caller's identity.
func (h *Handler) Me(c echo.Context) error {
	id, ok := IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"username": id.Username,
		"role":     id.Role,
		"city":     id.City,
	})
}
