// Package user serves public account profiles.
package user

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/fieldhub/internal/auth"
	"github.com/sudo-init-do/fieldhub/internal/marketplace"
)

type Accounts interface {
	FindUser(ctx context.Context, username string) (auth.User, error)
}

type Presence interface {
	IsOnline(username string) bool
}

type Reviews interface {
	ListReviews(ctx context.Context, freelancer string) ([]marketplace.Review, error)
}

// Profile is the public view of an account.
type Profile struct {
	Username string                     `json:"username"`
	Role     marketplace.Role           `json:"role"`
	City     string                     `json:"city,omitempty"`
	Online   bool                       `json:"online"`
	Rating   *marketplace.RatingSummary `json:"rating,omitempty"`
}

type Handler struct {
	accounts Accounts
	online   Presence
	reviews  Reviews
	logger   *slog.Logger
}

func NewHandler(accounts Accounts, online Presence, reviews Reviews, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{accounts: accounts, online: online, reviews: reviews, logger: logger}
}

// GetPublicProfile serves GET /users/:username. Freelancers include their
// rating summary.
func (h *Handler) GetPublicProfile(c echo.Context) error {
	username := c.Param("username")
	if username == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing username"})
	}

	ctx := c.Request().Context()
	u, err := h.accounts.FindUser(ctx, username)
	if errors.Is(err, auth.ErrUserNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}
	if err != nil {
		h.logger.Error("profile lookup failed", "username", username, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch user"})
	}

	p := Profile{
		Username: u.Username,
		Role:     u.Role,
		City:     u.City,
		Online:   h.online.IsOnline(u.Username),
	}
	if u.Role == marketplace.RoleFreelancer {
		reviews, err := h.reviews.ListReviews(ctx, u.Username)
		if err != nil {
			h.logger.Error("profile reviews failed", "username", username, "error", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch reviews"})
		}
		summary := marketplace.Summarize(u.Username, reviews)
		p.Rating = &summary
	}
	return c.JSON(http.StatusOK, p)
}
