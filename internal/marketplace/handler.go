package marketplace

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"github.com/labstack/echo/v4"
)

// OrderReader is the durable read side used by the HTTP handlers.
type OrderReader interface {
	ListOrders(ctx context.Context, owner string) ([]Order, error)
	ListReviews(ctx context.Context, freelancer string) ([]Review, error)
}

// LiveOrders exposes orders currently held in memory for live parties.
type LiveOrders interface {
	OrdersFor(username string) []Order
}

type Handler struct {
	orders OrderReader
	live   LiveOrders
	logger *slog.Logger
}

func NewHandler(orders OrderReader, live LiveOrders, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{orders: orders, live: live, logger: logger}
}

// GetMyOrders returns the caller's orders, newest first. Live copies newer
// than the durable record replace it. ?status= filters the result.
func (h *Handler) GetMyOrders(c echo.Context) error {
	username, ok := c.Get("username").(string)
	if !ok || username == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	stored, err := h.orders.ListOrders(c.Request().Context(), username)
	if err != nil {
		h.logger.Error("list orders failed", "username", username, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch orders"})
	}

	byID := make(map[string]Order, len(stored))
	for _, o := range stored {
		byID[o.ID] = o
	}
	if h.live != nil {
		for _, o := range h.live.OrdersFor(username) {
			if cur, ok := byID[o.ID]; !ok || o.Revision >= cur.Revision {
				byID[o.ID] = o
			}
		}
	}

	filter := Status(c.QueryParam("status"))
	if filter != "" && !filter.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
	}
	orders := make([]Order, 0, len(byID))
	for _, o := range byID {
		if filter == "" || o.Status == filter {
			orders = append(orders, o)
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID < orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})

	return c.JSON(http.StatusOK, echo.Map{"orders": orders})
}

// GetFreelancerReviews returns a page of reviews with the rating summary.
func (h *Handler) GetFreelancerReviews(c echo.Context) error {
	freelancer := c.Param("username")
	if freelancer == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing freelancer"})
	}

	page := 1
	limit := 10
	if pageParam := c.QueryParam("page"); pageParam != "" {
		if p, err := strconv.Atoi(pageParam); err == nil && p > 0 {
			page = p
		}
	}
	if limitParam := c.QueryParam("limit"); limitParam != "" {
		if l, err := strconv.Atoi(limitParam); err == nil && l > 0 && l <= 50 {
			limit = l
		}
	}

	reviews, err := h.orders.ListReviews(c.Request().Context(), freelancer)
	if err != nil {
		h.logger.Error("list reviews failed", "freelancer", freelancer, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch reviews"})
	}

	summary := Summarize(freelancer, reviews)
	start := (page - 1) * limit
	if start > len(reviews) {
		start = len(reviews)
	}
	end := start + limit
	if end > len(reviews) {
		end = len(reviews)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"summary": summary,
		"reviews": reviews[start:end],
		"page":    page,
		"limit":   limit,
		"total":   len(reviews),
	})
}
