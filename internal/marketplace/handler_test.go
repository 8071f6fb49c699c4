package marketplace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	orders  []Order
	reviews []Review
}

func (f *fakeReader) ListOrders(_ context.Context, owner string) ([]Order, error) {
	var out []Order
	for _, o := range f.orders {
		if o.HasParticipant(owner) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeReader) ListReviews(_ context.Context, freelancer string) ([]Review, error) {
	var out []Review
	for _, r := range f.reviews {
		if r.FreelancerUsername == freelancer {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeLive []Order

func (f fakeLive) OrdersFor(string) []Order { return f }

func TestGetMyOrders_OverlaysLiveCopies(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	reader := &fakeReader{orders: []Order{
		{ID: "a", ClientUsername: "chidi", FreelancerUsername: "fola", Status: StatusPending, Revision: 1, CreatedAt: t0},
		{ID: "b", ClientUsername: "chidi", FreelancerUsername: "fola", Status: StatusCompleted, Revision: 5, CreatedAt: t0.Add(time.Hour)},
	}}
	live := fakeLive{{ID: "a", ClientUsername: "chidi", FreelancerUsername: "fola", Status: StatusNegotiating, Revision: 2, CreatedAt: t0, IsRealtime: true}}
	h := NewHandler(reader, live, nil)
	e := echo.New()

	get := func(query string) (int, []Order) {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/orders/me"+query, nil), rec)
		c.Set("username", "chidi")
		require.NoError(t, h.GetMyOrders(c))
		var body struct {
			Orders []Order `json:"orders"`
		}
		_ = json.Unmarshal(rec.Body.Bytes(), &body)
		return rec.Code, body.Orders
	}

	code, orders := get("")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, orders, 2)
	assert.Equal(t, "b", orders[0].ID)
	assert.Equal(t, StatusNegotiating, orders[1].Status)

	_, orders = get("?status=completed")
	require.Len(t, orders, 1)
	assert.Equal(t, "b", orders[0].ID)

	code, _ = get("?status=bogus")
	assert.Equal(t, http.StatusBadRequest, code)

	rec := httptest.NewRecorder()
	require.NoError(t, h.GetMyOrders(e.NewContext(httptest.NewRequest(http.MethodGet, "/orders/me", nil), rec)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetFreelancerReviews_Paginates(t *testing.T) {
	reader := &fakeReader{}
	for i, rating := range []int{5, 4, 5, 3} {
		reader.reviews = append(reader.reviews, Review{
			ID: string(rune('a' + i)), OrderID: string(rune('a' + i)), FreelancerUsername: "fola", Rating: rating,
		})
	}
	h := NewHandler(reader, nil, nil)
	e := echo.New()
	e.GET("/freelancers/:username/reviews", h.GetFreelancerReviews)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/freelancers/fola/reviews?page=2&limit=3", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Summary RatingSummary `json:"summary"`
		Reviews []Review      `json:"reviews"`
		Total   int           `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 4, body.Total)
	assert.Len(t, body.Reviews, 1)
	assert.InDelta(t, 4.25, body.Summary.AverageRating, 0.001)
	assert.Equal(t, 2, body.Summary.RatingBreakdown[5])
}
