package durable

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/fieldhub/internal/marketplace"
)

func sampleOrder() marketplace.Order {
	return marketplace.Order{
		ID:                 "o1",
		ClientUsername:     "chidi",
		FreelancerUsername: "fola",
		Description:        "fix kitchen sink",
		Status:             marketplace.StatusPending,
		Price:              120,
		Currency:           "NGN",
		CreatedAt:          time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		Revision:           1,
	}
}

func TestMemoryRepository_WritesBothCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.PersistOrderField(ctx, marketplace.OrderUpdate{Type: marketplace.UpdateCreate, Order: sampleOrder()}))

	accepted := sampleOrder()
	accepted.Status = marketplace.StatusAccepted
	accepted.Price = 100
	accepted.Description = "ignored by accept"
	accepted.Revision = 2
	require.NoError(t, repo.PersistOrderField(ctx, marketplace.OrderUpdate{Type: marketplace.UpdateAccept, Order: accepted}))

	for _, owner := range []string{"chidi", "fola"} {
		got, err := repo.FindOrder(ctx, owner, "o1")
		require.NoError(t, err)
		assert.Equal(t, marketplace.StatusAccepted, got.Status, owner)
		assert.Equal(t, 100.0, got.Price, owner)
		assert.Equal(t, "fix kitchen sink", got.Description, owner)
		assert.Equal(t, int64(2), got.Revision, owner)
	}
}

func TestMemoryRepository_UpdateOnMissingRowInsertsWhole(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	o := sampleOrder()
	o.Status = marketplace.StatusNegotiating
	o.Negotiation = marketplace.Negotiation{IsNegotiating: true, CurrentOfferTo: "chidi", OfferedPrice: 90, LastOfferBy: "fola"}
	require.NoError(t, repo.PersistOrderField(ctx, marketplace.OrderUpdate{Type: marketplace.UpdateNegotiation, Order: o}))

	got, err := repo.FindOrder(ctx, "chidi", "o1")
	require.NoError(t, err)
	assert.Equal(t, 90.0, got.Negotiation.OfferedPrice)
	assert.Equal(t, "fix kitchen sink", got.Description)
}

func TestMemoryRepository_DuplicateCreateKeepsFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.PersistOrderField(ctx, marketplace.OrderUpdate{Type: marketplace.UpdateCreate, Order: sampleOrder()}))

	again := sampleOrder()
	again.Price = 1
	require.NoError(t, repo.PersistOrderField(ctx, marketplace.OrderUpdate{Type: marketplace.UpdateCreate, Order: again}))

	got, err := repo.FindOrder(ctx, "fola", "o1")
	require.NoError(t, err)
	assert.Equal(t, 120.0, got.Price)
}

func TestMemoryRepository_RejectDeletesBothCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.PersistOrderField(ctx, marketplace.OrderUpdate{Type: marketplace.UpdateCreate, Order: sampleOrder()}))
	require.NoError(t, repo.PersistOrderField(ctx, marketplace.OrderUpdate{Type: marketplace.UpdateReject, Order: sampleOrder()}))

	_, err := repo.FindOrder(ctx, "chidi", "o1")
	assert.ErrorIs(t, err, ErrOrderNotFound)
	_, err = repo.FindOrder(ctx, "fola", "o1")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestMemoryRepository_ValidationAndFailure(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	bad := sampleOrder()
	bad.FreelancerUsername = ""
	assert.ErrorIs(t, repo.PersistOrderField(ctx, marketplace.OrderUpdate{Type: marketplace.UpdateCreate, Order: bad}), ErrInvalidUpdate)

	boom := errors.New("disk on fire")
	repo.FailWith(boom)
	assert.ErrorIs(t, repo.PersistOrderField(ctx, marketplace.OrderUpdate{Type: marketplace.UpdateCreate, Order: sampleOrder()}), boom)
	repo.FailWith(nil)
	assert.NoError(t, repo.PersistOrderField(ctx, marketplace.OrderUpdate{Type: marketplace.UpdateCreate, Order: sampleOrder()}))
}

func TestMemoryRepository_Reviews(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	require.NoError(t, repo.SaveReview(ctx, marketplace.Review{OrderID: "o1", FreelancerUsername: "fola", ClientUsername: "chidi", Rating: 5}))
	require.NoError(t, repo.SaveReview(ctx, marketplace.Review{OrderID: "o2", FreelancerUsername: "fola", ClientUsername: "ade", Rating: 3}))
	assert.ErrorIs(t, repo.SaveReview(ctx, marketplace.Review{OrderID: "o1", FreelancerUsername: "fola", Rating: 1}), ErrDuplicateReview)

	reviews, err := repo.ListReviews(ctx, "fola")
	require.NoError(t, err)
	require.Len(t, reviews, 2)

	sum := marketplace.Summarize("fola", reviews)
	assert.Equal(t, 2, sum.TotalReviews)
	assert.InDelta(t, 4.0, sum.AverageRating, 0.001)
}

func TestUpsertSQL_CoversUpdateType(t *testing.T) {
	q, err := upsertSQL(marketplace.UpdateArrival)
	require.NoError(t, err)
	assert.Contains(t, q, "status = EXCLUDED.status")
	assert.Contains(t, q, "is_reached = EXCLUDED.is_reached")
	assert.NotContains(t, q, "price = EXCLUDED.price")

	q, err = upsertSQL(marketplace.UpdateCreate)
	require.NoError(t, err)
	assert.Contains(t, q, "DO NOTHING")

	_, err = upsertSQL("bogus")
	assert.Error(t, err)
}
