package orderstore

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/fieldhub/internal/marketplace"
)

func newOrder(id string) marketplace.Order {
	return marketplace.Order{
		ID:                 id,
		ClientUsername:     "chidi",
		FreelancerUsername: "fola",
		Status:             marketplace.StatusPending,
		Price:              120,
		Currency:           "NGN",
	}
}

func TestStore_CreateIsIdempotent(t *testing.T) {
	s := New(nil)

	first, created := s.Create("o1", newOrder("o1"))
	require.True(t, created)
	assert.True(t, first.IsRealtime)
	assert.False(t, first.CreatedAt.IsZero())

	dup := newOrder("o1")
	dup.Price = 999
	second, created := s.Create("o1", dup)
	assert.False(t, created)
	assert.Equal(t, 120.0, second.Price)

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, s.IndexSize("chidi"))
	assert.Equal(t, 1, s.IndexSize("fola"))
}

func TestStore_UpdateMergesAndBumpsTimestamp(t *testing.T) {
	clock := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	s := New(nil).WithClock(func() time.Time { return clock })
	s.Create("o1", newOrder("o1"))

	clock = clock.Add(time.Minute)
	got, ok := s.Update("o1", func(o *marketplace.Order) {
		o.Status = marketplace.StatusAccepted
		o.Price = 100
		o.ClientUsername = "mallory"
	})
	require.True(t, ok)
	assert.Equal(t, marketplace.StatusAccepted, got.Status)
	assert.Equal(t, 100.0, got.Price)
	assert.Equal(t, "chidi", got.ClientUsername, "participants are immutable")
	assert.Equal(t, clock, got.LastUpdated)
	assert.True(t, got.CreatedAt.Before(got.LastUpdated))
	assert.Equal(t, int64(1), got.Revision)
}

func TestStore_UpdateMissingReturnsFalse(t *testing.T) {
	s := New(nil)
	_, ok := s.Update("missing", func(o *marketplace.Order) { o.Price = 1 })
	assert.False(t, ok)
}

func TestStore_UpdatePanicLeavesOrderIntact(t *testing.T) {
	s := New(nil)
	s.Create("o1", newOrder("o1"))

	assert.Panics(t, func() {
		s.Update("o1", func(o *marketplace.Order) {
			o.Price = 1
			panic("boom")
		})
	})

	got, ok := s.Get("o1")
	require.True(t, ok)
	assert.Equal(t, 120.0, got.Price)
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := New(nil)
	o := newOrder("o1")
	o.Proof = &marketplace.Proof{BlobIDs: []string{"b1"}}
	s.Create("o1", o)

	got, _ := s.Get("o1")
	got.Proof.BlobIDs[0] = "tampered"

	again, _ := s.Get("o1")
	assert.Equal(t, "b1", again.Proof.BlobIDs[0])
}

func TestStore_RemoveClearsBothIndices(t *testing.T) {
	s := New(nil)
	s.Create("o1", newOrder("o1"))
	s.Create("o2", newOrder("o2"))

	require.True(t, s.Remove("o1"))
	assert.False(t, s.Remove("o1"))

	assert.Len(t, s.OrdersFor("chidi"), 1)
	assert.Len(t, s.OrdersFor("fola"), 1)

	s.Remove("o2")
	assert.Zero(t, s.IndexSize("chidi"))
	assert.Zero(t, s.IndexSize("fola"))
	assert.Empty(t, s.OrdersFor("fola"))
}

func TestStore_OrdersForSortedByCreation(t *testing.T) {
	clock := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	s := New(nil).WithClock(func() time.Time { return clock })
	for i := 3; i >= 1; i-- {
		s.Create(fmt.Sprintf("o%d", i), newOrder(""))
		clock = clock.Add(time.Second)
	}

	got := s.OrdersFor("fola")
	require.Len(t, got, 3)
	assert.Equal(t, []string{"o3", "o2", "o1"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestStore_ConcurrentCreateSameID(t *testing.T) {
	s := New(nil)
	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, created := s.Create("o1", newOrder("o1")); created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, createdCount)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, s.IndexSize("chidi"))
	assert.Equal(t, 1, s.IndexSize("fola"))
}
