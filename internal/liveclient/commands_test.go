package liveclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/fieldhub/internal/coordination"
	"github.com/sudo-init-do/fieldhub/internal/marketplace"
	"github.com/sudo-init-do/fieldhub/internal/modalqueue"
)

func TestParseCommand(t *testing.T) {
	def := Defaults{City: "lagos", Currency: "NGN"}

	event, payload, err := ParseCommand("order fola 150 fix the kitchen sink", def)
	require.NoError(t, err)
	assert.Equal(t, coordination.EventNewOrder, event)
	req := payload.(coordination.SendOrderRequest)
	assert.NotEmpty(t, req.OrderID)
	assert.Equal(t, "fola", req.FreelancerUsername)
	assert.Equal(t, 150.0, req.Price)
	assert.Equal(t, "fix the kitchen sink", req.Description)
	assert.Equal(t, "lagos", req.City)
	assert.Equal(t, "NGN", req.Currency)

	event, payload, err = ParseCommand("location o1 6.5 3.4 12 Marina Rd", def)
	require.NoError(t, err)
	assert.Equal(t, coordination.EventLocationShared, event)
	assert.Equal(t, coordination.LocationRequest{OrderID: "o1", Lat: 6.5, Lng: 3.4, Address: "12 Marina Rd"}, payload)

	event, payload, err = ParseCommand("confirm o1 no", def)
	require.NoError(t, err)
	assert.Equal(t, coordination.EventArrivalConfirmed, event)
	assert.False(t, payload.(coordination.ArrivalRequest).Confirmed)

	for _, bad := range []string{"", "order fola", "order fola -5 x", "counter o1 abc", "review o1 five", "dance"} {
		_, _, err := ParseCommand(bad, def)
		assert.ErrorIs(t, err, ErrBadCommand, bad)
	}
}

func TestReply(t *testing.T) {
	o := marketplace.Order{ID: "o1", ClientUsername: "chidi", FreelancerUsername: "fola", Currency: "NGN"}
	offer := modalqueue.Task{Type: modalqueue.TaskNewOrder, Data: coordination.OrderEvent{OrderID: "o1", Order: o}}

	event, payload, ok := Reply(offer, "c 90")
	require.True(t, ok)
	assert.Equal(t, coordination.EventCounterOffer, event)
	counter := payload.(coordination.CounterOfferRequest)
	assert.Equal(t, 90.0, counter.OfferedPrice)
	assert.Equal(t, "chidi", counter.ClientUsername)
	assert.Equal(t, "fola", counter.FreelancerUsername)

	event, _, ok = Reply(offer, "a")
	assert.True(t, ok)
	assert.Equal(t, coordination.EventOrderAccepted, event)

	_, _, ok = Reply(offer, "")
	assert.False(t, ok)

	review := modalqueue.Task{Type: modalqueue.TaskReviewRequest, Data: o}
	event, payload, ok = Reply(review, "5 great work")
	require.True(t, ok)
	assert.Equal(t, coordination.EventReviewSubmitted, event)
	assert.Equal(t, coordination.ReviewRequest{OrderID: "o1", Rating: 5, Comment: "great work"}, payload)

	update := modalqueue.Task{Type: modalqueue.TaskOrderUpdate, Data: o}
	_, _, ok = Reply(update, "y")
	assert.False(t, ok)
	assert.Contains(t, Describe(update), "enter to dismiss")
}
