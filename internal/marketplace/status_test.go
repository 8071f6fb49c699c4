package marketplace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusAccepted, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusInProgress, false},
		{StatusNegotiating, StatusAccepted, true},
		{StatusAccepted, StatusNegotiating, true},
		{StatusAccepted, StatusInProgress, true},
		{StatusAccepted, StatusDisputed, true},
		{StatusAccepted, StatusRejected, false},
		{StatusDisputed, StatusInProgress, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusCompleted, StatusCancelled, false},
		{StatusRejected, StatusAccepted, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}

	for _, s := range []Status{StatusRejected, StatusCompleted, StatusCancelled} {
		assert.True(t, s.Terminal(), s)
	}
	assert.False(t, StatusDisputed.Terminal())
}

func TestOrder_TransitionError(t *testing.T) {
	o := Order{Status: StatusCompleted}
	err := o.Transition(StatusAccepted)
	var terr *TransitionError
	assert.ErrorAs(t, err, &terr)
	assert.Equal(t, StatusCompleted, o.Status)
}

func TestOrder_CloneIsDeep(t *testing.T) {
	o := Order{ClientLocation: &Location{Lat: 1}, Proof: &Proof{BlobIDs: []string{"x"}}}
	c := o.Clone()
	c.ClientLocation.Lat = 2
	c.Proof.BlobIDs[0] = "y"
	assert.Equal(t, 1.0, o.ClientLocation.Lat)
	assert.Equal(t, "x", o.Proof.BlobIDs[0])
	assert.Equal(t, "fola", Order{ClientUsername: "chidi", FreelancerUsername: "fola"}.Counterparty("chidi"))
}
