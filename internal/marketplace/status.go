package marketplace

import "fmt"

// transitions lists the statuses reachable from each non-terminal status.
var transitions = map[Status][]Status{
	StatusPending:     {StatusAccepted, StatusRejected, StatusNegotiating, StatusCancelled},
	StatusNegotiating: {StatusAccepted, StatusRejected, StatusNegotiating, StatusCancelled},
	StatusAccepted:    {StatusNegotiating, StatusInProgress, StatusDisputed, StatusCancelled},
	StatusDisputed:    {StatusInProgress, StatusCancelled},
	StatusInProgress:  {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions leave s.
func (s Status) Terminal() bool {
	_, ok := transitions[s]
	return !ok
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusNegotiating,
		StatusInProgress, StatusCompleted, StatusCancelled, StatusDisputed:
		return true
	}
	return false
}

// TransitionError describes a rejected status change.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("marketplace: invalid transition %s -> %s", e.From, e.To)
}

// Transition moves o to the next status or returns a *TransitionError.
func (o *Order) Transition(to Status) error {
	if !CanTransition(o.Status, to) {
		return &TransitionError{From: o.Status, To: to}
	}
	o.Status = to
	return nil
}
