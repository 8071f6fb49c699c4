package coordination

import "errors"

var (
	// ErrOrderNotFound means neither the transient store nor the actor's
	// durable copy knows the order.
	ErrOrderNotFound = errors.New("coordination: order not found")
	// ErrOrderResolved means the order already reached a terminal status in
	// durable storage. Handlers treat it as a no-op.
	ErrOrderResolved  = errors.New("coordination: order already resolved")
	ErrNotParticipant = errors.New("coordination: actor is not a participant")
	ErrForbiddenRole  = errors.New("coordination: action not allowed for role")
	// ErrOutOfTurn rejects answering an offer that was made to the other party.
	ErrOutOfTurn      = errors.New("coordination: offer is awaiting the other party")
	ErrInvalidRequest = errors.New("coordination: invalid request")
	// ErrPrecondition wraps state machine violations.
	ErrPrecondition = errors.New("coordination: order state does not allow action")
	// ErrPersistence wraps durable write failures. The transient store is
	// untouched when it is returned.
	ErrPersistence = errors.New("coordination: persist order")
)
