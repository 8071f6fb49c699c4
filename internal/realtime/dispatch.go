package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sudo-init-do/fieldhub/internal/coordination"
)

// dispatch decodes one inbound envelope and runs the matching handler.
// Coordinator errors are already reported to the actor; only decoding
// problems and panics are answered here.
func (g *Gateway) dispatch(ctx context.Context, connID string, actor coordination.Actor, msg inboundEvent) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("live handler panic", "event", msg.Type, "username", actor.Username, "panic", fmt.Sprint(r))
			g.reject(connID, msg.Type, "internal error")
		}
	}()

	var err error
	switch msg.Type {
	case coordination.EventNewOrder:
		var req coordination.SendOrderRequest
		if err = decode(msg.Data, &req); err == nil {
			_, err = g.coord.SendOrder(ctx, actor, req)
		}
	case coordination.EventOrderAccepted:
		var req coordination.AcceptRequest
		if err = decode(msg.Data, &req); err == nil {
			_, err = g.coord.Accept(ctx, actor, req)
		}
	case coordination.EventOrderRejected:
		var req coordination.RejectRequest
		if err = decode(msg.Data, &req); err == nil {
			_, err = g.coord.Reject(ctx, actor, req)
		}
	case coordination.EventCounterOffer:
		var req coordination.CounterOfferRequest
		if err = decode(msg.Data, &req); err == nil {
			_, err = g.coord.CounterOffer(ctx, actor, req)
		}
	case coordination.EventLocationShared:
		var req coordination.LocationRequest
		if err = decode(msg.Data, &req); err == nil {
			_, err = g.coord.ShareLocation(ctx, actor, req)
		}
	case coordination.EventFreelancerReached:
		var req coordination.ReachedRequest
		if err = decode(msg.Data, &req); err == nil {
			_, err = g.coord.MarkReached(ctx, actor, req)
		}
	case coordination.EventArrivalConfirmed:
		var req coordination.ArrivalRequest
		if err = decode(msg.Data, &req); err == nil {
			_, err = g.coord.ConfirmArrival(ctx, actor, req)
		}
	case coordination.EventOrderCompleted:
		var req coordination.CompleteRequest
		if err = decode(msg.Data, &req); err == nil {
			_, err = g.coord.Complete(ctx, actor, req)
		}
	case coordination.EventOrderCancelled:
		var req coordination.CancelRequest
		if err = decode(msg.Data, &req); err == nil {
			_, err = g.coord.Cancel(ctx, actor, req)
		}
	case coordination.EventReviewSubmitted:
		var req coordination.ReviewRequest
		if err = decode(msg.Data, &req); err == nil {
			_, err = g.coord.SubmitReview(ctx, actor, req)
		}
	case coordination.EventJobPosted:
		var req coordination.PostJobRequest
		if err = decode(msg.Data, &req); err == nil {
			_, err = g.coord.PostJob(ctx, actor, req)
		}
	case coordination.EventRehydrate:
		g.coord.Rehydrate(actor.Username)
	default:
		g.reject(connID, msg.Type, "unknown event")
		return
	}

	var derr *decodeError
	if errors.As(err, &derr) {
		g.reject(connID, msg.Type, derr.Error())
		return
	}
	if err != nil {
		g.logger.Debug("live action rejected", "event", msg.Type, "username", actor.Username, "error", err)
	}
}

type decodeError struct{ err error }

func (e *decodeError) Error() string { return "malformed payload: " + e.err.Error() }

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return &decodeError{err: fmt.Errorf("empty data")}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &decodeError{err: err}
	}
	return nil
}
