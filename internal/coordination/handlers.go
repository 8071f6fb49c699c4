package coordination

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sudo-init-do/fieldhub/internal/durable"
	"github.com/sudo-init-do/fieldhub/internal/marketplace"
	"github.com/sudo-init-do/fieldhub/internal/presence"
)

// SendOrder creates an order from a client to a freelancer. Both durable
// copies are written first. The order enters the transient store only when
// the freelancer is online; otherwise the durable copies are the only record.
// Repeating the same order id re-delivers the existing order, whether it is
// still live or only in the client's durable copy.
func (c *Coordinator) SendOrder(ctx context.Context, actor Actor, req SendOrderRequest) (Outcome, error) {
	const action = EventNewOrder
	switch {
	case actor.Role != marketplace.RoleClient:
		return Outcome{}, c.fail(actor, action, req.OrderID, fmt.Errorf("%w: only clients send orders", ErrForbiddenRole))
	case req.OrderID == "" || req.FreelancerUsername == "":
		return Outcome{}, c.fail(actor, action, req.OrderID, fmt.Errorf("%w: order id and freelancer are required", ErrInvalidRequest))
	case req.FreelancerUsername == actor.Username:
		return Outcome{}, c.fail(actor, action, req.OrderID, fmt.Errorf("%w: cannot order from yourself", ErrInvalidRequest))
	case req.Price < 0:
		return Outcome{}, c.fail(actor, action, req.OrderID, fmt.Errorf("%w: negative price", ErrInvalidRequest))
	}

	unlock := c.locks.Lock(req.OrderID)
	defer unlock()

	if existing, ok := c.store.Get(req.OrderID); ok {
		if existing.ClientUsername != actor.Username {
			return Outcome{}, c.fail(actor, action, req.OrderID, ErrNotParticipant)
		}
		delivered := c.notify(ctx, actor, existing.FreelancerUsername, action, OrderEvent{
			OrderID: existing.ID, Actor: actor.Username, Order: existing,
		})
		return Outcome{Order: existing, Delivered: delivered}, nil
	}

	// A released order only lives in durable storage. Re-sending it must not
	// restart it as pending.
	fctx, cancel := context.WithTimeout(ctx, c.timeout)
	stored, err := c.repo.FindOrder(fctx, actor.Username, req.OrderID)
	cancel()
	switch {
	case err == nil:
		if stored.ClientUsername != actor.Username {
			return Outcome{}, c.fail(actor, action, req.OrderID, ErrNotParticipant)
		}
		if stored.Status.Terminal() {
			c.logger.Info("action on resolved order ignored", "order_id", req.OrderID, "action", action, "actor", actor.Username)
			return Outcome{Order: stored}, ErrOrderResolved
		}
		delivered := c.notify(ctx, actor, stored.FreelancerUsername, action, OrderEvent{
			OrderID: stored.ID, Actor: actor.Username, Order: stored,
		})
		return Outcome{Order: stored, Delivered: delivered}, nil
	case !errors.Is(err, durable.ErrOrderNotFound):
		return Outcome{}, c.fail(actor, action, req.OrderID, fmt.Errorf("%w: find order: %w", ErrPersistence, err))
	}

	now := c.now()
	city := req.City
	if city == "" {
		city = actor.City
	}
	order := marketplace.Order{
		ID:                 req.OrderID,
		ClientUsername:     actor.Username,
		FreelancerUsername: req.FreelancerUsername,
		Description:        req.Description,
		City:               city,
		Status:             marketplace.StatusPending,
		Price:              req.Price,
		Currency:           req.Currency,
		ExpectedReachTime:  req.ExpectedReachTime,
		CreatedAt:          now,
		LastUpdated:        now,
		Revision:           1,
	}
	if err := c.persist(ctx, marketplace.UpdateCreate, order); err != nil {
		return Outcome{}, c.fail(actor, action, req.OrderID, err)
	}

	if c.presence.IsOnline(req.FreelancerUsername) {
		order, _ = c.store.Create(req.OrderID, order)
	}
	delivered := c.notify(ctx, actor, req.FreelancerUsername, action, OrderEvent{
		OrderID: order.ID, Actor: actor.Username, Order: order,
	})
	return Outcome{Order: order, Delivered: delivered}, nil
}

// Accept settles the price at the list price of a pending order or the
// latest offer of a negotiating one. A pending order is accepted by the
// freelancer; a negotiating one by whoever received the latest offer. A
// request price, when given, must match; a different price is a counter-offer.
func (c *Coordinator) Accept(ctx context.Context, actor Actor, req AcceptRequest) (Outcome, error) {
	return c.run(ctx, actor, req.OrderID, mutation{
		action: EventOrderAccepted,
		update: marketplace.UpdateAccept,
		apply: func(o *marketplace.Order) error {
			if err := requireTurn(*o, actor.Username); err != nil {
				return err
			}
			price := o.Price
			if o.Negotiation.IsNegotiating {
				price = o.Negotiation.OfferedPrice
			}
			if req.Price != 0 && req.Price != price {
				return fmt.Errorf("%w: price %.2f does not match the offer of %.2f", ErrInvalidRequest, req.Price, price)
			}
			if err := transition(o, marketplace.StatusAccepted); err != nil {
				return err
			}
			o.Price = price
			o.Negotiation.IsNegotiating = false
			o.Negotiation.CurrentOfferTo = ""
			o.Negotiation.OfferedPrice = price
			return nil
		},
	})
}

// Reject declines an order still under discussion. Both durable copies are
// deleted and the transient entry is dropped.
func (c *Coordinator) Reject(ctx context.Context, actor Actor, req RejectRequest) (Outcome, error) {
	return c.run(ctx, actor, req.OrderID, mutation{
		action: EventOrderRejected,
		update: marketplace.UpdateReject,
		remove: true,
		reason: req.Reason,
		apply: func(o *marketplace.Order) error {
			if err := requireTurn(*o, actor.Username); err != nil {
				return err
			}
			return transition(o, marketplace.StatusRejected)
		},
	})
}

// CounterOffer proposes a new price to the other party. When the order is
// unknown to both the transient store and the actor's durable copy it is
// rebuilt from the request so the recipient still gets a live prompt.
func (c *Coordinator) CounterOffer(ctx context.Context, actor Actor, req CounterOfferRequest) (Outcome, error) {
	if req.OfferedPrice <= 0 {
		return Outcome{}, c.fail(actor, EventCounterOffer, req.OrderID, fmt.Errorf("%w: offered price must be positive", ErrInvalidRequest))
	}
	return c.run(ctx, actor, req.OrderID, mutation{
		action: EventCounterOffer,
		update: marketplace.UpdateNegotiation,
		rebuild: func() (marketplace.Order, bool) {
			if req.ClientUsername == "" || req.FreelancerUsername == "" {
				return marketplace.Order{}, false
			}
			now := c.now()
			return marketplace.Order{
				ID:                 req.OrderID,
				ClientUsername:     req.ClientUsername,
				FreelancerUsername: req.FreelancerUsername,
				Description:        req.Description,
				City:               req.City,
				Status:             marketplace.StatusPending,
				Price:              req.OfferedPrice,
				Currency:           req.Currency,
				CreatedAt:          now,
				LastUpdated:        now,
			}, true
		},
		apply: func(o *marketplace.Order) error {
			if err := transition(o, marketplace.StatusNegotiating); err != nil {
				return err
			}
			o.Negotiation = marketplace.Negotiation{
				IsNegotiating:  true,
				CurrentOfferTo: o.Counterparty(actor.Username),
				OfferedPrice:   req.OfferedPrice,
				LastOfferBy:    actor.Username,
			}
			return nil
		},
	})
}

// ShareLocation attaches the client's coordinates to an accepted order. The
// freelancer receives them together with the prompt to mark arrival.
func (c *Coordinator) ShareLocation(ctx context.Context, actor Actor, req LocationRequest) (Outcome, error) {
	if req.Lat < -90 || req.Lat > 90 || req.Lng < -180 || req.Lng > 180 {
		return Outcome{}, c.fail(actor, EventLocationShared, req.OrderID, fmt.Errorf("%w: coordinates out of range", ErrInvalidRequest))
	}
	return c.run(ctx, actor, req.OrderID, mutation{
		action: EventLocationShared,
		update: marketplace.UpdateLocation,
		apply: func(o *marketplace.Order) error {
			if err := requireRole(*o, actor.Username, marketplace.RoleClient); err != nil {
				return err
			}
			if o.Status != marketplace.StatusAccepted {
				return fmt.Errorf("%w: location is shared on accepted orders", ErrPrecondition)
			}
			o.ClientLocation = &marketplace.Location{Lat: req.Lat, Lng: req.Lng, Address: strings.TrimSpace(req.Address)}
			return nil
		},
	})
}

// MarkReached records the freelancer's arrival. The status stays accepted
// until the client answers.
func (c *Coordinator) MarkReached(ctx context.Context, actor Actor, req ReachedRequest) (Outcome, error) {
	return c.run(ctx, actor, req.OrderID, mutation{
		action: EventFreelancerReached,
		update: marketplace.UpdateReached,
		apply: func(o *marketplace.Order) error {
			if err := requireRole(*o, actor.Username, marketplace.RoleFreelancer); err != nil {
				return err
			}
			if o.Status != marketplace.StatusAccepted {
				return fmt.Errorf("%w: arrival is marked on accepted orders", ErrPrecondition)
			}
			now := c.now()
			o.IsReached = marketplace.Reach{Value: true, Time: &now, Confirmed: false}
			return nil
		},
	})
}

// ConfirmArrival records the client's answer: a confirmation starts the
// work, a denial moves the order to disputed.
func (c *Coordinator) ConfirmArrival(ctx context.Context, actor Actor, req ArrivalRequest) (Outcome, error) {
	return c.run(ctx, actor, req.OrderID, mutation{
		action: EventArrivalConfirmed,
		update: marketplace.UpdateArrival,
		apply: func(o *marketplace.Order) error {
			if err := requireRole(*o, actor.Username, marketplace.RoleClient); err != nil {
				return err
			}
			if !o.IsReached.Value {
				return fmt.Errorf("%w: freelancer has not marked arrival", ErrPrecondition)
			}
			to := marketplace.StatusDisputed
			if req.Confirmed {
				to = marketplace.StatusInProgress
			}
			if err := transition(o, to); err != nil {
				return err
			}
			o.IsReached.Confirmed = req.Confirmed
			return nil
		},
	})
}

// Complete closes an in-progress order with the freelancer's proof of work.
func (c *Coordinator) Complete(ctx context.Context, actor Actor, req CompleteRequest) (Outcome, error) {
	return c.run(ctx, actor, req.OrderID, mutation{
		action: EventOrderCompleted,
		update: marketplace.UpdateCompletion,
		remove: true,
		apply: func(o *marketplace.Order) error {
			if err := requireRole(*o, actor.Username, marketplace.RoleFreelancer); err != nil {
				return err
			}
			if err := transition(o, marketplace.StatusCompleted); err != nil {
				return err
			}
			o.Proof = &marketplace.Proof{Note: strings.TrimSpace(req.Note), BlobIDs: append([]string(nil), req.BlobIDs...)}
			return nil
		},
	})
}

// Cancel ends a non-terminal order on behalf of either participant.
func (c *Coordinator) Cancel(ctx context.Context, actor Actor, req CancelRequest) (Outcome, error) {
	return c.run(ctx, actor, req.OrderID, mutation{
		action: EventOrderCancelled,
		update: marketplace.UpdateCancel,
		remove: true,
		reason: req.Reason,
		apply: func(o *marketplace.Order) error {
			return transition(o, marketplace.StatusCancelled)
		},
	})
}

// SubmitReview attaches the client's rating to the freelancer's profile. It
// reads the client's durable copy, never the transient store, and is always
// written directly.
func (c *Coordinator) SubmitReview(ctx context.Context, actor Actor, req ReviewRequest) (marketplace.Review, error) {
	const action = EventReviewSubmitted
	if req.OrderID == "" || req.Rating < 1 || req.Rating > 5 {
		return marketplace.Review{}, c.fail(actor, action, req.OrderID, fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidRequest))
	}

	pctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	o, err := c.repo.FindOrder(pctx, actor.Username, req.OrderID)
	if err != nil {
		return marketplace.Review{}, c.fail(actor, action, req.OrderID, fmt.Errorf("%w: %w", ErrOrderNotFound, err))
	}
	if o.ClientUsername != actor.Username {
		return marketplace.Review{}, c.fail(actor, action, req.OrderID, fmt.Errorf("%w: only the client may review", ErrForbiddenRole))
	}
	if o.Status != marketplace.StatusCompleted {
		return marketplace.Review{}, c.fail(actor, action, req.OrderID, fmt.Errorf("%w: order is %s", ErrPrecondition, o.Status))
	}

	rv := marketplace.Review{
		OrderID:            o.ID,
		FreelancerUsername: o.FreelancerUsername,
		ClientUsername:     o.ClientUsername,
		Rating:             req.Rating,
		Comment:            strings.TrimSpace(req.Comment),
		CreatedAt:          c.now(),
	}
	if err := c.repo.SaveReview(pctx, rv); err != nil {
		return marketplace.Review{}, c.fail(actor, action, req.OrderID, fmt.Errorf("%w: review: %w", ErrPersistence, err))
	}

	c.router.Deliver(o.FreelancerUsername, action, rv)
	c.router.Deliver(actor.Username, EventActionAck, Ack{OrderID: o.ID, Action: action, Delivered: true})
	return rv, nil
}

// PostJob broadcasts an open request to online freelancers in the job's
// city. Nothing is stored.
func (c *Coordinator) PostJob(ctx context.Context, actor Actor, req PostJobRequest) (int, error) {
	const action = EventJobPosted
	if actor.Role != marketplace.RoleClient {
		return 0, c.fail(actor, action, "", fmt.Errorf("%w: only clients post jobs", ErrForbiddenRole))
	}
	city := req.City
	if city == "" {
		city = actor.City
	}
	if req.JobID == "" || req.Title == "" || city == "" {
		return 0, c.fail(actor, action, "", fmt.Errorf("%w: job id, title and city are required", ErrInvalidRequest))
	}

	n := c.router.Broadcast(presence.InCity(city, marketplace.RoleFreelancer), action, JobPost{
		JobID:       req.JobID,
		Client:      actor.Username,
		City:        city,
		Title:       req.Title,
		Description: req.Description,
		Budget:      req.Budget,
		Currency:    req.Currency,
		PostedAt:    c.now(),
	})
	c.logger.Info("job posted", "job_id", req.JobID, "city", city, "recipients", n)
	c.router.Deliver(actor.Username, EventActionAck, Ack{Action: action, Delivered: n > 0})
	return n, nil
}

// Disconnect runs after username's last connection is gone. Orders whose
// counterparty is also offline are snapshotted to durable storage and
// dropped from the transient store; the rest stay and the counterparty is
// told the other side left.
func (c *Coordinator) Disconnect(ctx context.Context, username string) {
	if c.presence.IsOnline(username) {
		return
	}
	for _, o := range c.store.OrdersFor(username) {
		c.release(ctx, username, o.ID)
	}
}

func (c *Coordinator) release(ctx context.Context, username, orderID string) {
	unlock := c.locks.Lock(orderID)
	defer unlock()

	o, ok := c.store.Get(orderID)
	if !ok {
		return
	}
	other := o.Counterparty(username)
	if c.presence.IsOnline(other) {
		c.router.Deliver(other, EventDisconnect, PresenceNotice{Username: username, OrderID: orderID})
		return
	}

	if err := c.persist(ctx, marketplace.UpdateSnapshot, o); err != nil {
		c.logger.Error("snapshot on disconnect failed", "order_id", orderID, "username", username, "error", err)
		return
	}
	c.store.Remove(orderID)
	c.logger.Info("order saved and released", "event", EventSaveToDatabase, "order_id", orderID, "status", o.Status)
}

// Rehydrate sends a reconnecting user the orders still in flight for them
// and returns how many there were.
func (c *Coordinator) Rehydrate(username string) int {
	orders := c.store.OrdersFor(username)
	if orders == nil {
		orders = []marketplace.Order{}
	}
	c.router.Deliver(username, EventRehydrate, Rehydration{Orders: orders})
	return len(orders)
}
