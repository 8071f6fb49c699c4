// Package coordination implements the live order protocol: each inbound
// action is checked against the order state machine, written to both durable
// copies, committed to the transient store and then delivered to the
// counterparty.
package coordination

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/sudo-init-do/fieldhub/internal/delivery"
	"github.com/sudo-init-do/fieldhub/internal/durable"
	"github.com/sudo-init-do/fieldhub/internal/marketplace"
	"github.com/sudo-init-do/fieldhub/internal/orderstore"
	"github.com/sudo-init-do/fieldhub/internal/presence"
)

// Persister is the subset of durable.Repository the protocol writes through.
type Persister interface {
	PersistOrderField(ctx context.Context, update marketplace.OrderUpdate) error
	FindOrder(ctx context.Context, owner, orderID string) (marketplace.Order, error)
	SaveReview(ctx context.Context, review marketplace.Review) error
}

type Deliverer interface {
	Deliver(target, event string, payload any) delivery.Result
	Broadcast(match func(presence.Entry) bool, event string, payload any) int
}

type Presence interface {
	IsOnline(username string) bool
}

// Alerter records a notice for a user who missed a live event.
type Alerter interface {
	OfflineNotice(ctx context.Context, username, event, orderID, actor string) error
}

const defaultPersistTimeout = 5 * time.Second

type Coordinator struct {
	store    *orderstore.Store
	router   Deliverer
	presence Presence
	repo     Persister
	alerts   Alerter
	locks    *keyedMutex
	logger   *slog.Logger
	timeout  time.Duration
	now      func() time.Time
}

func New(store *orderstore.Store, router Deliverer, online Presence, repo Persister, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Coordinator{
		store:    store,
		router:   router,
		presence: online,
		repo:     repo,
		locks:    newKeyedMutex(),
		logger:   logger,
		timeout:  defaultPersistTimeout,
		now:      time.Now,
	}
}

// WithAlerter enables offline notices for undelivered events.
func (c *Coordinator) WithAlerter(a Alerter) *Coordinator {
	c.alerts = a
	return c
}

// WithPersistTimeout bounds every durable write.
func (c *Coordinator) WithPersistTimeout(d time.Duration) *Coordinator {
	if d > 0 {
		c.timeout = d
	}
	return c
}

// WithClock overrides time.Now (tests).
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

// mutation describes one state-changing action on an existing order.
type mutation struct {
	action string
	update marketplace.UpdateType
	// recipient picks who receives the event, defaulting to the counterparty.
	recipient func(o marketplace.Order, actor string) string
	apply     func(o *marketplace.Order) error
	// rebuild supplies an order when neither store nor durable copy has it.
	rebuild func() (marketplace.Order, bool)
	remove  bool
	reason  string
}

// run executes m under the order's lock. The durable write happens before
// the transient store is touched, so a failed write leaves the store as it
// was and a successful one is always mirrored in memory.
func (c *Coordinator) run(ctx context.Context, actor Actor, orderID string, m mutation) (Outcome, error) {
	if orderID == "" {
		return Outcome{}, c.fail(actor, m.action, orderID, fmt.Errorf("%w: missing order id", ErrInvalidRequest))
	}

	unlock := c.locks.Lock(orderID)
	defer unlock()

	cur, live, err := c.load(ctx, actor, orderID, m.rebuild)
	if errors.Is(err, ErrOrderResolved) {
		c.logger.Info("action on resolved order ignored", "order_id", orderID, "action", m.action, "actor", actor.Username)
		return Outcome{Order: cur}, err
	}
	if err != nil {
		return Outcome{}, c.fail(actor, m.action, orderID, err)
	}
	if !cur.HasParticipant(actor.Username) {
		return Outcome{}, c.fail(actor, m.action, orderID, ErrNotParticipant)
	}

	next := cur.Clone()
	if err := m.apply(&next); err != nil {
		return Outcome{}, c.fail(actor, m.action, orderID, err)
	}
	next.Revision = cur.Revision + 1
	next.LastUpdated = c.now()

	if err := c.persist(ctx, m.update, next); err != nil {
		return Outcome{}, c.fail(actor, m.action, orderID, err)
	}

	switch {
	case m.remove:
		c.store.Remove(orderID)
	case live:
		if _, ok := c.store.Update(orderID, func(o *marketplace.Order) { *o = next }); !ok {
			c.store.Create(orderID, next)
		}
	default:
		c.store.Create(orderID, next)
	}
	if stored, ok := c.store.Get(orderID); ok {
		next = stored
	}

	target := next.Counterparty(actor.Username)
	if m.recipient != nil {
		target = m.recipient(next, actor.Username)
	}
	delivered := c.notify(ctx, actor, target, m.action, OrderEvent{
		OrderID: orderID,
		Actor:   actor.Username,
		Order:   next,
		Reason:  m.reason,
	})
	return Outcome{Order: next, Delivered: delivered}, nil
}

// load returns the current order and whether it came from the transient
// store. A miss falls back to the actor's durable copy and then to rebuild.
func (c *Coordinator) load(ctx context.Context, actor Actor, orderID string, rebuild func() (marketplace.Order, bool)) (marketplace.Order, bool, error) {
	if o, ok := c.store.Get(orderID); ok {
		return o, true, nil
	}

	fctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	o, err := c.repo.FindOrder(fctx, actor.Username, orderID)
	switch {
	case err == nil:
		if o.Status.Terminal() {
			return o, false, ErrOrderResolved
		}
		c.logger.Debug("order restored from durable copy", "order_id", orderID, "actor", actor.Username)
		return o, false, nil
	case !errors.Is(err, durable.ErrOrderNotFound):
		return marketplace.Order{}, false, fmt.Errorf("%w: find order: %w", ErrPersistence, err)
	}

	if rebuild != nil {
		if o, ok := rebuild(); ok {
			c.logger.Info("order rebuilt from event payload", "order_id", orderID, "actor", actor.Username)
			return o, false, nil
		}
	}
	return marketplace.Order{}, false, ErrOrderNotFound
}

func (c *Coordinator) persist(ctx context.Context, t marketplace.UpdateType, o marketplace.Order) error {
	pctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.repo.PersistOrderField(pctx, marketplace.OrderUpdate{Type: t, Order: o}); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPersistence, t, err)
	}
	return nil
}

// notify delivers event to target, falls back to an offline notice when the
// target is unreachable, and acknowledges the actor.
func (c *Coordinator) notify(ctx context.Context, actor Actor, target, event string, payload OrderEvent) bool {
	delivered := false
	if target != "" {
		delivered = c.router.Deliver(target, event, payload).Delivered
		if !delivered {
			c.offline(ctx, target, event, payload)
			c.router.Deliver(actor.Username, EventSaveToDatabase, OrderEvent{
				OrderID: payload.OrderID,
				Actor:   actor.Username,
				Order:   payload.Order,
				Reason:  target + " is offline",
			})
		}
	}
	c.router.Deliver(actor.Username, EventActionAck, Ack{OrderID: payload.OrderID, Action: event, Delivered: delivered})
	return delivered
}

func (c *Coordinator) offline(ctx context.Context, username, event string, payload OrderEvent) {
	if c.alerts == nil {
		return
	}
	actx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.alerts.OfflineNotice(actx, username, event, payload.OrderID, payload.Actor); err != nil {
		c.logger.Warn("offline notice failed", "username", username, "event", event, "order_id", payload.OrderID, "error", err)
	}
}

// fail reports err to the actor and returns it.
func (c *Coordinator) fail(actor Actor, action, orderID string, err error) error {
	level := slog.LevelWarn
	if errors.Is(err, ErrPersistence) {
		level = slog.LevelError
	}
	c.logger.Log(context.Background(), level, "action failed",
		"action", action, "order_id", orderID, "actor", actor.Username, "error", err)
	c.router.Deliver(actor.Username, EventActionFailed, Failure{OrderID: orderID, Action: action, Reason: err.Error()})
	return err
}

func transition(o *marketplace.Order, to marketplace.Status) error {
	if err := o.Transition(to); err != nil {
		return fmt.Errorf("%w: %w", ErrPrecondition, err)
	}
	return nil
}

func requireRole(o marketplace.Order, actor string, role marketplace.Role) error {
	switch role {
	case marketplace.RoleClient:
		if o.ClientUsername != actor {
			return fmt.Errorf("%w: only the client may do this", ErrForbiddenRole)
		}
	case marketplace.RoleFreelancer:
		if o.FreelancerUsername != actor {
			return fmt.Errorf("%w: only the freelancer may do this", ErrForbiddenRole)
		}
	}
	return nil
}

// requireTurn checks that actor is the party expected to answer: the
// freelancer for a fresh order, the addressee of the latest counter-offer
// while negotiating.
func requireTurn(o marketplace.Order, actor string) error {
	switch o.Status {
	case marketplace.StatusPending:
		if o.FreelancerUsername != actor {
			return ErrOutOfTurn
		}
	case marketplace.StatusNegotiating:
		if o.Negotiation.CurrentOfferTo != "" && o.Negotiation.CurrentOfferTo != actor {
			return ErrOutOfTurn
		}
	}
	return nil
}
