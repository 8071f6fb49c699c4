package liveclient

import (
	"encoding/json"
	"io"
	"log/slog"

	"github.com/sudo-init-do/fieldhub/internal/coordination"
	"github.com/sudo-init-do/fieldhub/internal/modalqueue"
)

// TaskFor maps an incoming order event to the dialog it should open.
func TaskFor(event string) (modalqueue.TaskType, bool) {
	switch event {
	case coordination.EventNewOrder:
		return modalqueue.TaskNewOrder, true
	case coordination.EventCounterOffer:
		return modalqueue.TaskCounterOffer, true
	case coordination.EventOrderAccepted:
		return modalqueue.TaskOrderAccepted, true
	case coordination.EventLocationShared:
		return modalqueue.TaskRemindMarkReached, true
	case coordination.EventFreelancerReached:
		return modalqueue.TaskConfirmArrival, true
	case coordination.EventOrderCompleted:
		return modalqueue.TaskReviewRequest, true
	case coordination.EventOrderRejected, coordination.EventOrderCancelled,
		coordination.EventArrivalConfirmed, coordination.EventDisconnect:
		return modalqueue.TaskOrderUpdate, true
	}
	return "", false
}

// Dialogs feeds live events into a modal queue for one viewer.
type Dialogs struct {
	queue  *modalqueue.Queue
	viewer string
	logger *slog.Logger
}

func NewDialogs(queue *modalqueue.Queue, viewer string, logger *slog.Logger) *Dialogs {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dialogs{queue: queue, viewer: viewer, logger: logger}
}

// Handle is suitable as the callback passed to Client.Listen.
func (d *Dialogs) Handle(env Envelope) {
	switch env.Type {
	case coordination.EventRehydrate:
		var r coordination.Rehydration
		if err := json.Unmarshal(env.Data, &r); err != nil {
			d.logger.Warn("bad rehydrate payload", "error", err)
			return
		}
		n := d.queue.Rebuild(r.Orders, d.viewer)
		d.logger.Info("restored dialogs", "orders", len(r.Orders), "queued", n)
		return
	case coordination.EventActionFailed:
		var f coordination.Failure
		if err := json.Unmarshal(env.Data, &f); err != nil {
			d.logger.Warn("bad failure payload", "error", err)
			return
		}
		d.logger.Warn("action failed", "action", f.Action, "order_id", f.OrderID, "reason", f.Reason)
		return
	case coordination.EventActionAck:
		var a coordination.Ack
		if err := json.Unmarshal(env.Data, &a); err != nil {
			d.logger.Warn("bad ack payload", "error", err)
			return
		}
		d.logger.Info("action acknowledged", "action", a.Action, "order_id", a.OrderID, "delivered", a.Delivered)
		return
	}

	task, ok := TaskFor(env.Type)
	if !ok {
		d.logger.Debug("event ignored", "type", env.Type, "data", string(env.Data))
		return
	}

	var data any
	if env.Type == coordination.EventDisconnect {
		var p coordination.PresenceNotice
		if err := json.Unmarshal(env.Data, &p); err != nil {
			d.logger.Warn("bad presence payload", "error", err)
			return
		}
		data = p
	} else {
		var ev coordination.OrderEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			d.logger.Warn("bad order payload", "type", env.Type, "error", err)
			return
		}
		data = ev
	}
	if _, err := d.queue.Enqueue(task, data); err != nil {
		d.logger.Warn("enqueue dialog failed", "type", env.Type, "error", err)
	}
}
