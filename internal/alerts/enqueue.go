package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Enqueuer is the part of *asynq.Client used here.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Notifier queues offline notices on Redis for the alerts worker.
type Notifier struct {
	client Enqueuer
}

func NewNotifier(client Enqueuer) *Notifier {
	return &Notifier{client: client}
}

// OfflineNotice schedules a notification for a user who missed event.
func (n *Notifier) OfflineNotice(ctx context.Context, username, event, orderID, actor string) error {
	b, err := json.Marshal(OfflineNoticePayload{
		Username: username,
		Event:    event,
		OrderID:  orderID,
		Actor:    actor,
		QueuedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("alerts: encode offline notice: %w", err)
	}
	task := asynq.NewTask(TaskOfflineNotice, b)
	if _, err := n.client.EnqueueContext(ctx, task, asynq.Queue(QueueAlerts), asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("alerts: enqueue offline notice: %w", err)
	}
	return nil
}

// DirectNotifier writes notices straight to the store. Used when no Redis is
// configured.
type DirectNotifier struct {
	store NotificationStore
}

func NewDirectNotifier(store NotificationStore) *DirectNotifier {
	return &DirectNotifier{store: store}
}

func (d *DirectNotifier) OfflineNotice(ctx context.Context, username, event, orderID, actor string) error {
	_, err := d.store.Create(ctx, toNotification(OfflineNoticePayload{
		Username: username, Event: event, OrderID: orderID, Actor: actor,
	}))
	return err
}

func toNotification(p OfflineNoticePayload) Notification {
	title, body := describe(p)
	return Notification{
		Username: p.Username,
		Type:     p.Event,
		Title:    title,
		Body:     body,
		OrderID:  p.OrderID,
	}
}
