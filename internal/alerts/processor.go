package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Processor consumes alert tasks.
type Processor struct {
	store  NotificationStore
	logger *slog.Logger
}

func NewProcessor(store NotificationStore, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Processor{store: store, logger: logger}
}

// Mux routes task types to their handlers.
func (p *Processor) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskOfflineNotice, p.HandleOfflineNotice)
	return mux
}

// HandleOfflineNotice records an in-app notification. Undecodable payloads
// are dropped without retry.
func (p *Processor) HandleOfflineNotice(ctx context.Context, t *asynq.Task) error {
	var payload OfflineNoticePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("alerts: decode offline notice: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Username == "" {
		return fmt.Errorf("alerts: offline notice without username: %w", asynq.SkipRetry)
	}

	n, err := p.store.Create(ctx, toNotification(payload))
	if err != nil {
		p.logger.Error("offline notice not stored", "username", payload.Username, "event", payload.Event, "error", err)
		return err
	}
	p.logger.Info("offline notice stored", "username", n.Username, "event", n.Type, "order_id", n.OrderID, "id", n.ID)
	return nil
}

// NewServer builds the asynq worker that runs the processor's mux.
func NewServer(redisAddr string, concurrency int, logger *slog.Logger) *asynq.Server {
	if concurrency <= 0 {
		concurrency = 5
	}
	return asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr}, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueAlerts: 10,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			if logger != nil {
				logger.Error("alert task failed", "type", task.Type(), "error", err)
			}
		}),
	})
}

// NewClient builds the producer side for redisAddr.
func NewClient(redisAddr string) *asynq.Client {
	return asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
}
