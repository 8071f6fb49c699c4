// Package modalqueue orders the dialogs a client shows for live order events.
// One dialog is on screen at a time; pending ones are kept sorted by a fixed
// priority and collapsed by type.
package modalqueue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	ErrEmpty       = errors.New("modalqueue: no pending tasks")
	ErrBusy        = errors.New("modalqueue: a dialog is already open")
	ErrUnknownType = errors.New("modalqueue: unknown task type")
)

type TaskType string

const (
	TaskRemindMarkReached TaskType = "remind-mark-reached"
	TaskConfirmArrival    TaskType = "confirm-arrival"
	TaskNewOrder          TaskType = "new-order"
	TaskCounterOffer      TaskType = "counter-offer"
	TaskOrderAccepted     TaskType = "order-accepted"
	TaskOrderUpdate       TaskType = "order-update"
	TaskReviewRequest     TaskType = "review-request"
)

// priorities is total over TaskType. Higher runs first.
var priorities = map[TaskType]int{
	TaskRemindMarkReached: 7,
	TaskConfirmArrival:    6,
	TaskNewOrder:          5,
	TaskCounterOffer:      4,
	TaskOrderAccepted:     3,
	TaskOrderUpdate:       2,
	TaskReviewRequest:     1,
}

// Priority returns the fixed priority of t.
func Priority(t TaskType) (int, bool) {
	p, ok := priorities[t]
	return p, ok
}

type Task struct {
	Type     TaskType
	Data     any
	Priority int
}

// Presenter shows a dialog and returns once the user has closed it.
type Presenter interface {
	Present(ctx context.Context, task Task) error
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(ctx context.Context, task Task) error

func (f PresenterFunc) Present(ctx context.Context, task Task) error { return f(ctx, task) }

type Queue struct {
	mu        sync.Mutex
	tasks     []Task
	busy      bool
	presenter Presenter
	debounce  time.Duration
	wake      chan struct{}
}

// New returns a queue that renders through p and waits debounce after each
// dialog closes before showing the next.
func New(p Presenter, debounce time.Duration) *Queue {
	return &Queue{presenter: p, debounce: debounce, wake: make(chan struct{}, 1)}
}

// Enqueue adds a task unless one of the same type is already pending, then
// re-sorts by priority. Equal priorities keep arrival order.
func (q *Queue) Enqueue(t TaskType, data any) (bool, error) {
	p, ok := priorities[t]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}

	q.mu.Lock()
	for _, existing := range q.tasks {
		if existing.Type == t {
			q.mu.Unlock()
			return false, nil
		}
	}
	q.tasks = append(q.tasks, Task{Type: t, Data: data, Priority: p})
	sort.SliceStable(q.tasks, func(i, j int) bool { return q.tasks[i].Priority > q.tasks[j].Priority })
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true, nil
}

// ProcessNext pops the head task, presents it and holds the queue until the
// dialog closes and the debounce delay has passed.
func (q *Queue) ProcessNext(ctx context.Context) (Task, error) {
	q.mu.Lock()
	if q.busy {
		q.mu.Unlock()
		return Task{}, ErrBusy
	}
	if len(q.tasks) == 0 {
		q.mu.Unlock()
		return Task{}, ErrEmpty
	}
	task := q.tasks[0]
	q.tasks = q.tasks[1:]
	q.busy = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.busy = false
		q.mu.Unlock()
	}()

	err := q.presenter.Present(ctx, task)
	if q.debounce > 0 {
		timer := time.NewTimer(q.debounce)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			if err == nil {
				err = ctx.Err()
			}
		case <-timer.C:
		}
	}
	return task, err
}

// Run processes tasks until ctx is done.
func (q *Queue) Run(ctx context.Context) error {
	for {
		_, err := q.ProcessNext(ctx)
		switch {
		case errors.Is(err, ErrEmpty):
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-q.wake:
			}
		case ctx.Err() != nil:
			return ctx.Err()
		}
	}
}

// Pending lists queued task types in the order they will run.
func (q *Queue) Pending() []TaskType {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]TaskType, len(q.tasks))
	for i, t := range q.tasks {
		out[i] = t.Type
	}
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}
