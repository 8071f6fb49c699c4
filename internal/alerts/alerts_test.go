package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/fieldhub/internal/auth"
	"github.com/sudo-init-do/fieldhub/internal/marketplace"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

func TestNotifier_EnqueuesOfflineNotice(t *testing.T) {
	q := &fakeEnqueuer{}
	n := NewNotifier(q)

	require.NoError(t, n.OfflineNotice(context.Background(), "fola", "new-order", "O1", "chidi"))
	require.Len(t, q.tasks, 1)
	assert.Equal(t, TaskOfflineNotice, q.tasks[0].Type())

	var p OfflineNoticePayload
	require.NoError(t, json.Unmarshal(q.tasks[0].Payload(), &p))
	assert.Equal(t, "fola", p.Username)
	assert.Equal(t, "O1", p.OrderID)

	q.err = errors.New("redis down")
	assert.Error(t, n.OfflineNotice(context.Background(), "fola", "new-order", "O1", "chidi"))
}

func TestProcessor_StoresNotification(t *testing.T) {
	store := NewMemoryNotifications()
	p := NewProcessor(store, nil)
	ctx := context.Background()

	b, err := json.Marshal(OfflineNoticePayload{Username: "chidi", Event: "counter-offer", OrderID: "O3", Actor: "fola"})
	require.NoError(t, err)
	require.NoError(t, p.HandleOfflineNotice(ctx, asynq.NewTask(TaskOfflineNotice, b)))

	items, err := store.List(ctx, "chidi")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "New counter-offer", items[0].Title)
	assert.Contains(t, items[0].Body, "fola")

	err = p.HandleOfflineNotice(ctx, asynq.NewTask(TaskOfflineNotice, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestDirectNotifier(t *testing.T) {
	store := NewMemoryNotifications()
	require.NoError(t, NewDirectNotifier(store).OfflineNotice(context.Background(), "fola", "order-cancelled", "O1", "chidi"))
	items, _ := store.List(context.Background(), "fola")
	require.Len(t, items, 1)
	assert.Equal(t, "Order cancelled", items[0].Title)
}

func TestHandler_ListAndMarkRead(t *testing.T) {
	store := NewMemoryNotifications()
	n, err := store.Create(context.Background(), Notification{Username: "fola", Type: "new-order", Title: "t"})
	require.NoError(t, err)
	h := NewHandler(store, nil)
	e := echo.New()

	ctxFor := func(method, path string) (echo.Context, *httptest.ResponseRecorder) {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(method, path, nil), rec)
		auth.SetIdentity(c, auth.Identity{Username: "fola", Role: marketplace.RoleFreelancer})
		return c, rec
	}

	c, rec := ctxFor(http.MethodGet, "/notifications")
	require.NoError(t, h.ListNotifications(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), n.ID)

	c, rec = ctxFor(http.MethodPost, "/notifications/"+n.ID+"/read")
	c.SetParamNames("id")
	c.SetParamValues(n.ID)
	require.NoError(t, h.MarkNotificationRead(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = ctxFor(http.MethodPost, "/notifications/"+n.ID+"/read")
	c.SetParamNames("id")
	c.SetParamValues(n.ID)
	require.NoError(t, h.MarkNotificationRead(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
