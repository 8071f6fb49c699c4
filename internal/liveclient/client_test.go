package liveclient

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/fieldhub/internal/coordination"
	"github.com/sudo-init-do/fieldhub/internal/marketplace"
	"github.com/sudo-init-do/fieldhub/internal/modalqueue"
)

func TestTaskFor(t *testing.T) {
	tests := map[string]modalqueue.TaskType{
		coordination.EventNewOrder:          modalqueue.TaskNewOrder,
		coordination.EventCounterOffer:      modalqueue.TaskCounterOffer,
		coordination.EventOrderAccepted:     modalqueue.TaskOrderAccepted,
		coordination.EventLocationShared:    modalqueue.TaskRemindMarkReached,
		coordination.EventFreelancerReached: modalqueue.TaskConfirmArrival,
		coordination.EventOrderCompleted:    modalqueue.TaskReviewRequest,
		coordination.EventOrderCancelled:    modalqueue.TaskOrderUpdate,
	}
	for event, want := range tests {
		got, ok := TaskFor(event)
		assert.True(t, ok, event)
		assert.Equal(t, want, got, event)
	}
	_, ok := TaskFor(coordination.EventOnlineCount)
	assert.False(t, ok)
}

func envelope(t *testing.T, event string, v any) Envelope {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return Envelope{Type: event, Data: raw}
}

func TestDialogs_QueuesByPriority(t *testing.T) {
	q := modalqueue.New(modalqueue.PresenterFunc(func(context.Context, modalqueue.Task) error { return nil }), 0)
	d := NewDialogs(q, "fola", nil)

	d.Handle(envelope(t, coordination.EventOrderCompleted, coordination.OrderEvent{OrderID: "o1"}))
	d.Handle(envelope(t, coordination.EventNewOrder, coordination.OrderEvent{OrderID: "o2"}))
	d.Handle(envelope(t, coordination.EventOnlineCount, map[string]int{"count": 2}))
	d.Handle(envelope(t, coordination.EventLocationShared, coordination.OrderEvent{OrderID: "o3"}))
	d.Handle(Envelope{Type: coordination.EventCounterOffer, Data: json.RawMessage(`{`)})

	assert.Equal(t, []modalqueue.TaskType{
		modalqueue.TaskRemindMarkReached, modalqueue.TaskNewOrder, modalqueue.TaskReviewRequest,
	}, q.Pending())
}

func TestDialogs_RehydrateRebuilds(t *testing.T) {
	q := modalqueue.New(modalqueue.PresenterFunc(func(context.Context, modalqueue.Task) error { return nil }), 0)
	d := NewDialogs(q, "fola", nil)

	d.Handle(envelope(t, coordination.EventRehydrate, coordination.Rehydration{Orders: []marketplace.Order{
		{ID: "o1", ClientUsername: "chidi", FreelancerUsername: "fola", Status: marketplace.StatusPending},
		{ID: "o2", ClientUsername: "chidi", FreelancerUsername: "fola", Status: marketplace.StatusNegotiating,
			Negotiation: marketplace.Negotiation{IsNegotiating: true, CurrentOfferTo: "fola"}},
	}}))

	assert.Equal(t, []modalqueue.TaskType{modalqueue.TaskNewOrder, modalqueue.TaskCounterOffer}, q.Pending())
}

func TestDialogs_LogsMalformedReplies(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	q := modalqueue.New(modalqueue.PresenterFunc(func(context.Context, modalqueue.Task) error { return nil }), 0)
	d := NewDialogs(q, "fola", logger)

	d.Handle(Envelope{Type: coordination.EventActionFailed, Data: json.RawMessage(`{"action":`)})
	d.Handle(Envelope{Type: coordination.EventActionAck, Data: json.RawMessage(`[1,2]`)})
	d.Handle(envelope(t, coordination.EventActionAck, coordination.Ack{OrderID: "o1", Action: "order-accepted"}))

	out := buf.String()
	assert.Contains(t, out, "bad failure payload")
	assert.Contains(t, out, "bad ack payload")
	assert.Contains(t, out, "action acknowledged")
	assert.Zero(t, q.Len())
}

func TestClient_LoginConnectSendListen(t *testing.T) {
	e := echo.New()
	e.POST("/auth/login", func(c echo.Context) error {
		var body map[string]string
		if err := c.Bind(&body); err != nil || body["password"] != "secret" {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusOK, tokenResponse{Token: "session-token"})
	})
	e.POST("/auth/credential", func(c echo.Context) error {
		if c.Request().Header.Get("Authorization") != "Bearer session-token" {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
		return c.JSON(http.StatusOK, tokenResponse{Token: "conn-token"})
	})
	upgrader := websocket.Upgrader{}
	e.GET("/ws", func(c echo.Context) error {
		if c.QueryParam("token") != "conn-token" || c.QueryParam("city") != "lagos" {
			return c.NoContent(http.StatusUnauthorized)
		}
		ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			return nil
		}
		defer ws.Close()
		var in Envelope
		if err := ws.ReadJSON(&in); err != nil {
			return nil
		}
		_ = ws.WriteJSON(Envelope{Type: coordination.EventActionAck, Data: json.RawMessage(`{"action":"` + in.Type + `"}`)})
		_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return nil
	})
	srv := httptest.NewServer(e)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := New(srv.URL, nil)
	err := c.Login(ctx, "fola", "wrong")
	require.ErrorIs(t, err, ErrHTTPStatus)
	assert.True(t, strings.Contains(err.Error(), "401"))

	assert.ErrorIs(t, c.Send("x", nil), ErrNotConnected)

	require.NoError(t, c.Login(ctx, "fola", "secret"))
	require.NoError(t, c.Connect(ctx, "lagos"))
	defer c.Close()

	require.NoError(t, c.Send(coordination.EventFreelancerReached, coordination.ReachedRequest{OrderID: "o1"}))

	var got []Envelope
	require.NoError(t, c.Listen(ctx, func(env Envelope) { got = append(got, env) }))
	require.Len(t, got, 1)
	assert.Equal(t, coordination.EventActionAck, got[0].Type)
	assert.JSONEq(t, `{"action":"freelancer-reached"}`, string(got[0].Data))
}
