package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/fieldhub/internal/auth"
	"github.com/sudo-init-do/fieldhub/internal/coordination"
	"github.com/sudo-init-do/fieldhub/internal/middleware"
	"github.com/sudo-init-do/fieldhub/internal/presence"
)

// ConnectionVerifier validates the short-lived credential presented on
// connect.
type ConnectionVerifier interface {
	VerifyConnection(token string) (*auth.Claims, error)
}

// Roster is the presence registry as seen by the gateway.
type Roster interface {
	Register(username, connectionID string, meta presence.Metadata) (evicted string)
	Unregister(connectionID string) (presence.Entry, bool)
	Count() int
}

type Broadcaster interface {
	Broadcast(match func(presence.Entry) bool, event string, payload any) int
}

// OnlineCount is broadcast to everyone whenever presence changes.
type OnlineCount struct {
	Count int `json:"count"`
}

// Welcome is sent to a freshly registered connection.
type Welcome struct {
	ConnectionID string `json:"connection_id"`
	Username     string `json:"username"`
	Role         string `json:"role"`
	City         string `json:"city,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Gateway struct {
	hub      *Hub
	roster   Roster
	router   Broadcaster
	coord    *coordination.Coordinator
	verifier ConnectionVerifier
	logger   *slog.Logger
}

func NewGateway(hub *Hub, roster Roster, router Broadcaster, coord *coordination.Coordinator, verifier ConnectionVerifier, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Gateway{hub: hub, roster: roster, router: router, coord: coord, verifier: verifier, logger: logger}
}

// Handle upgrades GET /ws. The credential comes from the token query
// parameter or an Authorization bearer header; city may be overridden with
// the city query parameter.
func (g *Gateway) Handle(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		token, _ = middleware.BearerToken(c.Request())
	}
	claims, err := g.verifier.VerifyConnection(token)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid connection credential"})
	}

	id := claims.Identity()
	if city := c.QueryParam("city"); city != "" {
		id.City = city
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", "username", id.Username, "error", err)
		return nil
	}

	// Handlers outlive the hijacked request.
	ctx := context.WithoutCancel(c.Request().Context())
	connID := uuid.NewString()
	cn := g.hub.add(connID, id.Username, ws)

	if evicted := g.roster.Register(id.Username, connID, presence.Metadata{City: id.City, Role: id.Role}); evicted != "" {
		g.logger.Info("replaced stale connection", "username", id.Username, "evicted", evicted)
		g.hub.Close(evicted)
	}
	g.logger.Info("connected", "username", id.Username, "connection_id", connID, "role", id.Role, "city", id.City)

	_ = g.hub.Emit(connID, coordination.EventConnect, Welcome{
		ConnectionID: connID, Username: id.Username, Role: string(id.Role), City: id.City,
	})
	g.broadcastCount()
	g.coord.Rehydrate(id.Username)

	g.readLoop(ctx, cn, coordination.Actor{Username: id.Username, Role: id.Role, City: id.City})

	g.hub.Close(connID)
	if _, ok := g.roster.Unregister(connID); ok {
		g.broadcastCount()
		g.coord.Disconnect(ctx, id.Username)
	}
	g.logger.Info("disconnected", "username", id.Username, "connection_id", connID)
	return nil
}

// readLoop handles one frame at a time so events from a connection are
// applied in the order they were sent.
func (g *Gateway) readLoop(ctx context.Context, cn *conn, actor coordination.Actor) {
	cn.ws.SetReadLimit(maxMessageSize)
	_ = cn.ws.SetReadDeadline(time.Now().Add(pongWait))
	cn.ws.SetPongHandler(func(string) error {
		return cn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := cn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.logger.Debug("websocket read failed", "connection_id", cn.id, "error", err)
			}
			return
		}
		_ = cn.ws.SetReadDeadline(time.Now().Add(pongWait))

		var msg inboundEvent
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			g.reject(cn.id, "", "malformed envelope")
			continue
		}
		g.dispatch(ctx, cn.id, actor, msg)
	}
}

func (g *Gateway) broadcastCount() {
	g.router.Broadcast(func(presence.Entry) bool { return true }, coordination.EventOnlineCount, OnlineCount{Count: g.roster.Count()})
}

func (g *Gateway) reject(connID, action, reason string) {
	_ = g.hub.Emit(connID, coordination.EventActionFailed, coordination.Failure{Action: action, Reason: reason})
}

// Count serves GET /presence/count.
func (g *Gateway) Count(c echo.Context) error {
	return c.JSON(http.StatusOK, OnlineCount{Count: g.roster.Count()})
}
