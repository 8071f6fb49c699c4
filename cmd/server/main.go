package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/sudo-init-do/fieldhub/internal/alerts"
	"github.com/sudo-init-do/fieldhub/internal/auth"
	"github.com/sudo-init-do/fieldhub/internal/blob"
	"github.com/sudo-init-do/fieldhub/internal/config"
	"github.com/sudo-init-do/fieldhub/internal/coordination"
	"github.com/sudo-init-do/fieldhub/internal/db"
	"github.com/sudo-init-do/fieldhub/internal/delivery"
	"github.com/sudo-init-do/fieldhub/internal/durable"
	"github.com/sudo-init-do/fieldhub/internal/marketplace"
	mware "github.com/sudo-init-do/fieldhub/internal/middleware"
	"github.com/sudo-init-do/fieldhub/internal/orderstore"
	"github.com/sudo-init-do/fieldhub/internal/presence"
	"github.com/sudo-init-do/fieldhub/internal/realtime"
	"github.com/sudo-init-do/fieldhub/internal/user"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fieldhub: %v\n", err)
		os.Exit(1)
	}
}

// storage groups the backends picked by STORE_DRIVER.
type storage struct {
	pool   *pgxpool.Pool
	orders interface {
		coordination.Persister
		marketplace.OrderReader
	}
	users         auth.UserRepository
	blobs         blob.Store
	notifications alerts.NotificationStore
}

func run() error {
	cfg, err := config.Load(".")
	if err != nil {
		return err
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if st.pool != nil {
		defer st.pool.Close()
	}

	tokens, err := auth.NewService(cfg.JWTSecret, cfg.CredentialTTL, cfg.SessionTTL)
	if err != nil {
		return err
	}

	registry := presence.NewRegistry()
	hub := realtime.NewHub(cfg.SendBuffer, logger)
	router := delivery.NewRouter(registry, hub, logger)
	store := orderstore.New(logger)
	coord := coordination.New(store, router, registry, st.orders, logger).
		WithPersistTimeout(cfg.PersistTimeout)

	var worker *asynq.Server
	if cfg.AlertsEnabled {
		client := alerts.NewClient(cfg.RedisAddr)
		defer client.Close()
		coord.WithAlerter(alerts.NewNotifier(client))
		worker = alerts.NewServer(cfg.RedisAddr, 0, logger)
	} else {
		coord.WithAlerter(alerts.NewDirectNotifier(st.notifications))
	}

	gateway := realtime.NewGateway(hub, registry, router, coord, tokens, logger)
	e := newEcho(st, tokens, gateway, registry, store, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server starting", "address", cfg.ServerAddress, "store_driver", cfg.StoreDriver, "alerts", cfg.AlertsEnabled)
		if err := e.Start(cfg.ServerAddress); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if worker != nil {
		processor := alerts.NewProcessor(st.notifications, logger)
		g.Go(func() error {
			if err := worker.Start(processor.Mux()); err != nil {
				return fmt.Errorf("alerts worker: %w", err)
			}
			<-gctx.Done()
			worker.Shutdown()
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		hub.CloseAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage, error) {
	if cfg.StoreDriver == config.DriverMemory {
		users, err := auth.ParseStaticUsers(cfg.DevUsers)
		if err != nil {
			return storage{}, err
		}
		logger.Warn("using in-memory storage; data is lost on restart")
		return storage{
			orders:        durable.NewMemoryRepository(),
			users:         users,
			blobs:         blob.NewMemoryStore(),
			notifications: alerts.NewMemoryNotifications(),
		}, nil
	}

	if err := db.Migrate(cfg.DatabaseURL, cfg.MigrationURL); err != nil {
		return storage{}, err
	}
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	pool, err := db.Connect(connectCtx, cfg.DatabaseURL)
	if err != nil {
		return storage{}, err
	}
	logger.Info("connected to postgres")
	return storage{
		pool:          pool,
		orders:        durable.NewPostgresRepository(pool),
		users:         auth.NewPostgresUsers(pool),
		blobs:         blob.NewPostgresStore(pool),
		notifications: alerts.NewPostgresNotifications(pool),
	}, nil
}

func newEcho(st storage, tokens *auth.Service, gateway *realtime.Gateway, registry *presence.Registry, live *orderstore.Store, logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/ready", func(c echo.Context) error {
		if st.pool != nil {
			if err := st.pool.Ping(c.Request().Context()); err != nil {
				return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "db unreachable"})
			}
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})

	authHandler := auth.NewHandler(tokens, st.users, logger)
	marketHandler := marketplace.NewHandler(st.orders, live, logger)
	blobHandler := blob.NewHandler(st.blobs, logger)
	alertHandler := alerts.NewHandler(st.notifications, logger)
	profileHandler := user.NewHandler(st.users, registry, st.orders, logger)
	session := mware.JWTMiddleware(tokens)

	authGroup := e.Group("/auth")
	authGroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(20)))
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/credential", authHandler.Credential, session)
	authGroup.GET("/me", authHandler.Me, session)

	e.GET("/ws", gateway.Handle)
	e.GET("/presence/count", gateway.Count)
	e.GET("/freelancers/:username/reviews", marketHandler.GetFreelancerReviews)
	e.GET("/users/:username", profileHandler.GetPublicProfile)

	api := e.Group("")
	api.Use(session)
	api.GET("/orders/me", marketHandler.GetMyOrders)
	api.POST("/blobs", blobHandler.Upload)
	api.GET("/blobs/:id", blobHandler.Download)
	api.GET("/notifications", alertHandler.ListNotifications)
	api.POST("/notifications/:id/read", alertHandler.MarkNotificationRead)

	return e
}
