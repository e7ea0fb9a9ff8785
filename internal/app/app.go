package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"support-portal/internal/apiclient"
	"support-portal/internal/config"
	"support-portal/internal/credential"
	"support-portal/internal/event"
	"support-portal/internal/handler"
	"support-portal/internal/middleware"
	"support-portal/internal/router"
	"support-portal/internal/session"
	"support-portal/internal/websocket"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	server       *http.Server
	session      *session.Session
	hub          *websocket.Hub
	logger       *slog.Logger
	cleanupFuncs []func()
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, closeStore, err := newCredentialStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential store: %w", err)
	}
	logger.Info("credential store ready", "backend", cfg.TokenBackend)

	api := apiclient.New(apiConfig(cfg), store, logger)

	bus := event.NewBus(logger)
	sess := session.New(api, store,
		session.WithLogger(logger),
		session.WithObserver(event.SessionObserver(bus)),
		session.WithObserver(recordSessionState),
	)
	hub := websocket.NewHub(bus, logger)

	initial := func() ([]byte, error) {
		return json.Marshal(event.FromSnapshot(sess.Snapshot()))
	}

	appRouter := router.New(cfg, logger, middleware.NewSessionGate(sess), router.Handlers{
		Auth:      handler.NewAuthHandler(sess),
		Dashboard: handler.NewDashboardHandler(api, api),
		Ticket:    handler.NewTicketHandler(api),
		Admin:     handler.NewAdminHandler(api),
		Health:    handler.NewHealthHandler(sess, func() string { return api.State().String() }),
		Session:   websocket.NewHandler(hub, middleware.NewOriginPolicy(cfg.CORSOrigins), initial),
	})

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.ServerHost, cfg.ServerPort),
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server:       server,
		session:      sess,
		hub:          hub,
		logger:       logger,
		cleanupFuncs: []func(){closeStore},
	}, nil
}

// Handler exposes the routed handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Start launches the websocket hub and the first session resolution. Both
// stop when ctx is done.
func (a *App) Start(ctx context.Context) {
	go a.hub.Run(ctx)
	go a.session.Init(ctx)
}

// Run serves until SIGINT or SIGTERM, then shuts down gracefully.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.server.Addr, err)
	}

	return a.Serve(ctx, listener)
}

// Serve runs the portal on listener until ctx is done.
func (a *App) Serve(ctx context.Context, listener net.Listener) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.Start(runCtx)

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", "addr", listener.Addr().String())
		if err := a.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			a.cleanup()
			return fmt.Errorf("server failed: %w", err)
		}
	case <-runCtx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	cancel()
	shutdownErr := a.server.Shutdown(shutdownCtx)
	a.cleanup()

	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	a.logger.Info("server stopped")
	return nil
}

func (a *App) cleanup() {
	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}
	a.cleanupFuncs = nil
}

func apiConfig(cfg *config.Config) apiclient.Config {
	out := apiclient.DefaultConfig(cfg.APIBaseURL)
	out.Timeout = cfg.APITimeout
	out.MaxRetries = cfg.APIMaxRetries
	out.Breaker.FailureRatio = cfg.APIBreakerFailureRatio
	out.Breaker.MinRequests = cfg.APIBreakerMinRequests
	out.Breaker.OpenTimeout = cfg.APIBreakerOpenTimeout
	return out
}

func newCredentialStore(ctx context.Context, cfg *config.Config) (credential.Store, func(), error) {
	switch cfg.TokenBackend {
	case config.TokenBackendMemory:
		return credential.NewMemoryStore(), func() {}, nil

	case config.TokenBackendRedis:
		client, err := credential.ConnectRedis(ctx, credential.RedisConfig{
			Addr:    cfg.RedisAddr,
			DB:      cfg.RedisDB,
			Key:     cfg.RedisTokenKey,
			Timeout: cfg.APITimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return credential.NewRedisStore(client, cfg.RedisTokenKey), func() { _ = client.Close() }, nil

	default:
		var sealer *credential.Sealer
		if cfg.TokenSecret != "" {
			s, err := credential.NewSealer(cfg.TokenSecret)
			if err != nil {
				return nil, nil, err
			}
			sealer = s
		}

		store, err := credential.NewFileStore(cfg.TokenFile, sealer)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}
