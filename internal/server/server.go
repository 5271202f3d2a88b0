package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/onebills/onebills/internal/apperr"
	"github.com/onebills/onebills/internal/config"
	"github.com/onebills/onebills/internal/guard"
	"github.com/onebills/onebills/internal/metrics"
	"github.com/onebills/onebills/internal/middleware"
	"github.com/onebills/onebills/internal/routes"
	"github.com/onebills/onebills/internal/store"
)

// Server wraps the Fiber bridge, the session store and the guard watcher.
type Server struct {
	app     *fiber.App
	cfg     config.Config
	store   *store.Store
	watcher *guard.Watcher
	logger  *slog.Logger

	stopWatcher context.CancelFunc
	watcherDone chan struct{}
}

// New builds every component and delegates route wiring to routes.Setup.
// registry receives the bridge metrics and backs /metrics.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger, registry *prometheus.Registry) (*Server, error) {
	collector := metrics.NewCollector(registry)

	c, err := buildComponents(cfg, db, cache, logger)
	if err != nil {
		return nil, err
	}

	st, err := store.New(store.Deps{
		Auth:     c.auth,
		Profiles: c.profiles,
		Logger:   logger,
		Reporter: apperr.NewReporter(logger, !cfg.IsProduction()),
		Metrics:  collector,
	})
	if err != nil {
		return nil, err
	}
	mailbox := &guard.Mailbox{}
	watcher := guard.NewWatcher(st, mailbox, collector, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: middleware.ErrorHandler(logger),
	})

	if err := routes.Setup(app, routes.Deps{
		Cfg:          cfg,
		DB:           db,
		Cache:        cache,
		Logger:       logger,
		Store:        st,
		Watcher:      watcher,
		Mailbox:      mailbox,
		Profiles:     c.profiles,
		Bills:        c.bills,
		Transactions: c.transactions,
		AuthLimiter:  c.authLimiter,
		Metrics:      collector,
		Gatherer:     registry,
	}); err != nil {
		st.Close()
		return nil, err
	}

	return &Server{app: app, cfg: cfg, store: st, watcher: watcher, logger: logger}, nil
}

// App exposes the Fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start restores the persisted session and starts the guard watcher.
func (s *Server) Start(ctx context.Context) {
	s.store.Initialize(ctx)

	runCtx, cancel := context.WithCancel(context.Background())
	s.stopWatcher = cancel
	s.watcherDone = make(chan struct{})
	go func() {
		defer close(s.watcherDone)
		s.watcher.Run(runCtx)
	}()
	s.logger.Info("server.started", slog.Bool("authenticated", s.store.State().IsAuthenticated()))
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown stops the HTTP server, then the watcher and the store.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	if s.stopWatcher != nil {
		s.stopWatcher()
		<-s.watcherDone
	}
	s.store.Close()
	return err
}
