package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/tiza/library-service/internal/command"
	"github.com/tiza/library-service/internal/config"
	"github.com/tiza/library-service/internal/database"
	"github.com/tiza/library-service/internal/delivery/httpd"
	"github.com/tiza/library-service/internal/events"
	mw "github.com/tiza/library-service/internal/middleware"
	"github.com/tiza/library-service/internal/repository"
	"github.com/tiza/library-service/internal/scheduler"
	"github.com/tiza/library-service/internal/service"
	"github.com/tiza/library-service/internal/stats"
	"github.com/tiza/library-service/internal/storage"
	"github.com/tiza/library-service/internal/worker"
)

type App struct {
	server    *http.Server
	logger    zerolog.Logger
	config    *config.Config
	db        *sqlx.DB
	pool      *worker.WorkerPool
	publisher events.Publisher
	scheduler *scheduler.Scheduler
}

func New(cfg *config.Config, log zerolog.Logger, db *sqlx.DB) (*App, error) {
	now := time.Now

	store, err := storage.New(cfg.Storage, log)
	if err != nil {
		return nil, err
	}

	pool := worker.NewWorkerPool(cfg.Worker.MaxWorkers, log)
	publisher := newPublisher(cfg.RabbitMQ, pool, log)

	bookRepo := repository.NewBookRepository(db, log)
	studentRepo := repository.NewStudentRepository(db, log)
	lendingRepo := repository.NewLendingRepository(db, log)
	snapshotRepo := repository.NewSnapshotRepository(db, log)

	services := command.Services{
		Books:       service.NewBookService(bookRepo, now, log),
		Students:    service.NewStudentService(studentRepo, now, log),
		Lendings:    service.NewLendingService(lendingRepo, bookRepo, studentRepo, now, log),
		Stats:       service.NewStatsService(bookRepo, studentRepo, lendingRepo, statsOptions(cfg.Library), now, log),
		Maintenance: service.NewMaintenanceService(snapshotRepo, store, now, log),
	}

	registry := command.NewRegistry(log)
	command.RegisterLibrary(registry, services)
	registry.OnMutation(command.PublishChanges(publisher, now, log))

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(cfg.Scheduler, services.Lendings, services.Maintenance, publisher, now, log)
		if err != nil {
			publisher.Close()
			return nil, err
		}
	}

	handler := httpd.NewHandler(registry, func(ctx context.Context) error {
		return database.Ping(ctx, db)
	}, log)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(mw.RequestLogger(log))
	router.Use(mw.Recovery(log))
	router.Use(mw.Timeout(cfg.Server.RequestTimeout))
	router.Use(mw.CORS(cfg.CORS))

	handler.RegisterRoutes(router)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &App{
		server:    server,
		logger:    log,
		config:    cfg,
		db:        db,
		pool:      pool,
		publisher: publisher,
		scheduler: sched,
	}, nil
}

// newPublisher falls back to a no-op publisher when the broker is disabled or
// unreachable; the library works without it.
func newPublisher(cfg config.RabbitMQConfig, pool *worker.WorkerPool, log zerolog.Logger) events.Publisher {
	if !cfg.Enabled {
		return events.NewNopPublisher()
	}

	rabbit, err := events.NewRabbitMQPublisher(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create RabbitMQ publisher, events disabled")
		return events.NewNopPublisher()
	}
	return events.NewAsyncPublisher(rabbit, pool, log)
}

func statsOptions(cfg config.LibraryConfig) stats.Options {
	opts := stats.DefaultOptions()
	if cfg.PopularBooksLimit > 0 {
		opts.PopularBooksLimit = cfg.PopularBooksLimit
	}
	if cfg.PopularCategoryLimit > 0 {
		opts.PopularCategoryLimit = cfg.PopularCategoryLimit
	}
	if cfg.RecentActivityWindow > 0 {
		opts.RecentActivityWindow = cfg.RecentActivityWindow
	}
	if cfg.RecentActivityLimit > 0 {
		opts.RecentActivityLimit = cfg.RecentActivityLimit
	}
	return opts
}

func (a *App) Run(ctx context.Context) error {
	// The pool outlives ctx so Shutdown can drain queued publications.
	a.pool.Start(context.WithoutCancel(ctx))
	if a.scheduler != nil {
		a.scheduler.Start()
	}

	a.logger.Info().Str("address", a.config.Server.Address).Msg("Starting library service")
	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info().Msg("Shutting down library service...")

	err := a.server.Shutdown(ctx)

	if a.scheduler != nil {
		a.scheduler.Stop(ctx)
	}

	a.pool.Stop()
	if err := a.publisher.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close event publisher")
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close database connection")
		}
	}

	return err
}
