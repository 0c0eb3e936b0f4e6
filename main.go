package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tiza/library-service/internal/app"
	"github.com/tiza/library-service/internal/config"
	"github.com/tiza/library-service/internal/database"
	"github.com/tiza/library-service/internal/events"
	"github.com/tiza/library-service/internal/models"
	"github.com/tiza/library-service/pkg/client"
	"github.com/tiza/library-service/pkg/logger"
)

func main() {
	migrateCmd := flag.NewFlagSet("migrate", flag.ExitOnError)
	migrateDirection := migrateCmd.String("direction", "up", "direction of migration (up/down/version)")

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			migrateCmd.Parse(os.Args[2:])
			runMigrations(*migrateDirection)
			return
		case "watch":
			runWatch()
			return
		case "serve":
		}
	}

	runServer()
}

func loadConfig() (*config.Config, zerolog.Logger) {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	return cfg, logger.NewWithConfig(cfg.Logging.Level, cfg.Logging.Pretty, cfg.Logging.NoColor)
}

func runServer() {
	cfg, log := loadConfig()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	if err := database.Ping(context.Background(), db); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	migrator, err := database.NewMigrator(db.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create migrator")
	}
	if err := migrator.Up(); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	application, err := app.New(cfg, log, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}

	go func() {
		if err := application.Run(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to run application")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown gracefully")
	}

	log.Info().Msg("Library service stopped")
}

func runMigrations(direction string) {
	cfg, log := loadConfig()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create migrator")
	}

	switch direction {
	case "up":
		if err := migrator.Up(); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
		log.Info().Msg("Migrations applied successfully")
	case "down":
		if err := migrator.Down(); err != nil {
			log.Fatal().Err(err).Msg("Failed to rollback migrations")
		}
		log.Info().Msg("Migrations rolled back successfully")
	case "version":
	default:
		log.Fatal().Msg("Invalid migration direction. Use 'up', 'down' or 'version'")
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read schema version")
	}
	log.Info().Uint("version", version).Bool("dirty", dirty).Msg("Schema version")
}

// runWatch follows a running server the way the desktop dashboard does: it
// keeps the dashboard query cached, refetches it whenever the event bus says
// it went stale and logs overdue notices.
func runWatch() {
	cfg, log := loadConfig()

	c := client.New(client.Options{
		BaseURL:    cfg.Client.BaseURL,
		Timeout:    cfg.Client.Timeout,
		RetryCount: cfg.Client.RetryCount,
		RetryDelay: cfg.Client.RetryDelay,
		StaleTime:  cfg.Client.StaleTime,
		Logger:     log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	msg, err := c.TestCommand(ctx)
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.Client.BaseURL).Msg("Library service is not reachable")
	}
	log.Info().Str("reply", msg).Msg("Connected to library service")

	g, ctx := errgroup.WithContext(ctx)

	if cfg.RabbitMQ.Enabled {
		consumer, err := events.NewRabbitMQConsumer(cfg.RabbitMQ, log)
		if err != nil {
			log.Error().Err(err).Msg("Failed to subscribe to events, polling only")
		} else {
			defer consumer.Close()
			g.Go(func() error {
				return consumer.Consume(ctx, c.EventHandler(func(e models.LendingOverdueEvent) {
					log.Warn().
						Str("book", e.BookTitle).
						Str("student", e.StudentName).
						Int64("days_overdue", e.DaysOverdue).
						Msg("Lending overdue")
				}))
			})
		}
	}

	g.Go(func() error {
		ticker := time.NewTicker(cfg.Client.PollEvery)
		defer ticker.Stop()

		for {
			dashboard, err := c.DashboardStats(ctx)
			if err != nil {
				log.Error().Err(err).Msg("Failed to load dashboard")
			} else {
				log.Info().
					Int64("books", dashboard.TotalBooks).
					Int64("students", dashboard.TotalStudents).
					Int64("on_loan", dashboard.BooksOnLoan).
					Int64("overdue", dashboard.OverdueBooks).
					Int64("utilization", dashboard.UtilizationRate).
					Msg("Dashboard")
			}

			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Watch stopped")
	}
}
