// Package scheduler runs the periodic library jobs: the overdue sweep and
// scheduled backups.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/tiza/library-service/internal/config"
	"github.com/tiza/library-service/internal/events"
	"github.com/tiza/library-service/internal/models"
	"github.com/tiza/library-service/internal/service"
	"github.com/tiza/library-service/internal/stats"
)

const jobTimeout = 5 * time.Minute

type Scheduler struct {
	cron        *cron.Cron
	lendings    service.LendingService
	maintenance service.MaintenanceService
	publisher   events.Publisher
	keepBackups int
	now         func() time.Time
	logger      zerolog.Logger
}

// New registers the configured jobs. An empty spec disables its job.
func New(
	cfg config.SchedulerConfig,
	lendings service.LendingService,
	maintenance service.MaintenanceService,
	publisher events.Publisher,
	now func() time.Time,
	logger zerolog.Logger,
) (*Scheduler, error) {
	s := &Scheduler{
		cron:        cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		lendings:    lendings,
		maintenance: maintenance,
		publisher:   publisher,
		keepBackups: cfg.KeepBackups,
		now:         now,
		logger:      logger,
	}

	if cfg.OverdueSpec != "" {
		if _, err := s.cron.AddFunc(cfg.OverdueSpec, s.job("overdue_sweep", s.overdueJob)); err != nil {
			return nil, fmt.Errorf("failed to schedule overdue sweep: %w", err)
		}
	}
	if cfg.BackupSpec != "" {
		if _, err := s.cron.AddFunc(cfg.BackupSpec, s.job("backup", s.RunBackup)); err != nil {
			return nil, fmt.Errorf("failed to schedule backup: %w", err)
		}
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.logger.Info().Int("jobs", len(s.cron.Entries())).Msg("Starting scheduler")
	s.cron.Start()
}

// Stop waits for running jobs to finish or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn().Msg("Scheduler stopped with jobs still running")
	}
}

func (s *Scheduler) job(name string, fn func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		start := time.Now()
		if err := fn(ctx); err != nil {
			s.logger.Error().Err(err).Str("job", name).Msg("Scheduled job failed")
			return
		}
		s.logger.Info().Str("job", name).Dur("duration", time.Since(start)).Msg("Scheduled job finished")
	}
}

func (s *Scheduler) overdueJob(ctx context.Context) error {
	_, err := s.SweepOverdue(ctx)
	return err
}

// SweepOverdue publishes one lending.overdue event per overdue lending and
// returns how many were found.
func (s *Scheduler) SweepOverdue(ctx context.Context) (int, error) {
	lent, err := s.lendings.GetAllLendings(ctx, models.ListQuery{
		Status: models.StringList{string(models.LendingStatusLent)},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to load active lendings: %w", err)
	}

	now := s.now()
	count := 0
	for _, l := range lent {
		if !l.IsOverdue(now) {
			continue
		}
		count++

		event := &models.LendingOverdueEvent{
			LendingID:   l.ID,
			BookID:      l.BookID,
			StudentID:   l.StudentID,
			BookTitle:   l.BookTitle,
			StudentName: l.StudentName,
			DueDate:     l.DueDate,
			DaysOverdue: stats.DaysOverdue(l.DueDate, now),
			Timestamp:   now.Unix(),
		}
		if err := s.publisher.PublishLendingOverdue(ctx, event); err != nil {
			s.logger.Warn().Err(err).Str("lending_id", l.ID).Msg("Failed to publish overdue event")
		}
	}

	return count, nil
}

func (s *Scheduler) RunBackup(ctx context.Context) error {
	result, err := s.maintenance.Backup(ctx)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("backup failed: %s", result.Message)
	}

	if s.keepBackups > 0 {
		if _, err := s.maintenance.PruneBackups(ctx, s.keepBackups); err != nil {
			return err
		}
	}
	return nil
}
