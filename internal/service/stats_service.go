package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tiza/library-service/internal/models"
	"github.com/tiza/library-service/internal/repository"
	"github.com/tiza/library-service/internal/stats"
)

type StatsService interface {
	GetDashboardStats(ctx context.Context) (*models.DashboardStats, error)
	GetPopularBooks(ctx context.Context) ([]models.PopularBook, error)
	GetOverdueBooks(ctx context.Context) ([]models.OverdueBook, error)
	GetRecentActivity(ctx context.Context) ([]models.RecentActivity, error)
	GetGradeDistribution(ctx context.Context) ([]models.GradeCount, error)
}

type statsService struct {
	bookRepo    repository.BookRepository
	studentRepo repository.StudentRepository
	lendingRepo repository.LendingRepository
	opts        stats.Options
	now         func() time.Time
	logger      zerolog.Logger
}

func NewStatsService(
	bookRepo repository.BookRepository,
	studentRepo repository.StudentRepository,
	lendingRepo repository.LendingRepository,
	opts stats.Options,
	now func() time.Time,
	logger zerolog.Logger,
) StatsService {
	return &statsService{
		bookRepo:    bookRepo,
		studentRepo: studentRepo,
		lendingRepo: lendingRepo,
		opts:        opts,
		now:         now,
		logger:      logger,
	}
}

type collections struct {
	books    []models.Book
	students []models.Student
	lendings []models.LendingWithDetails
}

// load reads the requested collections concurrently.
func (s *statsService) load(ctx context.Context, books, students, lendings bool) (*collections, error) {
	var c collections
	g, ctx := errgroup.WithContext(ctx)

	if books {
		g.Go(func() (err error) {
			if c.books, err = s.bookRepo.GetAll(ctx, models.ListQuery{}); err != nil {
				return fmt.Errorf("failed to load books: %w", err)
			}
			return nil
		})
	}
	if students {
		g.Go(func() (err error) {
			if c.students, err = s.studentRepo.GetAll(ctx, models.ListQuery{}); err != nil {
				return fmt.Errorf("failed to load students: %w", err)
			}
			return nil
		})
	}
	if lendings {
		g.Go(func() (err error) {
			if c.lendings, err = s.lendingRepo.GetAll(ctx, models.ListQuery{}); err != nil {
				return fmt.Errorf("failed to load lendings: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *statsService) GetDashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	c, err := s.load(ctx, true, true, true)
	if err != nil {
		return nil, err
	}

	dashboard := stats.Dashboard(c.books, c.students, c.lendings, s.now(), s.opts)

	s.logger.Debug().
		Int64("books", dashboard.TotalBooks).
		Int64("on_loan", dashboard.BooksOnLoan).
		Int64("overdue", dashboard.OverdueBooks).
		Msg("Dashboard stats computed")

	return &dashboard, nil
}

func (s *statsService) GetPopularBooks(ctx context.Context) ([]models.PopularBook, error) {
	c, err := s.load(ctx, true, false, true)
	if err != nil {
		return nil, err
	}
	return stats.PopularBooks(c.books, c.lendings, s.opts.PopularBooksLimit), nil
}

func (s *statsService) GetOverdueBooks(ctx context.Context) ([]models.OverdueBook, error) {
	c, err := s.load(ctx, false, false, true)
	if err != nil {
		return nil, err
	}
	return stats.OverdueBooks(c.lendings, s.now()), nil
}

func (s *statsService) GetRecentActivity(ctx context.Context) ([]models.RecentActivity, error) {
	c, err := s.load(ctx, false, false, true)
	if err != nil {
		return nil, err
	}
	return stats.RecentActivity(c.lendings, s.now(), s.opts.RecentActivityWindow, s.opts.RecentActivityLimit), nil
}

func (s *statsService) GetGradeDistribution(ctx context.Context) ([]models.GradeCount, error) {
	c, err := s.load(ctx, false, true, false)
	if err != nil {
		return nil, err
	}
	return stats.GradeDistribution(c.students), nil
}
