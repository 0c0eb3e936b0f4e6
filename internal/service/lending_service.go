package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tiza/library-service/internal/models"
	"github.com/tiza/library-service/internal/repository"
)

type LendingService interface {
	CreateLending(ctx context.Context, req *models.CreateLendingRequest) (*models.LendingWithDetails, error)
	GetLendingByID(ctx context.Context, id string) (*models.LendingWithDetails, error)
	GetAllLendings(ctx context.Context, q models.ListQuery) ([]models.LendingWithDetails, error)
	GetLendingsByBookID(ctx context.Context, bookID string) ([]models.LendingWithDetails, error)
	GetLendingsByStudentID(ctx context.Context, studentID string) ([]models.LendingWithDetails, error)
	UpdateLending(ctx context.Context, req *models.UpdateLendingRequest) (*models.LendingWithDetails, error)
	ReturnLending(ctx context.Context, id string) (*models.LendingWithDetails, error)
	DeleteLending(ctx context.Context, id string) error
}

type lendingService struct {
	lendingRepo repository.LendingRepository
	bookRepo    repository.BookRepository
	studentRepo repository.StudentRepository
	now         func() time.Time
	logger      zerolog.Logger
}

func NewLendingService(
	lendingRepo repository.LendingRepository,
	bookRepo repository.BookRepository,
	studentRepo repository.StudentRepository,
	now func() time.Time,
	logger zerolog.Logger,
) LendingService {
	return &lendingService{
		lendingRepo: lendingRepo,
		bookRepo:    bookRepo,
		studentRepo: studentRepo,
		now:         now,
		logger:      logger,
	}
}

func (s *lendingService) CreateLending(ctx context.Context, req *models.CreateLendingRequest) (*models.LendingWithDetails, error) {
	now := s.now()
	if !req.DueDate.After(now) {
		return nil, ErrDueDateNotFuture
	}

	student, err := s.loadStudent(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}
	if student.Status != models.StudentStatusActive {
		return nil, ErrStudentInactive
	}

	book, err := s.loadBook(ctx, req.BookID)
	if err != nil {
		return nil, err
	}
	if book.Status != models.BookStatusAvailable || book.Quantity <= 0 {
		return nil, ErrBookUnavailable
	}

	active, err := s.lendingRepo.CountActiveByStudent(ctx, student.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count active lendings: %w", err)
	}
	if active > 0 {
		return nil, ErrStudentHasActiveLending
	}

	lending := &models.Lending{
		ID:        uuid.New().String(),
		BookID:    book.ID,
		StudentID: student.ID,
		LentAt:    now,
		DueDate:   req.DueDate,
		Status:    models.LendingStatusLent,
	}

	if err := s.lendingRepo.Lend(ctx, lending); err != nil {
		return nil, mapLendingError(err, "failed to create lending")
	}

	s.logger.Info().
		Str("lending_id", lending.ID).
		Str("book_id", lending.BookID).
		Str("student_id", lending.StudentID).
		Time("due_date", lending.DueDate).
		Msg("Book lent")

	return s.GetLendingByID(ctx, lending.ID)
}

func (s *lendingService) GetLendingByID(ctx context.Context, id string) (*models.LendingWithDetails, error) {
	lending, err := s.lendingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get lending: %w", err)
	}
	if lending == nil {
		return nil, ErrLendingNotFound
	}

	return lending, nil
}

func (s *lendingService) GetAllLendings(ctx context.Context, q models.ListQuery) ([]models.LendingWithDetails, error) {
	if err := checkRange(q); err != nil {
		return nil, err
	}

	lendings, err := s.lendingRepo.GetAll(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to get all lendings: %w", err)
	}

	return lendings, nil
}

func (s *lendingService) GetLendingsByBookID(ctx context.Context, bookID string) ([]models.LendingWithDetails, error) {
	lendings, err := s.lendingRepo.GetByBookID(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lendings by book: %w", err)
	}

	return lendings, nil
}

func (s *lendingService) GetLendingsByStudentID(ctx context.Context, studentID string) ([]models.LendingWithDetails, error) {
	lendings, err := s.lendingRepo.GetByStudentID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lendings by student: %w", err)
	}

	return lendings, nil
}

func (s *lendingService) UpdateLending(ctx context.Context, req *models.UpdateLendingRequest) (*models.LendingWithDetails, error) {
	current, err := s.GetLendingByID(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	if !req.DueDate.After(current.LentAt) {
		return nil, ErrInvalidDueDate
	}
	if req.ReturnedAt != nil && req.ReturnedAt.Before(current.LentAt) {
		return nil, ErrInvalidReturnDate
	}

	if req.StudentID != current.StudentID {
		student, err := s.loadStudent(ctx, req.StudentID)
		if err != nil {
			return nil, err
		}
		if current.Status == models.LendingStatusLent && student.Status != models.StudentStatusActive {
			return nil, ErrStudentInactive
		}
	}
	if req.BookID != current.BookID {
		book, err := s.loadBook(ctx, req.BookID)
		if err != nil {
			return nil, err
		}
		if current.Status == models.LendingStatusLent && book.Quantity <= 0 {
			return nil, ErrBookUnavailable
		}
	}

	lending := &models.Lending{
		ID:         current.ID,
		BookID:     req.BookID,
		StudentID:  req.StudentID,
		DueDate:    req.DueDate,
		ReturnedAt: req.ReturnedAt,
	}

	if err := s.lendingRepo.Update(ctx, lending); err != nil {
		return nil, mapLendingError(err, "failed to update lending")
	}

	s.logger.Info().
		Str("lending_id", lending.ID).
		Str("status", lending.Status.String()).
		Msg("Lending updated")

	return s.GetLendingByID(ctx, lending.ID)
}

func (s *lendingService) ReturnLending(ctx context.Context, id string) (*models.LendingWithDetails, error) {
	if err := s.lendingRepo.Return(ctx, id, s.now()); err != nil {
		return nil, mapLendingError(err, "failed to return lending")
	}

	s.logger.Info().Str("lending_id", id).Msg("Book returned")
	return s.GetLendingByID(ctx, id)
}

func (s *lendingService) DeleteLending(ctx context.Context, id string) error {
	if err := s.lendingRepo.Delete(ctx, id); err != nil {
		return mapLendingError(err, "failed to delete lending")
	}

	s.logger.Info().Str("lending_id", id).Msg("Lending deleted")
	return nil
}

func (s *lendingService) loadStudent(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.studentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	if student == nil {
		return nil, ErrStudentNotFound
	}
	return student, nil
}

func (s *lendingService) loadBook(ctx context.Context, id string) (*models.Book, error) {
	book, err := s.bookRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	if book == nil {
		return nil, ErrBookNotFound
	}
	return book, nil
}

// mapLendingError turns repository sentinels into service errors.
func mapLendingError(err error, msg string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrLendingNotFound
	case errors.Is(err, repository.ErrNoStock):
		return ErrBookUnavailable
	case errors.Is(err, repository.ErrDuplicate):
		return ErrStudentHasActiveLending
	case errors.Is(err, repository.ErrAlreadyReturned):
		return ErrAlreadyReturned
	default:
		return fmt.Errorf("%s: %w", msg, err)
	}
}
