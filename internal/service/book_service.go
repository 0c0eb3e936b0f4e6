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

type BookService interface {
	CreateBook(ctx context.Context, req *models.CreateBookRequest) (*models.Book, error)
	GetBookByID(ctx context.Context, id string) (*models.Book, error)
	GetAllBooks(ctx context.Context, q models.ListQuery) ([]models.Book, error)
	UpdateBook(ctx context.Context, req *models.UpdateBookRequest) (*models.Book, error)
	DeleteBook(ctx context.Context, id string) error
}

type bookService struct {
	bookRepo repository.BookRepository
	now      func() time.Time
	logger   zerolog.Logger
}

func NewBookService(bookRepo repository.BookRepository, now func() time.Time, logger zerolog.Logger) BookService {
	return &bookService{
		bookRepo: bookRepo,
		now:      now,
		logger:   logger,
	}
}

func (s *bookService) CreateBook(ctx context.Context, req *models.CreateBookRequest) (*models.Book, error) {
	book := &models.Book{
		ID:        uuid.New().String(),
		Title:     req.Title,
		Author:    req.Author,
		Quantity:  req.Quantity,
		ISBN:      req.ISBN,
		Category:  req.Category,
		Status:    models.StatusForQuantity(req.Quantity, ""),
		CreatedAt: s.now(),
	}

	if err := s.bookRepo.Create(ctx, book); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateBook
		}
		return nil, fmt.Errorf("failed to create book: %w", err)
	}

	s.logger.Info().
		Str("book_id", book.ID).
		Str("title", book.Title).
		Int("quantity", book.Quantity).
		Msg("Book created")

	return book, nil
}

func (s *bookService) GetBookByID(ctx context.Context, id string) (*models.Book, error) {
	book, err := s.bookRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	if book == nil {
		return nil, ErrBookNotFound
	}

	return book, nil
}

func (s *bookService) GetAllBooks(ctx context.Context, q models.ListQuery) ([]models.Book, error) {
	if err := checkRange(q); err != nil {
		return nil, err
	}

	books, err := s.bookRepo.GetAll(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to get all books: %w", err)
	}

	return books, nil
}

func (s *bookService) UpdateBook(ctx context.Context, req *models.UpdateBookRequest) (*models.Book, error) {
	book, err := s.GetBookByID(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	book.Title = req.Title
	book.Author = req.Author
	book.Quantity = req.Quantity
	book.ISBN = req.ISBN
	book.Category = req.Category
	book.Status = models.StatusForQuantity(req.Quantity, req.Status)

	if err := s.bookRepo.Update(ctx, book); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("failed to update book: %w", err)
	}

	s.logger.Info().Str("book_id", book.ID).Msg("Book updated")
	return book, nil
}

func (s *bookService) DeleteBook(ctx context.Context, id string) error {
	if _, err := s.GetBookByID(ctx, id); err != nil {
		return err
	}

	active, err := s.bookRepo.CountActiveLendings(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to count active lendings: %w", err)
	}
	if active > 0 {
		return ErrHasActiveLendings
	}

	if err := s.bookRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrBookNotFound
		}
		return fmt.Errorf("failed to delete book: %w", err)
	}

	s.logger.Info().Str("book_id", id).Msg("Book deleted")
	return nil
}

func checkRange(q models.ListQuery) error {
	if q.From != nil && q.To != nil && q.From.After(*q.To) {
		return ErrInvalidDateRange
	}
	return nil
}
