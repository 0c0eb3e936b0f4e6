package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/tiza/library-service/internal/models"
)

type BookRepository interface {
	Create(ctx context.Context, book *models.Book) error
	GetByID(ctx context.Context, id string) (*models.Book, error)
	GetAll(ctx context.Context, q models.ListQuery) ([]models.Book, error)
	Update(ctx context.Context, book *models.Book) error
	Delete(ctx context.Context, id string) error
	CountActiveLendings(ctx context.Context, id string) (int, error)
}

type bookRepository struct {
	*PostgresRepository
}

func NewBookRepository(db *sqlx.DB, logger zerolog.Logger) BookRepository {
	return &bookRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

const bookColumns = `id, title, author, quantity, isbn, category, status, created_at`

func (r *bookRepository) Create(ctx context.Context, book *models.Book) error {
	query := `
		INSERT INTO books (id, title, author, quantity, isbn, category, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		book.ID,
		book.Title,
		book.Author,
		book.Quantity,
		book.ISBN,
		book.Category,
		book.Status,
		book.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}

	return err
}

func (r *bookRepository) GetByID(ctx context.Context, id string) (*models.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE id = $1`

	book := &models.Book{}
	err := r.db.GetContext(ctx, book, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	return book, err
}

func (r *bookRepository) GetAll(ctx context.Context, q models.ListQuery) ([]models.Book, error) {
	ds := dialect.From("books").Select(
		goqu.C("id"), goqu.C("title"), goqu.C("author"), goqu.C("quantity"),
		goqu.C("isbn"), goqu.C("category"), goqu.C("status"), goqu.C("created_at"),
	)

	books := []models.Book{}
	if err := r.selectDataset(ctx, &books, applyListQuery(ds, bookListSpec, q)); err != nil {
		return nil, err
	}

	return books, nil
}

func (r *bookRepository) Update(ctx context.Context, book *models.Book) error {
	query := `
		UPDATE books
		SET title = $1, author = $2, quantity = $3, isbn = $4, category = $5, status = $6
		WHERE id = $7
	`

	res, err := r.db.ExecContext(ctx, query,
		book.Title,
		book.Author,
		book.Quantity,
		book.ISBN,
		book.Category,
		book.Status,
		book.ID,
	)
	if err != nil {
		return err
	}

	return expectAffected(res)
}

func (r *bookRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return err
	}

	return expectAffected(res)
}

func (r *bookRepository) CountActiveLendings(ctx context.Context, id string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM lendings WHERE book_id = $1 AND status = 'lent'`, id)
	return count, err
}
