package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/tiza/library-service/internal/models"
)

type LendingRepository interface {
	GetAll(ctx context.Context, q models.ListQuery) ([]models.LendingWithDetails, error)
	GetByID(ctx context.Context, id string) (*models.LendingWithDetails, error)
	GetByBookID(ctx context.Context, bookID string) ([]models.LendingWithDetails, error)
	GetByStudentID(ctx context.Context, studentID string) ([]models.LendingWithDetails, error)
	CountActiveByStudent(ctx context.Context, studentID string) (int, error)

	// Lend stores a new lending and takes one copy off the shelf atomically.
	Lend(ctx context.Context, lending *models.Lending) error
	// Update rewrites book, student, due date and return date. Stock follows
	// book changes of active lendings and a lent -> returned transition.
	Update(ctx context.Context, lending *models.Lending) error
	// Return marks the lending returned and puts the copy back on the shelf.
	Return(ctx context.Context, id string, returnedAt time.Time) error
	// Delete removes the lending; an active one gives its copy back first.
	Delete(ctx context.Context, id string) error
}

type lendingRepository struct {
	*PostgresRepository
}

func NewLendingRepository(db *sqlx.DB, logger zerolog.Logger) LendingRepository {
	return &lendingRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

func lendingDetailsDataset() *goqu.SelectDataset {
	return dialect.From(goqu.T("lendings").As("l")).
		LeftJoin(goqu.T("books").As("b"), goqu.On(goqu.I("l.book_id").Eq(goqu.I("b.id")))).
		LeftJoin(goqu.T("students").As("s"), goqu.On(goqu.I("l.student_id").Eq(goqu.I("s.id")))).
		Select(
			goqu.I("l.id"),
			goqu.I("l.book_id"),
			goqu.I("l.student_id"),
			goqu.I("l.lent_at"),
			goqu.I("l.due_date"),
			goqu.I("l.returned_at"),
			goqu.I("l.status"),
			goqu.COALESCE(goqu.I("b.title"), "").As("book_title"),
			goqu.COALESCE(goqu.I("b.author"), "").As("book_author"),
			goqu.COALESCE(goqu.I("b.category"), "").As("book_category"),
			goqu.COALESCE(goqu.I("s.name"), "").As("student_name"),
			goqu.COALESCE(goqu.I("s.student_id"), "").As("student_number"),
			goqu.COALESCE(goqu.I("s.grade"), "").As("student_grade"),
		)
}

func (r *lendingRepository) GetAll(ctx context.Context, q models.ListQuery) ([]models.LendingWithDetails, error) {
	lendings := []models.LendingWithDetails{}
	ds := applyListQuery(lendingDetailsDataset(), lendingListSpec, q)
	if err := r.selectDataset(ctx, &lendings, ds); err != nil {
		return nil, err
	}
	return lendings, nil
}

func (r *lendingRepository) GetByID(ctx context.Context, id string) (*models.LendingWithDetails, error) {
	query, args, err := lendingDetailsDataset().
		Where(goqu.I("l.id").Eq(id)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	lending := &models.LendingWithDetails{}
	err = r.db.GetContext(ctx, lending, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	return lending, err
}

func (r *lendingRepository) GetByBookID(ctx context.Context, bookID string) ([]models.LendingWithDetails, error) {
	lendings := []models.LendingWithDetails{}
	ds := lendingDetailsDataset().
		Where(goqu.I("l.book_id").Eq(bookID)).
		Order(goqu.I("l.lent_at").Desc())
	if err := r.selectDataset(ctx, &lendings, ds); err != nil {
		return nil, err
	}
	return lendings, nil
}

func (r *lendingRepository) GetByStudentID(ctx context.Context, studentID string) ([]models.LendingWithDetails, error) {
	lendings := []models.LendingWithDetails{}
	ds := lendingDetailsDataset().
		Where(goqu.I("l.student_id").Eq(studentID)).
		Order(goqu.I("l.lent_at").Desc())
	if err := r.selectDataset(ctx, &lendings, ds); err != nil {
		return nil, err
	}
	return lendings, nil
}

func (r *lendingRepository) CountActiveByStudent(ctx context.Context, studentID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM lendings WHERE student_id = $1 AND status = 'lent'`, studentID)
	return count, err
}

func (r *lendingRepository) Lend(ctx context.Context, lending *models.Lending) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := takeCopy(ctx, tx, lending.BookID); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO lendings (id, book_id, student_id, lent_at, due_date, status)
			VALUES ($1, $2, $3, $4, $5, $6)
		`,
			lending.ID,
			lending.BookID,
			lending.StudentID,
			lending.LentAt,
			lending.DueDate,
			lending.Status,
		)
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		if err != nil {
			return fmt.Errorf("failed to insert lending: %w", err)
		}

		return nil
	})
}

func (r *lendingRepository) Update(ctx context.Context, lending *models.Lending) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		current, err := lockLending(ctx, tx, lending.ID)
		if err != nil {
			return err
		}

		status := current.Status
		returnedAt := current.ReturnedAt

		if current.Status == models.LendingStatusLent {
			if current.BookID != lending.BookID {
				if err := giveBackCopy(ctx, tx, current.BookID); err != nil {
					return err
				}
				if err := takeCopy(ctx, tx, lending.BookID); err != nil {
					return err
				}
			}
			if lending.ReturnedAt != nil {
				if err := giveBackCopy(ctx, tx, lending.BookID); err != nil {
					return err
				}
				status = models.LendingStatusReturned
				returnedAt = lending.ReturnedAt
			}
		} else if lending.ReturnedAt != nil {
			returnedAt = lending.ReturnedAt
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE lendings
			SET book_id = $1, student_id = $2, due_date = $3, returned_at = $4, status = $5
			WHERE id = $6
		`,
			lending.BookID,
			lending.StudentID,
			lending.DueDate,
			returnedAt,
			status,
			lending.ID,
		)
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		if err != nil {
			return fmt.Errorf("failed to update lending: %w", err)
		}

		lending.Status = status
		lending.ReturnedAt = returnedAt
		lending.LentAt = current.LentAt
		return nil
	})
}

func (r *lendingRepository) Return(ctx context.Context, id string, returnedAt time.Time) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		current, err := lockLending(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Status == models.LendingStatusReturned {
			return ErrAlreadyReturned
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE lendings SET status = $1, returned_at = $2 WHERE id = $3`,
			models.LendingStatusReturned, returnedAt, id)
		if err != nil {
			return fmt.Errorf("failed to mark lending returned: %w", err)
		}

		return giveBackCopy(ctx, tx, current.BookID)
	})
}

func (r *lendingRepository) Delete(ctx context.Context, id string) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		current, err := lockLending(ctx, tx, id)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM lendings WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete lending: %w", err)
		}

		if current.Status == models.LendingStatusLent {
			return giveBackCopy(ctx, tx, current.BookID)
		}
		return nil
	})
}

func lockLending(ctx context.Context, tx *sqlx.Tx, id string) (*models.Lending, error) {
	lending := &models.Lending{}
	err := tx.GetContext(ctx, lending, `
		SELECT id, book_id, student_id, lent_at, due_date, returned_at, status
		FROM lendings
		WHERE id = $1
		FOR UPDATE
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load lending: %w", err)
	}
	return lending, nil
}

func takeCopy(ctx context.Context, tx *sqlx.Tx, bookID string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE books
		SET quantity = quantity - 1,
			status = CASE WHEN quantity - 1 <= 0 THEN 'unavailable' ELSE status END
		WHERE id = $1 AND quantity > 0
	`, bookID)
	if err != nil {
		return fmt.Errorf("failed to take book copy: %w", err)
	}
	if err := expectAffected(res); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNoStock
		}
		return err
	}
	return nil
}

func giveBackCopy(ctx context.Context, tx *sqlx.Tx, bookID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE books
		SET quantity = quantity + 1,
			status = 'available'
		WHERE id = $1
	`, bookID)
	if err != nil {
		return fmt.Errorf("failed to return book copy: %w", err)
	}
	return nil
}
