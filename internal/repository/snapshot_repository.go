package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/tiza/library-service/internal/models"
)

// insertBatchSize bounds the number of rows per multi-row INSERT.
const insertBatchSize = 500

var sqlTxReadOnlySnapshot = sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

type SnapshotRepository interface {
	Dump(ctx context.Context) (*models.Snapshot, error)
	// Replace drops every row and loads the snapshot in one transaction.
	Replace(ctx context.Context, snapshot *models.Snapshot) error
	// Import adds snapshot rows whose ids are not present yet.
	Import(ctx context.Context, snapshot *models.Snapshot) (models.ImportCounts, error)
}

type snapshotRepository struct {
	*PostgresRepository
}

func NewSnapshotRepository(db *sqlx.DB, logger zerolog.Logger) SnapshotRepository {
	return &snapshotRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

func (r *snapshotRepository) Dump(ctx context.Context) (*models.Snapshot, error) {
	snapshot := &models.Snapshot{
		Version:  models.SnapshotVersion,
		Books:    []models.Book{},
		Students: []models.Student{},
		Lendings: []models.Lending{},
	}

	// REPEATABLE READ keeps the three reads consistent with each other.
	tx, err := r.db.BeginTxx(ctx, &sqlTxReadOnlySnapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	if err := tx.SelectContext(ctx, &snapshot.Books,
		`SELECT `+bookColumns+` FROM books ORDER BY created_at`); err != nil {
		return nil, fmt.Errorf("failed to dump books: %w", err)
	}
	if err := tx.SelectContext(ctx, &snapshot.Students,
		`SELECT `+studentColumns+` FROM students ORDER BY created_at`); err != nil {
		return nil, fmt.Errorf("failed to dump students: %w", err)
	}
	if err := tx.SelectContext(ctx, &snapshot.Lendings, `
		SELECT id, book_id, student_id, lent_at, due_date, returned_at, status
		FROM lendings ORDER BY lent_at`); err != nil {
		return nil, fmt.Errorf("failed to dump lendings: %w", err)
	}

	if err := tx.GetContext(ctx, &snapshot.CreatedAt, `SELECT NOW()`); err != nil {
		return nil, fmt.Errorf("failed to read snapshot time: %w", err)
	}

	return snapshot, nil
}

func (r *snapshotRepository) Replace(ctx context.Context, snapshot *models.Snapshot) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, table := range []string{"lendings", "students", "books"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}

		// A snapshot already carries shelf quantities that match its lendings.
		_, err := insertSnapshot(ctx, tx, snapshot, false)
		return err
	})
}

// Import skips rows whose id exists. A new active lending of a book that was
// already in the database takes a copy off its shelf; the import fails with
// ErrNoStock when none is left. Books arriving in the same import keep the
// quantity recorded in the file.
func (r *snapshotRepository) Import(ctx context.Context, snapshot *models.Snapshot) (models.ImportCounts, error) {
	var counts models.ImportCounts
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		inserted, err := insertSnapshot(ctx, tx, snapshot, true)
		if err != nil {
			return err
		}

		for _, l := range snapshot.Lendings {
			if l.Status != models.LendingStatusLent || !inserted.lendings[l.ID] || inserted.books[l.BookID] {
				continue
			}
			if err := takeCopy(ctx, tx, l.BookID); err != nil {
				return fmt.Errorf("failed to import lending %s: %w", l.ID, err)
			}
		}

		counts = inserted.counts()
		return nil
	})
	return counts, err
}

type insertedRows struct {
	books    map[string]bool
	students map[string]bool
	lendings map[string]bool
}

func (i insertedRows) counts() models.ImportCounts {
	return models.ImportCounts{
		Books:    len(i.books),
		Students: len(i.students),
		Lendings: len(i.lendings),
	}
}

func insertSnapshot(ctx context.Context, tx *sqlx.Tx, snapshot *models.Snapshot, skipExisting bool) (insertedRows, error) {
	var inserted insertedRows
	var err error

	if inserted.books, err = insertRows(ctx, tx, "books", toRows(snapshot.Books), skipExisting); err != nil {
		return inserted, fmt.Errorf("failed to insert books: %w", err)
	}
	if inserted.students, err = insertRows(ctx, tx, "students", toRows(snapshot.Students), skipExisting); err != nil {
		return inserted, fmt.Errorf("failed to insert students: %w", err)
	}
	if inserted.lendings, err = insertRows(ctx, tx, "lendings", toRows(snapshot.Lendings), skipExisting); err != nil {
		return inserted, fmt.Errorf("failed to insert lendings: %w", err)
	}

	return inserted, nil
}

func toRows[T any](items []T) []interface{} {
	rows := make([]interface{}, len(items))
	for i := range items {
		rows[i] = items[i]
	}
	return rows
}

// insertRows returns the ids that were actually written; rows skipped on
// conflict are absent.
func insertRows(ctx context.Context, tx *sqlx.Tx, table string, rows []interface{}, skipExisting bool) (map[string]bool, error) {
	inserted := make(map[string]bool, len(rows))
	for start := 0; start < len(rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(rows) {
			end = len(rows)
		}

		query, args, err := buildInsert(table, rows[start:end], skipExisting)
		if err != nil {
			return inserted, err
		}

		var ids []string
		if err := tx.SelectContext(ctx, &ids, query, args...); err != nil {
			return inserted, err
		}
		for _, id := range ids {
			inserted[id] = true
		}
	}
	return inserted, nil
}

func buildInsert(table string, rows []interface{}, skipExisting bool) (string, []interface{}, error) {
	ds := dialect.Insert(table).Rows(rows...).Returning(goqu.C("id"))
	if skipExisting {
		ds = ds.OnConflict(goqu.DoNothing())
	}
	return ds.Prepared(true).ToSQL()
}
