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

type StudentRepository interface {
	Create(ctx context.Context, student *models.Student) error
	GetByID(ctx context.Context, id string) (*models.Student, error)
	GetByStudentNumber(ctx context.Context, studentNumber string) (*models.Student, error)
	GetAll(ctx context.Context, q models.ListQuery) ([]models.Student, error)
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) error
	CountActiveLendings(ctx context.Context, id string) (int, error)
}

type studentRepository struct {
	*PostgresRepository
}

func NewStudentRepository(db *sqlx.DB, logger zerolog.Logger) StudentRepository {
	return &studentRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

const studentColumns = `id, name, grade, phone_number, student_id, status, created_at`

func (r *studentRepository) Create(ctx context.Context, student *models.Student) error {
	query := `
		INSERT INTO students (id, name, grade, phone_number, student_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		student.ID,
		student.Name,
		student.Grade,
		student.PhoneNumber,
		student.StudentID,
		student.Status,
		student.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}

	return err
}

func (r *studentRepository) GetByID(ctx context.Context, id string) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1`

	student := &models.Student{}
	err := r.db.GetContext(ctx, student, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	return student, err
}

func (r *studentRepository) GetByStudentNumber(ctx context.Context, studentNumber string) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE student_id = $1`

	student := &models.Student{}
	err := r.db.GetContext(ctx, student, query, studentNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	return student, err
}

func (r *studentRepository) GetAll(ctx context.Context, q models.ListQuery) ([]models.Student, error) {
	ds := dialect.From("students").Select(
		goqu.C("id"), goqu.C("name"), goqu.C("grade"), goqu.C("phone_number"),
		goqu.C("student_id"), goqu.C("status"), goqu.C("created_at"),
	)

	students := []models.Student{}
	if err := r.selectDataset(ctx, &students, applyListQuery(ds, studentListSpec, q)); err != nil {
		return nil, err
	}

	return students, nil
}

func (r *studentRepository) Update(ctx context.Context, student *models.Student) error {
	query := `
		UPDATE students
		SET name = $1, grade = $2, phone_number = $3, student_id = $4, status = $5
		WHERE id = $6
	`

	res, err := r.db.ExecContext(ctx, query,
		student.Name,
		student.Grade,
		student.PhoneNumber,
		student.StudentID,
		student.Status,
		student.ID,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return err
	}

	return expectAffected(res)
}

func (r *studentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return err
	}

	return expectAffected(res)
}

func (r *studentRepository) CountActiveLendings(ctx context.Context, id string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM lendings WHERE student_id = $1 AND status = 'lent'`, id)
	return count, err
}
