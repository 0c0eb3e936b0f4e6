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

type StudentService interface {
	CreateStudent(ctx context.Context, req *models.CreateStudentRequest) (*models.Student, error)
	GetStudentByID(ctx context.Context, id string) (*models.Student, error)
	GetAllStudents(ctx context.Context, q models.ListQuery) ([]models.Student, error)
	UpdateStudent(ctx context.Context, req *models.UpdateStudentRequest) (*models.Student, error)
	DeleteStudent(ctx context.Context, id string) error
}

type studentService struct {
	studentRepo repository.StudentRepository
	now         func() time.Time
	logger      zerolog.Logger
}

func NewStudentService(studentRepo repository.StudentRepository, now func() time.Time, logger zerolog.Logger) StudentService {
	return &studentService{
		studentRepo: studentRepo,
		now:         now,
		logger:      logger,
	}
}

func (s *studentService) CreateStudent(ctx context.Context, req *models.CreateStudentRequest) (*models.Student, error) {
	existing, err := s.studentRepo.GetByStudentNumber(ctx, req.StudentID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing student: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateStudentNumber
	}

	student := &models.Student{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Grade:       req.Grade,
		PhoneNumber: emptyToNil(req.PhoneNumber),
		StudentID:   req.StudentID,
		Status:      models.StudentStatusActive,
		CreatedAt:   s.now(),
	}

	if err := s.studentRepo.Create(ctx, student); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateStudentNumber
		}
		return nil, fmt.Errorf("failed to create student: %w", err)
	}

	s.logger.Info().
		Str("student_id", student.ID).
		Str("student_number", student.StudentID).
		Msg("Student created")

	return student, nil
}

func (s *studentService) GetStudentByID(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.studentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	if student == nil {
		return nil, ErrStudentNotFound
	}

	return student, nil
}

func (s *studentService) GetAllStudents(ctx context.Context, q models.ListQuery) ([]models.Student, error) {
	if err := checkRange(q); err != nil {
		return nil, err
	}

	students, err := s.studentRepo.GetAll(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to get all students: %w", err)
	}

	return students, nil
}

func (s *studentService) UpdateStudent(ctx context.Context, req *models.UpdateStudentRequest) (*models.Student, error) {
	student, err := s.GetStudentByID(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	if req.StudentID != student.StudentID {
		other, err := s.studentRepo.GetByStudentNumber(ctx, req.StudentID)
		if err != nil {
			return nil, fmt.Errorf("failed to check student id availability: %w", err)
		}
		if other != nil && other.ID != student.ID {
			return nil, ErrDuplicateStudentNumber
		}
	}

	student.Name = req.Name
	student.Grade = req.Grade
	student.PhoneNumber = emptyToNil(req.PhoneNumber)
	student.StudentID = req.StudentID
	student.Status = req.Status

	if err := s.studentRepo.Update(ctx, student); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrStudentNotFound
		case errors.Is(err, repository.ErrDuplicate):
			return nil, ErrDuplicateStudentNumber
		}
		return nil, fmt.Errorf("failed to update student: %w", err)
	}

	s.logger.Info().Str("student_id", student.ID).Msg("Student updated")
	return student, nil
}

func (s *studentService) DeleteStudent(ctx context.Context, id string) error {
	if _, err := s.GetStudentByID(ctx, id); err != nil {
		return err
	}

	active, err := s.studentRepo.CountActiveLendings(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to count active lendings: %w", err)
	}
	if active > 0 {
		return ErrHasActiveLendings
	}

	if err := s.studentRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrStudentNotFound
		}
		return fmt.Errorf("failed to delete student: %w", err)
	}

	s.logger.Info().Str("student_id", id).Msg("Student deleted")
	return nil
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
