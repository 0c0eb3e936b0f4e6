package command

import (
	"context"

	"github.com/tiza/library-service/internal/models"
)

type stubBooks struct {
	created *models.CreateBookRequest
	query   models.ListQuery
	err     error
}

func (s *stubBooks) CreateBook(_ context.Context, req *models.CreateBookRequest) (*models.Book, error) {
	s.created = req
	if s.err != nil {
		return nil, s.err
	}
	return &models.Book{ID: "b1", Title: req.Title, Quantity: req.Quantity}, nil
}

func (s *stubBooks) GetBookByID(_ context.Context, id string) (*models.Book, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Book{ID: id}, nil
}

func (s *stubBooks) GetAllBooks(_ context.Context, q models.ListQuery) ([]models.Book, error) {
	s.query = q
	return []models.Book{{ID: "b1"}, {ID: "b2"}}, s.err
}

func (s *stubBooks) UpdateBook(_ context.Context, req *models.UpdateBookRequest) (*models.Book, error) {
	return &models.Book{ID: req.ID}, s.err
}

func (s *stubBooks) DeleteBook(context.Context, string) error {
	return s.err
}

type stubStudents struct{}

func (stubStudents) CreateStudent(_ context.Context, req *models.CreateStudentRequest) (*models.Student, error) {
	return &models.Student{ID: "s1", Name: req.Name}, nil
}

func (stubStudents) GetStudentByID(_ context.Context, id string) (*models.Student, error) {
	return &models.Student{ID: id}, nil
}

func (stubStudents) GetAllStudents(context.Context, models.ListQuery) ([]models.Student, error) {
	return nil, nil
}

func (stubStudents) UpdateStudent(_ context.Context, req *models.UpdateStudentRequest) (*models.Student, error) {
	return &models.Student{ID: req.ID}, nil
}

func (stubStudents) DeleteStudent(context.Context, string) error { return nil }

type stubLendings struct {
	created *models.CreateLendingRequest
	err     error
}

func (s *stubLendings) CreateLending(_ context.Context, req *models.CreateLendingRequest) (*models.LendingWithDetails, error) {
	s.created = req
	if s.err != nil {
		return nil, s.err
	}
	return &models.LendingWithDetails{Lending: models.Lending{ID: "l1", BookID: req.BookID, StudentID: req.StudentID}}, nil
}

func (s *stubLendings) GetLendingByID(_ context.Context, id string) (*models.LendingWithDetails, error) {
	return &models.LendingWithDetails{Lending: models.Lending{ID: id}}, s.err
}

func (s *stubLendings) GetAllLendings(context.Context, models.ListQuery) ([]models.LendingWithDetails, error) {
	return nil, s.err
}

func (s *stubLendings) GetLendingsByBookID(context.Context, string) ([]models.LendingWithDetails, error) {
	return nil, s.err
}

func (s *stubLendings) GetLendingsByStudentID(context.Context, string) ([]models.LendingWithDetails, error) {
	return nil, s.err
}

func (s *stubLendings) UpdateLending(_ context.Context, req *models.UpdateLendingRequest) (*models.LendingWithDetails, error) {
	return &models.LendingWithDetails{Lending: models.Lending{ID: req.ID}}, s.err
}

func (s *stubLendings) ReturnLending(_ context.Context, id string) (*models.LendingWithDetails, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.LendingWithDetails{Lending: models.Lending{ID: id, Status: models.LendingStatusReturned}}, nil
}

func (s *stubLendings) DeleteLending(context.Context, string) error { return s.err }

type stubStats struct{}

func (stubStats) GetDashboardStats(context.Context) (*models.DashboardStats, error) {
	return &models.DashboardStats{TotalBooks: 2}, nil
}

func (stubStats) GetPopularBooks(context.Context) ([]models.PopularBook, error) { return nil, nil }

func (stubStats) GetOverdueBooks(context.Context) ([]models.OverdueBook, error) { return nil, nil }

func (stubStats) GetRecentActivity(context.Context) ([]models.RecentActivity, error) {
	return nil, nil
}

func (stubStats) GetGradeDistribution(context.Context) ([]models.GradeCount, error) {
	return nil, nil
}

type stubMaintenance struct {
	restored string
}

func (s *stubMaintenance) Backup(context.Context) (*models.BackupResult, error) {
	path := "backups/library_backup_20260504_100000.json"
	return &models.BackupResult{Success: true, Path: &path}, nil
}

func (s *stubMaintenance) Restore(_ context.Context, key string) (*models.RestoreResult, error) {
	s.restored = key
	return &models.RestoreResult{Success: true}, nil
}

func (s *stubMaintenance) Export(context.Context, *models.ExportRequest) (*models.BackupResult, error) {
	return &models.BackupResult{Success: true}, nil
}

func (s *stubMaintenance) Import(context.Context, *models.ImportRequest) (*models.RestoreResult, error) {
	return &models.RestoreResult{Success: true}, nil
}

func (s *stubMaintenance) ListBackups(context.Context) ([]string, error) {
	return []string{"backups/a.json"}, nil
}

func (s *stubMaintenance) PruneBackups(context.Context, int) ([]string, error) {
	return nil, nil
}

type stubs struct {
	books       *stubBooks
	lendings    *stubLendings
	maintenance *stubMaintenance
}

func newLibraryRegistry() (*Registry, *stubs) {
	s := &stubs{books: &stubBooks{}, lendings: &stubLendings{}, maintenance: &stubMaintenance{}}
	r := NewRegistry(zerologNop)
	RegisterLibrary(r, Services{
		Books:       s.books,
		Students:    stubStudents{},
		Lendings:    s.lendings,
		Stats:       stubStats{},
		Maintenance: s.maintenance,
	})
	return r, s
}
