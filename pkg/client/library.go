package client

import (
	"context"

	"github.com/tiza/library-service/internal/models"
	"github.com/tiza/library-service/pkg/catalog"
)

type idArgs struct {
	ID string `json:"id"`
}

func (c *Client) TestCommand(ctx context.Context) (string, error) {
	var out string
	err := c.Invoke(ctx, catalog.TestCommand, nil, &out)
	return out, err
}

func (c *Client) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	var out models.DashboardStats
	if err := c.Invoke(ctx, catalog.GetDashboardStats, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) PopularBooks(ctx context.Context) ([]models.PopularBook, error) {
	var out []models.PopularBook
	err := c.Invoke(ctx, catalog.GetPopularBooks, nil, &out)
	return out, err
}

func (c *Client) OverdueBooks(ctx context.Context) ([]models.OverdueBook, error) {
	var out []models.OverdueBook
	err := c.Invoke(ctx, catalog.GetOverdueBooks, nil, &out)
	return out, err
}

func (c *Client) RecentActivity(ctx context.Context) ([]models.RecentActivity, error) {
	var out []models.RecentActivity
	err := c.Invoke(ctx, catalog.GetRecentActivity, nil, &out)
	return out, err
}

func (c *Client) GradeDistribution(ctx context.Context) ([]models.GradeCount, error) {
	var out []models.GradeCount
	err := c.Invoke(ctx, catalog.GetGradeDistribution, nil, &out)
	return out, err
}

// Books

func (c *Client) Books(ctx context.Context, q *models.ListQuery) ([]models.Book, error) {
	var out []models.Book
	err := c.Invoke(ctx, catalog.GetAllBooks, q, &out)
	return out, err
}

func (c *Client) Book(ctx context.Context, id string) (*models.Book, error) {
	var out models.Book
	if err := c.Invoke(ctx, catalog.GetBookByID, idArgs{ID: id}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateBook(ctx context.Context, req *models.CreateBookRequest) (*models.Book, error) {
	var out models.Book
	if err := c.Invoke(ctx, catalog.CreateBook, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateBook(ctx context.Context, req *models.UpdateBookRequest) (*models.Book, error) {
	var out models.Book
	if err := c.Invoke(ctx, catalog.UpdateBook, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteBook(ctx context.Context, id string) error {
	return c.Invoke(ctx, catalog.DeleteBook, idArgs{ID: id}, nil)
}

// Students

func (c *Client) Students(ctx context.Context, q *models.ListQuery) ([]models.Student, error) {
	var out []models.Student
	err := c.Invoke(ctx, catalog.GetAllStudents, q, &out)
	return out, err
}

func (c *Client) Student(ctx context.Context, id string) (*models.Student, error) {
	var out models.Student
	if err := c.Invoke(ctx, catalog.GetStudentByID, idArgs{ID: id}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateStudent(ctx context.Context, req *models.CreateStudentRequest) (*models.Student, error) {
	var out models.Student
	if err := c.Invoke(ctx, catalog.CreateStudent, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateStudent(ctx context.Context, req *models.UpdateStudentRequest) (*models.Student, error) {
	var out models.Student
	if err := c.Invoke(ctx, catalog.UpdateStudent, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteStudent(ctx context.Context, id string) error {
	return c.Invoke(ctx, catalog.DeleteStudent, idArgs{ID: id}, nil)
}

// Lendings

func (c *Client) Lendings(ctx context.Context, q *models.ListQuery) ([]models.LendingWithDetails, error) {
	var out []models.LendingWithDetails
	err := c.Invoke(ctx, catalog.GetAllLendings, q, &out)
	return out, err
}

func (c *Client) Lending(ctx context.Context, id string) (*models.LendingWithDetails, error) {
	return c.lending(ctx, catalog.GetLendingByID, idArgs{ID: id})
}

func (c *Client) LendingsByBook(ctx context.Context, bookID string) ([]models.LendingWithDetails, error) {
	var out []models.LendingWithDetails
	err := c.Invoke(ctx, catalog.GetLendingsByBookID, idArgs{ID: bookID}, &out)
	return out, err
}

func (c *Client) LendingsByStudent(ctx context.Context, studentID string) ([]models.LendingWithDetails, error) {
	var out []models.LendingWithDetails
	err := c.Invoke(ctx, catalog.GetLendingsByStudentID, idArgs{ID: studentID}, &out)
	return out, err
}

func (c *Client) CreateLending(ctx context.Context, req *models.CreateLendingRequest) (*models.LendingWithDetails, error) {
	return c.lending(ctx, catalog.CreateLending, req)
}

func (c *Client) UpdateLending(ctx context.Context, req *models.UpdateLendingRequest) (*models.LendingWithDetails, error) {
	return c.lending(ctx, catalog.UpdateLending, req)
}

func (c *Client) ReturnLending(ctx context.Context, id string) (*models.LendingWithDetails, error) {
	return c.lending(ctx, catalog.ReturnLending, idArgs{ID: id})
}

func (c *Client) DeleteLending(ctx context.Context, id string) error {
	return c.Invoke(ctx, catalog.DeleteLending, idArgs{ID: id}, nil)
}

func (c *Client) lending(ctx context.Context, command string, args interface{}) (*models.LendingWithDetails, error) {
	var out models.LendingWithDetails
	if err := c.Invoke(ctx, command, args, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Maintenance

func (c *Client) Backup(ctx context.Context) (*models.BackupResult, error) {
	var out models.BackupResult
	if err := c.Invoke(ctx, catalog.BackupDatabase, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Restore(ctx context.Context, path string) (*models.RestoreResult, error) {
	var out models.RestoreResult
	if err := c.Invoke(ctx, catalog.RestoreDatabase, models.RestoreRequest{Path: path}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Export(ctx context.Context, req *models.ExportRequest) (*models.BackupResult, error) {
	var out models.BackupResult
	if err := c.Invoke(ctx, catalog.ExportData, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Import(ctx context.Context, req *models.ImportRequest) (*models.RestoreResult, error) {
	var out models.RestoreResult
	if err := c.Invoke(ctx, catalog.ImportData, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListBackups(ctx context.Context) ([]string, error) {
	var out []string
	err := c.Invoke(ctx, catalog.ListBackups, nil, &out)
	return out, err
}

func (c *Client) RefreshApp(ctx context.Context) error {
	return c.Invoke(ctx, catalog.RefreshApp, nil, nil)
}
