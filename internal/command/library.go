package command

import (
	"context"

	"github.com/tiza/library-service/internal/models"
	"github.com/tiza/library-service/internal/service"
	"github.com/tiza/library-service/pkg/catalog"
)

const testMessage = "Test successful from the library backend!"

type Services struct {
	Books       service.BookService
	Students    service.StudentService
	Lendings    service.LendingService
	Stats       service.StatsService
	Maintenance service.MaintenanceService
}

// RegisterLibrary registers every catalogue command against the services.
func RegisterLibrary(r *Registry, s Services) {
	r.Register(catalog.TestCommand, func(context.Context, Args) (interface{}, error) {
		return testMessage, nil
	})

	r.Register(catalog.GetDashboardStats, noArgs(s.Stats.GetDashboardStats))
	r.Register(catalog.GetPopularBooks, noArgs(s.Stats.GetPopularBooks))
	r.Register(catalog.GetOverdueBooks, noArgs(s.Stats.GetOverdueBooks))
	r.Register(catalog.GetRecentActivity, noArgs(s.Stats.GetRecentActivity))
	r.Register(catalog.GetGradeDistribution, noArgs(s.Stats.GetGradeDistribution))

	r.Register(catalog.GetAllBooks, list(s.Books.GetAllBooks))
	r.Register(catalog.GetBookByID, byID(s.Books.GetBookByID))
	r.Register(catalog.CreateBook, bind(s.Books.CreateBook))
	r.Register(catalog.UpdateBook, bind(s.Books.UpdateBook))
	r.Register(catalog.DeleteBook, deleteByID(s.Books.DeleteBook))

	r.Register(catalog.GetAllStudents, list(s.Students.GetAllStudents))
	r.Register(catalog.GetStudentByID, byID(s.Students.GetStudentByID))
	r.Register(catalog.CreateStudent, bind(s.Students.CreateStudent))
	r.Register(catalog.UpdateStudent, bind(s.Students.UpdateStudent))
	r.Register(catalog.DeleteStudent, deleteByID(s.Students.DeleteStudent))

	r.Register(catalog.GetAllLendings, list(s.Lendings.GetAllLendings))
	r.Register(catalog.GetLendingByID, byID(s.Lendings.GetLendingByID))
	r.Register(catalog.GetLendingsByBookID, byID(s.Lendings.GetLendingsByBookID))
	r.Register(catalog.GetLendingsByStudentID, byID(s.Lendings.GetLendingsByStudentID))
	r.Register(catalog.CreateLending, bind(s.Lendings.CreateLending))
	r.Register(catalog.UpdateLending, bind(s.Lendings.UpdateLending))
	r.Register(catalog.ReturnLending, byID(s.Lendings.ReturnLending))
	r.Register(catalog.DeleteLending, deleteByID(s.Lendings.DeleteLending))

	r.Register(catalog.BackupDatabase, noArgs(s.Maintenance.Backup))
	r.Register(catalog.RestoreDatabase, bind(func(ctx context.Context, req *models.RestoreRequest) (*models.RestoreResult, error) {
		return s.Maintenance.Restore(ctx, req.Path)
	}))
	r.Register(catalog.ExportData, bind(s.Maintenance.Export))
	r.Register(catalog.ImportData, bind(s.Maintenance.Import))
	r.Register(catalog.ListBackups, noArgs(s.Maintenance.ListBackups))

	// refresh_app only exists for its side effect: the mutation hooks tell
	// every client to drop its cache.
	r.Register(catalog.RefreshApp, func(context.Context, Args) (interface{}, error) {
		return nil, nil
	})
}

func noArgs[R any](fn func(context.Context) (R, error)) HandlerFunc {
	return func(ctx context.Context, _ Args) (interface{}, error) {
		out, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
}

func bind[T, R any](fn func(context.Context, *T) (R, error)) HandlerFunc {
	return func(ctx context.Context, args Args) (interface{}, error) {
		req, err := Bind[T](args)
		if err != nil {
			return nil, err
		}
		out, err := fn(ctx, req)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
}

func byID[R any](fn func(context.Context, string) (R, error)) HandlerFunc {
	return bind(func(ctx context.Context, req *models.IDRequest) (R, error) {
		return fn(ctx, req.ID)
	})
}

func deleteByID(fn func(context.Context, string) error) HandlerFunc {
	return func(ctx context.Context, args Args) (interface{}, error) {
		req, err := Bind[models.IDRequest](args)
		if err != nil {
			return nil, err
		}
		return nil, fn(ctx, req.ID)
	}
}

func list[R any](fn func(context.Context, models.ListQuery) (R, error)) HandlerFunc {
	return bind(func(ctx context.Context, q *models.ListQuery) (R, error) {
		return fn(ctx, *q)
	})
}
