package httpd

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"github.com/tiza/library-service/internal/command"
	"github.com/tiza/library-service/pkg/catalog"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxBodySize = 10 << 20

type HealthFunc func(ctx context.Context) error

type Handler struct {
	registry *command.Registry
	health   HealthFunc
	now      func() time.Time
	logger   zerolog.Logger
}

func NewHandler(registry *command.Registry, health HealthFunc, logger zerolog.Logger) *Handler {
	return &Handler{
		registry: registry,
		health:   health,
		now:      time.Now,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/health", h.HealthCheck)

	router.Route("/api/v1", func(api chi.Router) {
		api.Get("/commands", h.ListCommands)
		api.Post("/invoke/{command}", h.Invoke)

		api.Route("/books", func(r chi.Router) {
			r.Get("/", h.alias(catalog.GetAllBooks))
			r.Post("/", h.alias(catalog.CreateBook))
			r.Get("/{id}", h.alias(catalog.GetBookByID))
			r.Put("/{id}", h.alias(catalog.UpdateBook))
			r.Delete("/{id}", h.alias(catalog.DeleteBook))
			r.Get("/{id}/lendings", h.alias(catalog.GetLendingsByBookID))
		})

		api.Route("/students", func(r chi.Router) {
			r.Get("/", h.alias(catalog.GetAllStudents))
			r.Post("/", h.alias(catalog.CreateStudent))
			r.Get("/{id}", h.alias(catalog.GetStudentByID))
			r.Put("/{id}", h.alias(catalog.UpdateStudent))
			r.Delete("/{id}", h.alias(catalog.DeleteStudent))
			r.Get("/{id}/lendings", h.alias(catalog.GetLendingsByStudentID))
		})

		api.Route("/lendings", func(r chi.Router) {
			r.Get("/", h.alias(catalog.GetAllLendings))
			r.Post("/", h.alias(catalog.CreateLending))
			r.Get("/{id}", h.alias(catalog.GetLendingByID))
			r.Put("/{id}", h.alias(catalog.UpdateLending))
			r.Delete("/{id}", h.alias(catalog.DeleteLending))
			r.Post("/{id}/return", h.alias(catalog.ReturnLending))
		})

		api.Route("/stats", func(r chi.Router) {
			r.Get("/dashboard", h.alias(catalog.GetDashboardStats))
			r.Get("/popular-books", h.alias(catalog.GetPopularBooks))
			r.Get("/overdue", h.alias(catalog.GetOverdueBooks))
			r.Get("/recent-activity", h.alias(catalog.GetRecentActivity))
			r.Get("/grades", h.alias(catalog.GetGradeDistribution))
		})

		api.Route("/maintenance", func(r chi.Router) {
			r.Get("/backups", h.alias(catalog.ListBackups))
			r.Post("/backup", h.alias(catalog.BackupDatabase))
			r.Post("/restore", h.alias(catalog.RestoreDatabase))
			r.Post("/export", h.alias(catalog.ExportData))
			r.Post("/import", h.alias(catalog.ImportData))
			r.Post("/refresh", h.alias(catalog.RefreshApp))
		})
	})
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			h.logger.Warn().Err(err).Msg("Health check failed")
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"service":   "library-service",
		"timestamp": h.now().UTC(),
	})
}

func (h *Handler) ListCommands(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, h.registry.Commands())
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func writeSuccess(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

func writeError(w http.ResponseWriter, err *command.Error) {
	body := map[string]interface{}{
		"success": false,
		"error":   err.Code,
		"message": err.Message,
	}
	if len(err.Details) > 0 {
		body["details"] = err.Details
	}
	writeJSON(w, statusFor(err.Code), body)
}

func statusFor(code command.Code) int {
	switch code {
	case command.CodeInvalidArgument:
		return http.StatusBadRequest
	case command.CodeNotFound, command.CodeUnknownCommand:
		return http.StatusNotFound
	case command.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
