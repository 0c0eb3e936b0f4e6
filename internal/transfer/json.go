// Package transfer encodes library data for backups, exports and imports.
package transfer

import (
	"fmt"
	"io"
	"path"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/tiza/library-service/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func EncodeSnapshot(w io.Writer, snapshot *models.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snapshot); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}

func DecodeSnapshot(r io.Reader) (*models.Snapshot, error) {
	var snapshot models.Snapshot
	if err := json.NewDecoder(r).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snapshot.Version > models.SnapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version: %d", snapshot.Version)
	}
	return &snapshot, nil
}

// FormatFromPath picks the codec for an object key by its extension.
func FormatFromPath(p string) (models.ExportFormat, error) {
	switch strings.ToLower(path.Ext(p)) {
	case ".json":
		return models.ExportFormatJSON, nil
	case ".csv":
		return models.ExportFormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported file type: %s", p)
	}
}

// EntityFromPath guesses the entity of a CSV file from its base name, e.g. "exports/x/books.csv".
func EntityFromPath(p string) (models.Entity, bool) {
	base := strings.ToLower(path.Base(p))
	base = strings.TrimSuffix(base, path.Ext(base))
	for _, e := range models.Entities {
		if strings.Contains(base, string(e)) {
			return e, true
		}
	}
	return "", false
}

// Filter keeps only the rows of the given entity. EntityAll and "" keep everything.
func Filter(snapshot *models.Snapshot, entity models.Entity) *models.Snapshot {
	out := &models.Snapshot{
		Version:   snapshot.Version,
		CreatedAt: snapshot.CreatedAt,
		Books:     []models.Book{},
		Students:  []models.Student{},
		Lendings:  []models.Lending{},
	}

	switch entity {
	case models.EntityBooks:
		out.Books = snapshot.Books
	case models.EntityStudents:
		out.Students = snapshot.Students
	case models.EntityLendings:
		out.Lendings = snapshot.Lendings
	default:
		out.Books = snapshot.Books
		out.Students = snapshot.Students
		out.Lendings = snapshot.Lendings
	}
	return out
}
