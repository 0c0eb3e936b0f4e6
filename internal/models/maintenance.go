package models

import "time"

// Snapshot is the full content of the library at one point in time.
// Backups, JSON exports and JSON imports all use this shape.
type Snapshot struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Books     []Book    `json:"books"`
	Students  []Student `json:"students"`
	Lendings  []Lending `json:"lendings"`
}

const SnapshotVersion = 1

type BackupResult struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Path    *string `json:"path"`
}

type RestoreResult struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Counts  *ImportCounts `json:"counts,omitempty"`
}

type ImportCounts struct {
	Books    int `json:"books"`
	Students int `json:"students"`
	Lendings int `json:"lendings"`
}

func (c ImportCounts) Total() int {
	return c.Books + c.Students + c.Lendings
}

type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatJSON ExportFormat = "json"
)

type Entity string

const (
	EntityBooks    Entity = "books"
	EntityStudents Entity = "students"
	EntityLendings Entity = "lendings"
	EntityAll      Entity = "all"
)

// Entities lists the concrete entity kinds in dependency order.
var Entities = []Entity{EntityBooks, EntityStudents, EntityLendings}
