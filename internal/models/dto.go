package models

import (
	"bytes"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// Data Transfer Objects

type IDRequest struct {
	ID string `json:"id" validate:"required"`
}

type CreateBookRequest struct {
	Title    string `json:"title" validate:"required,max=255"`
	Author   string `json:"author" validate:"required,max=255"`
	Quantity int    `json:"quantity" validate:"min=0"`
	ISBN     string `json:"isbn" validate:"max=32"`
	Category string `json:"category" validate:"required,max=100"`
}

type UpdateBookRequest struct {
	ID       string     `json:"id" validate:"required"`
	Title    string     `json:"title" validate:"required,max=255"`
	Author   string     `json:"author" validate:"required,max=255"`
	Quantity int        `json:"quantity" validate:"min=0"`
	ISBN     string     `json:"isbn" validate:"max=32"`
	Category string     `json:"category" validate:"required,max=100"`
	Status   BookStatus `json:"status" validate:"required,oneof=available unavailable"`
}

type CreateStudentRequest struct {
	Name        string  `json:"name" validate:"required,min=2,max=255"`
	Grade       string  `json:"grade" validate:"required,max=20"`
	PhoneNumber *string `json:"phone_number" validate:"omitempty,max=32"`
	StudentID   string  `json:"student_id" validate:"required,max=50"`
}

type UpdateStudentRequest struct {
	ID          string        `json:"id" validate:"required"`
	Name        string        `json:"name" validate:"required,min=2,max=255"`
	Grade       string        `json:"grade" validate:"required,max=20"`
	PhoneNumber *string       `json:"phone_number" validate:"omitempty,max=32"`
	StudentID   string        `json:"student_id" validate:"required,max=50"`
	Status      StudentStatus `json:"status" validate:"required,oneof=active inactive"`
}

type CreateLendingRequest struct {
	BookID    string    `json:"book_id" validate:"required"`
	StudentID string    `json:"student_id" validate:"required"`
	DueDate   time.Time `json:"due_date" validate:"required"`
}

type UpdateLendingRequest struct {
	ID         string     `json:"id" validate:"required"`
	BookID     string     `json:"book_id" validate:"required"`
	StudentID  string     `json:"student_id" validate:"required"`
	DueDate    time.Time  `json:"due_date" validate:"required"`
	ReturnedAt *time.Time `json:"returned_at"`
}

type RestoreRequest struct {
	Path string `json:"path" validate:"required"`
}

type ExportRequest struct {
	ExportType ExportFormat `json:"export_type" validate:"omitempty,oneof=csv json"`
	Entity     Entity       `json:"entity" validate:"omitempty,oneof=books students lendings all"`
}

type ImportRequest struct {
	Path   string `json:"path" validate:"required"`
	Entity Entity `json:"entity" validate:"omitempty,oneof=books students lendings"`
}

// ListQuery carries the optional table controls of the list commands:
// free-text search, faceted filters, a date range, sorting and paging.
type ListQuery struct {
	Search   string     `json:"search" validate:"max=255"`
	Status   StringList `json:"status"`
	Category StringList `json:"category"`
	Grade    StringList `json:"grade"`
	From     *time.Time `json:"from"`
	To       *time.Time `json:"to"`
	SortBy   string     `json:"sort_by" validate:"max=64"`
	SortDesc *bool      `json:"sort_desc"`
	Page     int        `json:"page" validate:"min=0"`
	Limit    int        `json:"limit" validate:"min=0,max=500"`
}

// Paged reports whether the caller asked for a single page instead of the whole collection.
func (q ListQuery) Paged() bool {
	return q.Limit > 0
}

func (q ListQuery) Offset() int {
	if q.Page < 1 || q.Limit < 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}

// StringList accepts either a JSON array of strings or a single string.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*l = nil
		return nil
	case len(data) > 0 && data[0] == '"':
		var one string
		if err := jsoniter.Unmarshal(data, &one); err != nil {
			return err
		}
		if one == "" {
			*l = nil
		} else {
			*l = StringList{one}
		}
		return nil
	}

	var many []string
	if err := jsoniter.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = many
	return nil
}
