package models

import (
	"fmt"
	"time"
)

type Lending struct {
	ID         string        `json:"id" db:"id"`
	BookID     string        `json:"book_id" db:"book_id"`
	StudentID  string        `json:"student_id" db:"student_id"`
	LentAt     time.Time     `json:"lent_at" db:"lent_at"`
	DueDate    time.Time     `json:"due_date" db:"due_date"`
	ReturnedAt *time.Time    `json:"returned_at" db:"returned_at"`
	Status     LendingStatus `json:"status" db:"status"`
}

// IsOverdue reports whether the book is still out and its due date lies strictly before now.
func (l Lending) IsOverdue(now time.Time) bool {
	return l.Status == LendingStatusLent && l.DueDate.Before(now)
}

type LendingWithDetails struct {
	Lending
	BookTitle     string `json:"book_title" db:"book_title"`
	BookAuthor    string `json:"book_author" db:"book_author"`
	BookCategory  string `json:"book_category" db:"book_category"`
	StudentName   string `json:"student_name" db:"student_name"`
	StudentNumber string `json:"student_number" db:"student_number"`
	StudentGrade  string `json:"student_grade" db:"student_grade"`
}

type LendingStatus string

const (
	LendingStatusLent     LendingStatus = "lent"
	LendingStatusReturned LendingStatus = "returned"
)

func (s LendingStatus) String() string {
	return string(s)
}

func ParseLendingStatus(s string) (LendingStatus, error) {
	switch LendingStatus(s) {
	case LendingStatusLent, LendingStatusReturned:
		return LendingStatus(s), nil
	default:
		return "", fmt.Errorf("invalid lending status: %s", s)
	}
}
