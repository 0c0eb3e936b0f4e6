package models

import "time"

type DataChangedEvent struct {
	Command     string   `json:"command"`
	Invalidates []string `json:"invalidates"`
	Timestamp   int64    `json:"timestamp"`
}

type LendingOverdueEvent struct {
	LendingID   string    `json:"lending_id"`
	BookID      string    `json:"book_id"`
	StudentID   string    `json:"student_id"`
	BookTitle   string    `json:"book_title"`
	StudentName string    `json:"student_name"`
	DueDate     time.Time `json:"due_date"`
	DaysOverdue int64     `json:"days_overdue"`
	Timestamp   int64     `json:"timestamp"`
}
