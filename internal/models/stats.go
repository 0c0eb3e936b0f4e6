package models

import "time"

type DashboardStats struct {
	TotalStudents     int64           `json:"total_students"`
	TotalBooks        int64           `json:"total_books"`
	AvailableBooks    int64           `json:"available_books"`
	BooksOnLoan       int64           `json:"books_on_loan"`
	OverdueBooks      int64           `json:"overdue_books"`
	TotalCopies       int64           `json:"total_copies"`
	UtilizationRate   int64           `json:"utilization_rate"`
	PopularCategories []CategoryStats `json:"popular_categories"`
}

type CategoryStats struct {
	Name       string `json:"name"`
	Count      int64  `json:"count"`
	Percentage int64  `json:"percentage"`
}

type PopularBook struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Category    string `json:"category"`
	Status      string `json:"status"`
	TimesLoaned int64  `json:"times_loaned"`
}

type OverdueBook struct {
	ID          string    `json:"id"`
	BookTitle   string    `json:"book_title"`
	Author      string    `json:"author"`
	StudentName string    `json:"student_name"`
	Grade       string    `json:"grade"`
	StudentID   string    `json:"student_id"`
	DueDate     time.Time `json:"due_date"`
	DaysOverdue int64     `json:"days_overdue"`
}

type ActivityType string

const (
	ActivityBorrowed ActivityType = "borrowed"
	ActivityReturned ActivityType = "returned"
)

type RecentActivity struct {
	ID           string       `json:"id"`
	StudentName  string       `json:"student_name"`
	StudentID    string       `json:"student_id"`
	BookTitle    string       `json:"book_title"`
	Author       string       `json:"author"`
	Category     string       `json:"category"`
	ActivityType ActivityType `json:"activity_type"`
	DueDate      *time.Time   `json:"due_date,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

type GradeCount struct {
	Grade string `json:"grade"`
	Count int64  `json:"count"`
}
