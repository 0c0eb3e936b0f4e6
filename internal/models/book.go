package models

import (
	"fmt"
	"time"
)

type Book struct {
	ID        string     `json:"id" db:"id"`
	Title     string     `json:"title" db:"title"`
	Author    string     `json:"author" db:"author"`
	Quantity  int        `json:"quantity" db:"quantity"`
	ISBN      string     `json:"isbn" db:"isbn"`
	Category  string     `json:"category" db:"category"`
	Status    BookStatus `json:"status" db:"status"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

type BookStatus string

const (
	BookStatusAvailable   BookStatus = "available"
	BookStatusUnavailable BookStatus = "unavailable"
)

func (s BookStatus) String() string {
	return string(s)
}

func ParseBookStatus(s string) (BookStatus, error) {
	switch BookStatus(s) {
	case BookStatusAvailable, BookStatusUnavailable:
		return BookStatus(s), nil
	default:
		return "", fmt.Errorf("invalid book status: %s", s)
	}
}

// StatusForQuantity returns the status a book must carry for the given shelf quantity.
// An explicitly requested status is honored unless no copies are left.
func StatusForQuantity(quantity int, requested BookStatus) BookStatus {
	if quantity <= 0 {
		return BookStatusUnavailable
	}
	if requested == "" {
		return BookStatusAvailable
	}
	return requested
}
