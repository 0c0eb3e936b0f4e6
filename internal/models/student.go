package models

import (
	"fmt"
	"time"
)

type Student struct {
	ID          string        `json:"id" db:"id"`
	Name        string        `json:"name" db:"name"`
	Grade       string        `json:"grade" db:"grade"`
	PhoneNumber *string       `json:"phone_number" db:"phone_number"`
	StudentID   string        `json:"student_id" db:"student_id"`
	Status      StudentStatus `json:"status" db:"status"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
}

type StudentStatus string

const (
	StudentStatusActive   StudentStatus = "active"
	StudentStatusInactive StudentStatus = "inactive"
)

func (s StudentStatus) String() string {
	return string(s)
}

func ParseStudentStatus(s string) (StudentStatus, error) {
	switch StudentStatus(s) {
	case StudentStatusActive, StudentStatusInactive:
		return StudentStatus(s), nil
	default:
		return "", fmt.Errorf("invalid student status: %s", s)
	}
}
