package service

import "errors"

var (
	ErrBookNotFound    = errors.New("book not found")
	ErrStudentNotFound = errors.New("student not found")
	ErrLendingNotFound = errors.New("lending not found")

	ErrInvalidDueDate    = errors.New("due date must be after the lending date")
	ErrDueDateNotFuture  = errors.New("due date must be in the future")
	ErrInvalidReturnDate = errors.New("return date cannot be before the lending date")
	ErrInvalidDateRange  = errors.New("from must not be after to")

	ErrStudentHasActiveLending = errors.New("student already has a book on loan")
	ErrBookUnavailable         = errors.New("book is not available")
	ErrStudentInactive         = errors.New("student is inactive")
	ErrAlreadyReturned         = errors.New("lending already returned")
	ErrHasActiveLendings       = errors.New("record has active lendings")
	ErrDuplicateStudentNumber  = errors.New("student id already in use")
	ErrDuplicateBook           = errors.New("book already exists")

	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEntityRequired    = errors.New("entity is required for csv files")
)
