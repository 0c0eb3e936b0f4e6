package command

import (
	"errors"
	"fmt"

	"github.com/tiza/library-service/internal/service"
)

type Code string

const (
	CodeInvalidArgument Code = "invalid_argument"
	CodeNotFound        Code = "not_found"
	CodeConflict        Code = "conflict"
	CodeUnknownCommand  Code = "unknown_command"
	CodeInternal        Code = "internal"
)

// Error is what a failed invocation reports to the caller.
type Error struct {
	Code    Code              `json:"error"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func invalidArgument(message string, err error) *Error {
	return &Error{Code: CodeInvalidArgument, Message: message, Err: err}
}

var classes = []struct {
	code Code
	errs []error
}{
	{CodeNotFound, []error{
		service.ErrBookNotFound,
		service.ErrStudentNotFound,
		service.ErrLendingNotFound,
	}},
	{CodeInvalidArgument, []error{
		service.ErrDueDateNotFuture,
		service.ErrInvalidDueDate,
		service.ErrInvalidReturnDate,
		service.ErrInvalidDateRange,
		service.ErrUnsupportedFormat,
		service.ErrEntityRequired,
	}},
	{CodeConflict, []error{
		service.ErrStudentHasActiveLending,
		service.ErrBookUnavailable,
		service.ErrStudentInactive,
		service.ErrAlreadyReturned,
		service.ErrHasActiveLendings,
		service.ErrDuplicateStudentNumber,
		service.ErrDuplicateBook,
	}},
}

// Classify maps any error returned by a handler onto an *Error. Errors the
// domain does not know about become CodeInternal and keep their cause hidden
// from the caller.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var cmdErr *Error
	if errors.As(err, &cmdErr) {
		return cmdErr
	}

	for _, class := range classes {
		for _, target := range class.errs {
			if errors.Is(err, target) {
				return &Error{Code: class.code, Message: target.Error(), Err: err}
			}
		}
	}

	return &Error{Code: CodeInternal, Message: "internal error", Err: err}
}
