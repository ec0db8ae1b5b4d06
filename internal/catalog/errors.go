package catalog

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrValidation  = errors.New("validation failed")
	ErrConflict    = errors.New("isbn conflict")
	ErrNotFound    = errors.New("book not found")
	ErrRateLimited = errors.New("rate limit exceeded")
)

// FieldError is one violated constraint on one input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every field failure of a create, update or list request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// merge adds the failures carried by err for fields e does not already
// report, keeping the payload field order.
func (e *ValidationError) merge(err error) *ValidationError {
	var other *ValidationError
	if errors.As(err, &other) {
		for _, f := range other.Fields {
			if !slices.ContainsFunc(e.Fields, func(x FieldError) bool { return x.Field == f.Field }) {
				e.Fields = append(e.Fields, f)
			}
		}
	}
	slices.SortStableFunc(e.Fields, func(a, b FieldError) int {
		return slices.Index(fieldOrder, a.Field) - slices.Index(fieldOrder, b.Field)
	})
	return e
}

// orNil returns e only when it holds at least one failure.
func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// ConflictError reports an ISBN already held by another book.
type ConflictError struct {
	ISBN string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("book with ISBN %s already exists", e.ISBN)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// NotFoundError reports a book id that is not in the catalog.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("book with ID %d not found", e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
