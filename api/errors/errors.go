package errors

import (
	"strings"
)

// FieldError is one rejected request field. Err stays server side.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// MultiErrors collects request validation failures in the order they were found.
type MultiErrors struct {
	Errors []FieldError `json:"errors"`
}

func NewMultiErrors() *MultiErrors {
	return &MultiErrors{}
}

func (e *MultiErrors) Add(field, message string, err error) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message, Err: err})
}

func (e *MultiErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *MultiErrors) Error() string {
	var sb strings.Builder
	for i, fe := range e.Errors {
		if i > 0 {
			sb.WriteString(" | ")
		}
		sb.WriteString(fe.Field)
		sb.WriteString(": ")
		sb.WriteString(fe.Message)
	}
	return sb.String()
}
