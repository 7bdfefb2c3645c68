package intake

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an intake failure.
type Kind string

const (
	KindInvalidType Kind = "INVALID_TYPE"
	KindTooLarge    Kind = "TOO_LARGE"
	KindRead        Kind = "READ_ERROR"
)

var (
	ErrInvalidType = errors.New("invalid file type")
	ErrTooLarge    = errors.New("file is too large")
	ErrRead        = errors.New("error reading file")
)

// ValidationError is returned by Validate when a file is rejected.
type ValidationError struct {
	Kind     Kind
	FileName string
	Message  string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	if e.Kind == KindTooLarge {
		return ErrTooLarge
	}
	return ErrInvalidType
}

func invalidTypeError(name string, accepted []string) *ValidationError {
	dotted := make([]string, len(accepted))
	for i, ext := range accepted {
		dotted[i] = "." + ext
	}
	return &ValidationError{
		Kind:     KindInvalidType,
		FileName: name,
		Message:  fmt.Sprintf("Invalid file type. Accepted types: %s", strings.Join(dotted, ", ")),
	}
}

func tooLargeError(name string, maxSize int64) *ValidationError {
	return &ValidationError{
		Kind:     KindTooLarge,
		FileName: name,
		Message:  fmt.Sprintf("File is too large. Maximum size: %s", FormatFileSize(maxSize)),
	}
}

// ReadError is delivered by ReadAsText when the content could not be read.
// The message shown to users is generic; Err keeps the cause for logs.
type ReadError struct {
	FileName string
	Err      error
}

func (e *ReadError) Error() string {
	return "Error reading file"
}

func (e *ReadError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRead}
	}
	return []error{ErrRead, e.Err}
}

// KindOf reports the intake kind of err, or "" if err is not an intake failure.
func KindOf(err error) Kind {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Kind
	}
	if errors.Is(err, ErrRead) {
		return KindRead
	}
	return ""
}
