package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MimeLyc/cinefluent/internal/jobs"
	"github.com/MimeLyc/cinefluent/internal/provider"
	"github.com/MimeLyc/cinefluent/internal/subtitle"
	"github.com/MimeLyc/cinefluent/pkg/log"
)

type ErrorKind int

const (
	ErrParse ErrorKind = iota
	ErrFetch
	ErrJobExhausted
	ErrValidation
	ErrNotFound
	ErrStorage
	ErrUnavailable
	ErrInternal
)

func (k ErrorKind) String() string {
	switch k {
	case ErrParse:
		return "Parse"
	case ErrFetch:
		return "Fetch"
	case ErrJobExhausted:
		return "JobExhausted"
	case ErrValidation:
		return "Validation"
	case ErrNotFound:
		return "NotFound"
	case ErrStorage:
		return "Storage"
	case ErrUnavailable:
		return "Unavailable"
	default:
		return "Internal"
	}
}

// Error is the structured error returned at the service boundaries.
type Error struct {
	Kind    ErrorKind
	Message string
	Context map[string]any
	Cause   error
}

func NewError(kind ErrorKind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Context: make(map[string]any),
	}
}

func WrapError(err error, kind ErrorKind, message string) *Error {
	e := NewError(kind, message)
	e.Cause = err
	return e
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Kind, e.Message))

	if len(e.Context) > 0 {
		var ctxParts []string
		for k, v := range e.Context {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithContext(key string, value any) *Error {
	e.Context[key] = value
	return e
}

// IsKind reports whether err carries a service *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind == kind
	}
	return false
}

// KindOf returns the kind of a service error, or ErrInternal.
func KindOf(err error) ErrorKind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return ErrInternal
}

// SafeExecute runs fn and converts a panic into an ErrInternal error.
func SafeExecute(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Recovered panic: %v", r)
			err = NewError(ErrInternal, fmt.Sprintf("runtime error: %v", r))
		}
	}()

	return fn()
}

// DescribeJobError renders a pipeline failure as a job error message
// prefixed with a tag naming its cause, e.g. "[parse:Timing] ...".
func DescribeJobError(err error) string {
	if err == nil {
		return ""
	}
	return tagFor(err) + " " + err.Error()
}

func tagFor(err error) string {
	var parseErr *subtitle.ParseError
	if errors.As(err, &parseErr) {
		return fmt.Sprintf("[parse:%s]", parseErr.Kind)
	}
	var fetchErr *provider.FetchError
	if errors.As(err, &fetchErr) {
		return fmt.Sprintf("[fetch:%s]", fetchErr.Kind)
	}
	return "[internal]"
}

// fromJob converts a terminal job failure into a boundary error.
func fromJob(job *jobs.Job) *Error {
	return NewError(ErrJobExhausted, job.ErrorMessage).
		WithContext("job_id", job.ID).
		WithContext("retry_count", job.RetryCount)
}
