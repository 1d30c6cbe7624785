package subtitle

import "fmt"

// ErrorKind classifies a parse failure.
type ErrorKind string

const (
	KindEncoding          ErrorKind = "Encoding"
	KindTiming            ErrorKind = "Timing"
	KindUnsupportedFormat ErrorKind = "UnsupportedFormat"
	KindMalformed         ErrorKind = "Malformed"
)

// Sentinels for errors.Is matching against a *ParseError of the same kind.
var (
	ErrEncoding          = &ParseError{Kind: KindEncoding}
	ErrTiming            = &ParseError{Kind: KindTiming}
	ErrUnsupportedFormat = &ParseError{Kind: KindUnsupportedFormat}
	ErrMalformed         = &ParseError{Kind: KindMalformed}
)

// ParseError is returned for any input that cannot be decoded into cues.
// Line is 1-based and zero when the failure is not tied to a line.
type ParseError struct {
	Kind    ErrorKind
	Line    int
	Message string
}

func newParseError(kind ErrorKind, line int, message string) *ParseError {
	return &ParseError{Kind: kind, Line: line, Message: message}
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error (%s) at line %d: %s", e.Kind, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error (%s): %s", e.Kind, e.Message)
}

func (e *ParseError) Is(target error) bool {
	t, ok := target.(*ParseError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}
