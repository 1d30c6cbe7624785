package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// FetchKind classifies failures talking to an external provider.
type FetchKind string

const (
	KindTimeout     FetchKind = "Timeout"
	KindNotFound    FetchKind = "NotFound"
	KindRateLimited FetchKind = "RateLimited"
	KindTransport   FetchKind = "Transport"
)

// FetchError is returned by every provider call.
type FetchError struct {
	Kind       FetchKind
	Provider   string
	Op         string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %s", e.Provider, e.Op, e.Kind)
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is matches another *FetchError by kind, so errors.Is(err, ErrTimeout) works.
func (e *FetchError) Is(target error) bool {
	t, ok := target.(*FetchError)
	if !ok {
		return false
	}
	return t.Provider == "" && t.Op == "" && t.Kind == e.Kind
}

var (
	ErrTimeout     = &FetchError{Kind: KindTimeout}
	ErrNotFound    = &FetchError{Kind: KindNotFound}
	ErrRateLimited = &FetchError{Kind: KindRateLimited}
	ErrTransport   = &FetchError{Kind: KindTransport}
)

// KindOf returns the fetch kind of err, or "" when err is not a fetch error.
func KindOf(err error) FetchKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// Classify wraps err into a FetchError. Existing fetch errors pass through.
func Classify(providerName, op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &FetchError{Kind: classifyKind(err), Provider: providerName, Op: op, Err: err}
}

func classifyKind(err error) FetchKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	message := strings.ToLower(err.Error())
	for _, token := range []string{"timeout", "deadline exceeded", "awaiting headers"} {
		if strings.Contains(message, token) {
			return KindTimeout
		}
	}
	if strings.Contains(message, "rate limit") {
		return KindRateLimited
	}
	return KindTransport
}

func statusError(providerName, op string, resp *http.Response, body string) *FetchError {
	kind := KindTransport
	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusGone:
		kind = KindNotFound
	case http.StatusTooManyRequests:
		kind = KindRateLimited
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		kind = KindTimeout
	}
	var err error
	if body = strings.TrimSpace(body); body != "" {
		err = errors.New(body)
	}
	return &FetchError{Kind: kind, Provider: providerName, Op: op, StatusCode: resp.StatusCode, Err: err}
}
