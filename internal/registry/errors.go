package registry

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind partitions upstream failures. NotFound is semantically "absent" and
// is swallowed at client boundaries; every other kind propagates typed so
// the service can fall through to the next source.
type Kind int

const (
	KindNetwork Kind = iota
	KindNotFound
	KindParse
	KindTimeout
	KindRateLimited
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindParse:
		return "parse error"
	case KindTimeout:
		return "timeout"
	case KindRateLimited:
		return "rate limited"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "network error"
	}
}

// ErrNotFound is the sentinel wrapped by every KindNotFound error.
var ErrNotFound = errors.New("not found")

// Error is a typed upstream failure. The cause is retained for diagnostics
// only and is never re-surfaced as-is.
type Error struct {
	Kind  Kind
	URL   string
	cause error
}

func (e *Error) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.URL)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.cause)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	if e.Kind == KindNotFound {
		return ErrNotFound
	}
	return e.cause
}

// IsNotFound reports whether err represents an absent package or version.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var regErr *Error
	return errors.As(err, &regErr) && regErr.Kind == KindNotFound
}

// errorFromStatus maps an HTTP status code to a typed error.
func errorFromStatus(status int, url string) *Error {
	switch {
	case status == http.StatusNotFound:
		return &Error{Kind: KindNotFound, URL: url}
	case status == http.StatusTooManyRequests:
		return &Error{Kind: KindRateLimited, URL: url}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &Error{Kind: KindUnauthorized, URL: url}
	default:
		return &Error{Kind: KindNetwork, URL: url, cause: fmt.Errorf("unexpected status %d", status)}
	}
}
