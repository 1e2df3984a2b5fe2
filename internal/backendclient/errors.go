package backendclient

import "fmt"

// Kind classifies a backend failure.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindUnauthorized Kind = "unauthorized"
	KindValidation   Kind = "validation"
	KindUnavailable  Kind = "unavailable"
	KindMalformed    Kind = "malformed"
)

// Error wraps a backend failure with its classification and, for
// validation failures, the backend-supplied per-field errors.
type Error struct {
	Kind        Kind
	Message     string
	StatusCode  int
	FieldErrors map[string]string
	Cause       error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return fmt.Sprintf("backend: %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("backend: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	be, ok := err.(*Error)
	return ok && be != nil && be.Kind == kind
}

func classifyStatus(status int) Kind {
	switch {
	case status == 404:
		return KindNotFound
	case status == 401 || status == 403:
		return KindUnauthorized
	case status >= 400 && status < 500:
		return KindValidation
	case status >= 500:
		return KindUnavailable
	default:
		return KindMalformed
	}
}
