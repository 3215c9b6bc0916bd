package api

import (
	"errors"
	"fmt"
)

// Kind classifies the outcome of one request.
type Kind int

const (
	KindUnknown Kind = iota
	// KindUnauthorized means the server rejected the credentials and the
	// retry budget is exhausted.
	KindUnauthorized
	// KindForbidden means authenticated but denied.
	KindForbidden
	KindNotFound
	KindClientError
	KindServerError
	// KindNetworkFailure covers connectivity, timeouts and cancellation;
	// it is never treated as an auth failure.
	KindNetworkFailure
	KindDecodeFailure
	// KindRefreshFailure means the token refresh itself failed, so the
	// request never reached the network.
	KindRefreshFailure
	// KindAuthRequired is the public surface's 401: sign-in would help,
	// but the caller decides whether to prompt.
	KindAuthRequired
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindClientError:
		return "client_error"
	case KindServerError:
		return "server_error"
	case KindNetworkFailure:
		return "network_failure"
	case KindDecodeFailure:
		return "decode_failure"
	case KindRefreshFailure:
		return "refresh_failure"
	case KindAuthRequired:
		return "auth_required"
	default:
		return "unknown"
	}
}

// Error is the classified failure of one request.
type Error struct {
	Kind      Kind
	Status    int // HTTP status when a response was received, else 0
	Message   string
	RequestID string
	Err       error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status carried by the error, or 0.
func (e *Error) StatusCode() int {
	return e.Status
}

// KindOf returns the classification of err, or KindUnknown for errors
// that did not come out of this package.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// IsKind reports whether err classifies as the given kind.
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}
