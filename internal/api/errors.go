package api

import (
	"errors"
	"fmt"
)

// AuthFailedMessage is the message the grading service sends for a rejected token
const AuthFailedMessage = "Authentication failed!"

// MissingSessionMessage is reported when an authenticated call has no token
const MissingSessionMessage = "No access token found"

// Kind classifies API failures so callers never match on message text
type Kind int

const (
	// KindMissingSession means no token was available; no request was made
	KindMissingSession Kind = iota + 1
	// KindTransport means the request could not complete
	KindTransport
	// KindRejected means the server answered with a non-2xx status
	KindRejected
	// KindAuthExpired means the server rejected the session token
	KindAuthExpired
	// KindInvalidResponse means a 2xx body did not have the expected shape
	KindInvalidResponse
)

func (k Kind) String() string {
	switch k {
	case KindMissingSession:
		return "missing_session"
	case KindTransport:
		return "transport"
	case KindRejected:
		return "rejected"
	case KindAuthExpired:
		return "auth_expired"
	case KindInvalidResponse:
		return "invalid_response"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is returned by every Client method
type Error struct {
	Kind    Kind
	Op      string // operation name, e.g. "analyze"
	Status  int    // HTTP status, 0 when no response was received
	Message string // user visible text
	Err     error  // underlying cause, if any
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of an API error, or 0 for other errors
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return 0
}

// IsAuthExpired reports whether err means the user must sign in again
func IsAuthExpired(err error) bool {
	return KindOf(err) == KindAuthExpired
}

// IsMissingSession reports whether err was raised locally for a missing token
func IsMissingSession(err error) bool {
	return KindOf(err) == KindMissingSession
}
