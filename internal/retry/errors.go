package retry

import (
	"fmt"
	"strings"
	"time"
)

// Kind classifies a failed send.
type Kind int

const (
	// Timeout means an attempt was aborted by its deadline.
	Timeout Kind = iota
	// NetworkUnavailable means the transport could not reach the backend.
	NetworkUnavailable
	// ServerError means the backend answered with a non-2xx status.
	ServerError
	// MalformedPayload means the backend answered 2xx with an unusable body.
	MalformedPayload
)

func (k Kind) String() string {
	switch k {
	case Timeout:
		return "timeout"
	case NetworkUnavailable:
		return "network unavailable"
	case ServerError:
		return "server error"
	case MalformedPayload:
		return "malformed payload"
	default:
		return "unknown"
	}
}

// Error is the classified failure returned by Client.Send. Attempts and
// Elapsed describe the whole send, not just the final attempt, so callers
// can report how long the user actually waited.
type Error struct {
	Kind     Kind
	Status   int
	Attempts int
	Elapsed  time.Duration
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Kind == ServerError && e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Attempts > 0 {
		fmt.Fprintf(&b, " after %d attempt(s) in %s", e.Attempts, e.Elapsed.Round(time.Millisecond))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retriable reports whether another attempt could plausibly succeed.
// Only timeouts and transport failures qualify; a bad status or an
// unusable body will not improve on retry.
func (e *Error) Retriable() bool {
	return e.Kind == Timeout || e.Kind == NetworkUnavailable
}
