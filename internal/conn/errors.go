package conn

import "fmt"

// Kind classifies a failed probe.
type Kind int

const (
	// Unreachable means the transport never got an answer.
	Unreachable Kind = iota
	// Timeout means the probe deadline fired first.
	Timeout
	// BadResponse means something answered, but not like a live backend.
	BadResponse
)

func (k Kind) String() string {
	switch k {
	case Unreachable:
		return "unreachable"
	case Timeout:
		return "timeout"
	case BadResponse:
		return "bad response"
	default:
		return "unknown"
	}
}

// Error is a typed probe failure. Endpoint is empty when the failure spans
// the whole candidate list rather than a single URL.
type Error struct {
	Kind     Kind
	Endpoint string
	Err      error
}

func (e *Error) Error() string {
	if e.Endpoint == "" {
		return fmt.Sprintf("backend %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("backend %s at %s: %v", e.Kind, e.Endpoint, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// statusError marks an endpoint that answered with an unexpected status.
type statusError struct {
	Code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}
