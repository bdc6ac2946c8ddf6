package fcgx

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel errors. Wrap and compare with errors.Is/errors.As; pkg/errors'
// Wrap preserves the Unwrap chain so both work against the underlying
// cause as well as these sentinels.
var (
	// ErrClientClosed is returned by Execute when called on a short-lived
	// client that already completed its one request, or after Close.
	ErrClientClosed = errors.New("fcgx: client closed")

	// ErrConnectionPoisoned is returned by Execute on a keep-alive client
	// whose connection was left in an indeterminate state by a previous
	// I/O error, protocol violation, non-complete END_REQUEST status, or
	// undrained cancellation.
	ErrConnectionPoisoned = errors.New("fcgx: connection poisoned by a previous request")

	// ErrRequestIDMismatch is reserved for future use. The receive loop
	// currently discards records whose request_id doesn't match the
	// in-flight request defensively instead of returning this error.
	ErrRequestIDMismatch = errors.New("fcgx: response record_id does not match request")
)

// IOError wraps an underlying transport failure observed while framing or
// parsing a record. It is fatal to the current request and poisons a
// keep-alive connection.
type IOError struct {
	Op    string
	Cause error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("fcgx: io error during %s: %v", e.Op, e.Cause)
}

func (e *IOError) Unwrap() error { return e.Cause }

func newIOError(op string, cause error) *IOError {
	return &IOError{Op: op, Cause: cause}
}

// UnexpectedServerRecordError is returned when the server sends a record
// type that is not valid in the client's current receive state (e.g. a
// client-to-server-only type, or an unrecognised management record).
type UnexpectedServerRecordError struct {
	Type RecordType
}

func (e *UnexpectedServerRecordError) Error() string {
	return fmt.Sprintf("fcgx: unexpected record type %s from server", e.Type)
}

// EndRequestError is returned when END_REQUEST reports a protocol status
// other than RequestComplete.
type EndRequestError struct {
	ProtocolStatus ProtocolStatus
	AppStatus      uint32
}

func (e *EndRequestError) Error() string {
	return fmt.Sprintf("fcgx: request ended with protocol status %s (app_status=%d)",
		e.ProtocolStatus, e.AppStatus)
}
