package fcgx

import "github.com/google/uuid"

// newTraceID generates a correlation ID used only for log and metric
// attribution; it is never written to the wire.
func newTraceID() string {
	return uuid.NewString()
}
