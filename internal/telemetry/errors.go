package telemetry

import (
	"errors"
	"fmt"
)

// ErrNotFound matches any NotFoundError via errors.Is.
var ErrNotFound = errors.New("no data")

// NotFoundError is returned when a session, driver or lap has no stored data,
// e.g. when the driver did not complete a timed lap.
type NotFoundError struct {
	Session  SessionKey
	Driver   string
	Selector string
}

func (e *NotFoundError) Error() string {
	switch {
	case e.Driver == "" && e.Selector == "":
		return fmt.Sprintf("no data for session %s", e.Session)
	case e.Driver == "":
		return fmt.Sprintf("no %s lap in session %s", e.Selector, e.Session)
	case e.Selector == "":
		return fmt.Sprintf("no laps for driver %s in session %s", e.Driver, e.Session)
	default:
		return fmt.Sprintf("no %s lap for driver %s in session %s", e.Selector, e.Driver, e.Session)
	}
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// IngestionError is returned when fetching or storing a session's telemetry fails.
// Nothing is retained from a failed ingestion, so calling again retries from scratch.
type IngestionError struct {
	Session SessionKey
	Op      string // Step that failed, e.g. "fetch", "store"
	Err     error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingesting session %s: %s: %v", e.Session, e.Op, e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

// Retryable reports whether re-invoking ingestion may succeed. Ingestion never
// leaves partial state behind, so it always is.
func (e *IngestionError) Retryable() bool {
	return true
}
