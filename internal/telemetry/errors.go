package telemetry

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRecord is returned synchronously when a record is rejected before queueing.
	ErrInvalidRecord = errors.New("telemetry: invalid record")

	// ErrNotReady is reported when a send is requested on a client that is not ready,
	// either because the collector rejected its credential or it was torn down.
	ErrNotReady = errors.New("telemetry: client not ready")

	// ErrClosed is returned by calls made after Destroy or Close.
	ErrClosed = errors.New("telemetry: client closed")

	ErrStoreClosed = errors.New("telemetry: store closed")
)

// DeliveryError describes a bundle the collector did not accept.
type DeliveryError struct {
	Queue   QueueName
	Outcome string
	Status  int
	Body    string
	Records int
	Err     error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("telemetry: %s delivery %s: %v", e.Queue, e.Outcome, e.Err)
	}
	return fmt.Sprintf("telemetry: %s delivery %s (status %d): %s", e.Queue, e.Outcome, e.Status, e.Body)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
