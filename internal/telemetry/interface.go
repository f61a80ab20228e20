package telemetry

import (
	"context"
	"time"
)

// Store is the durable key/value mirror of client state. Values are JSON documents.
type Store interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// Request is one outbound bundle delivery.
type Request struct {
	URL  string
	Body []byte
	// Multipart holds the content type of a pre-formed multipart body, boundary included.
	// Empty means Body is JSON.
	Multipart string
}

type Response struct {
	Status int
	Body   []byte
}

// Transport issues a single request. A non-nil error means no HTTP status was obtained
// (network failure, abort, timeout).
type Transport interface {
	Do(ctx context.Context, req Request) (Response, error)
}

// ErrorSink receives delivery problems. It must not block.
type ErrorSink func(args ...any)

type Metrics interface {
	RecordEnqueued(queue QueueName, kind Kind)
	BundleSettled(queue QueueName, outcome string, records int, d time.Duration)
	QueueDepth(queue QueueName, depth int)
}

type QueueName string

const (
	EventQueue QueueName = "events"
	LogQueue   QueueName = "logs"
)

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) RecordEnqueued(QueueName, Kind)                      {}
func (NoopMetrics) BundleSettled(QueueName, string, int, time.Duration) {}
func (NoopMetrics) QueueDepth(QueueName, int)                           {}

// Store keys.
const (
	KeyDeviceID    = "telemetry.device_id"
	KeyUserID      = "telemetry.user_id"
	KeyBaseURL     = "telemetry.base_url"
	KeyEventQueue  = "telemetry.queue.events"
	KeyEventCursor = "telemetry.queue.events.next_index"
	KeyLogQueue    = "telemetry.queue.logs"
	KeyLogCursor   = "telemetry.queue.logs.next_index"
	KeyLastDAU     = "telemetry.last_dau"
	KeyInstallSent = "telemetry.install_sent"
)
