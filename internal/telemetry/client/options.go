package client

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Chichichkin/TelemetryAgent/internal/telemetry"
	"github.com/Chichichkin/TelemetryAgent/internal/telemetry/batch"
	"github.com/Chichichkin/TelemetryAgent/internal/telemetry/clock"
)

// DefaultUnitDelay is the backoff step: after k consecutive retryable failures a queue
// waits k*DefaultUnitDelay before its next attempt.
const DefaultUnitDelay = 2 * time.Second

type options struct {
	clock     clock.Clock
	logger    *zap.Logger
	metrics   telemetry.Metrics
	unitDelay time.Duration
	maxBatch  int
	newID     func() string
	lifecycle bool
}

func defaultOptions() options {
	return options{
		clock:     clock.Real(),
		logger:    zap.NewNop(),
		metrics:   telemetry.NoopMetrics{},
		unitDelay: DefaultUnitDelay,
		maxBatch:  batch.MaxRecords,
		newID:     uuid.NewString,
		lifecycle: true,
	}
}

type Option func(*options)

func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithMetrics(m telemetry.Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

func WithUnitDelay(d time.Duration) Option {
	if d < 0 {
		panic("client: negative unit delay")
	}
	return func(o *options) { o.unitDelay = d }
}

// WithMaxBatch caps the records per bundle.
func WithMaxBatch(n int) Option {
	if n <= 0 {
		panic("client: max batch must be positive")
	}
	return func(o *options) { o.maxBatch = n }
}

// WithIDGenerator replaces the generator used for the session token and a fresh device id.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// WithLifecycleEvents toggles the automatic install and daily-active records queued at init.
func WithLifecycleEvents(enabled bool) Option {
	return func(o *options) { o.lifecycle = enabled }
}
