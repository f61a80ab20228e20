// Package client ties the queues, schedulers and transport into one telemetry client.
//
// A Client owns two independent lanes, one for event-kind records and one for logs.
// Each lane has a durable queue and a scheduler that keeps at most one bundle in flight.
// Delivery problems never surface as returned errors; they go to the configured ErrorSink.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Chichichkin/TelemetryAgent/internal/telemetry"
	"github.com/Chichichkin/TelemetryAgent/internal/telemetry/batch"
	"github.com/Chichichkin/TelemetryAgent/internal/telemetry/collector"
	"github.com/Chichichkin/TelemetryAgent/internal/telemetry/queue"
)

var ErrMissingCredentials = errors.New("client: api key and org id are required")

type Config struct {
	APIKey     string
	OrgID      string
	AppVersion string
	// DeviceID overrides the persisted or generated device id.
	DeviceID string
	UserID   string
	// BaseURL overrides the collector address and is persisted for later sessions.
	BaseURL   string
	ErrorSink telemetry.ErrorSink
	// Environment defaults to telemetry.DefaultEnvironment().
	Environment telemetry.Environment
	// CaptureErrors is recorded for the host; installing a global error listener is its job.
	CaptureErrors bool
}

type Client struct {
	config    Config
	opts      options
	store     telemetry.Store
	transport telemetry.Transport
	logger    *zap.Logger

	deviceID string
	userID   string
	baseURL  string
	session  string
	meta     batch.Metadata

	ready     atomic.Bool
	destroyed atomic.Bool
	// ctx aborts outstanding requests on Destroy and Close.
	ctx    context.Context
	cancel context.CancelFunc

	events *lane
	logs   *lane

	mu        sync.Mutex
	inFlight  int
	flushDone chan struct{}
}

// New restores persisted state and starts delivering anything left from earlier sessions.
// A nil transport means HTTP via collector.NewSender.
func New(config Config, s telemetry.Store, transport telemetry.Transport, opts ...Option) (*Client, error) {
	if config.APIKey == "" || config.OrgID == "" {
		return nil, ErrMissingCredentials
	}
	if s == nil {
		return nil, errors.New("client: store is required")
	}
	if transport == nil {
		transport = collector.NewSender()
	}
	if config.Environment == (telemetry.Environment{}) {
		config.Environment = telemetry.DefaultEnvironment()
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{
		config:    config,
		opts:      o,
		store:     s,
		transport: transport,
		logger:    o.logger.With(zap.String("org", config.OrgID)),
		session:   o.newID(),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	if err := c.resolveIdentity(); err != nil {
		c.cancel()
		return nil, err
	}
	c.meta = batch.Metadata{
		Environment: config.Environment,
		APIKey:      config.APIKey,
		AppVersion:  config.AppVersion,
		DeviceID:    c.deviceID,
		UserID:      c.userID,
	}

	qc := queue.Config{
		Tag:     c.session,
		Now:     o.clock.Now,
		Logger:  c.logger,
		OnError: c.persistFailed,
	}
	c.events = newLane(c, queue.Events(s, qc), func() string {
		return collector.TrackURL(c.baseURL, config.OrgID, o.clock.Now())
	})
	c.logs = newLane(c, queue.Logs(s, qc), func() string {
		return collector.AppLogURL(c.baseURL, config.OrgID)
	})

	for _, l := range c.lanes() {
		if err := l.queue.Restore(); err != nil {
			// whatever did decode was kept; the rest is gone
			c.logger.Warn("queue_restore_incomplete", zap.String("queue", string(l.queue.Name())), zap.Error(err))
		}
		o.metrics.QueueDepth(l.queue.Name(), l.queue.Len())
	}

	c.ready.Store(true)
	c.logger.Info("client_started",
		zap.String("device_id", c.deviceID),
		zap.String("session", c.session),
		zap.String("base_url", c.baseURL),
		zap.Bool("capture_errors", config.CaptureErrors),
	)

	if o.lifecycle {
		c.trackLifecycle()
	}
	for _, l := range c.lanes() {
		l.kick(0)
	}
	return c, nil
}

// Track queues r on the lane matching its kind and, when the client is ready, arms a send.
// The returned record carries the assigned index and timestamp. Records of an unknown kind
// or with fields that cannot be encoded are rejected with ErrInvalidRecord.
func (c *Client) Track(r telemetry.Record) (telemetry.Record, error) {
	if !r.Kind.Valid() {
		return r, fmt.Errorf("%w: unknown kind %q", telemetry.ErrInvalidRecord, r.Kind)
	}
	if c.destroyed.Load() {
		return r, telemetry.ErrClosed
	}
	// a record the queue cannot persist would stall every later persist
	if _, err := json.Marshal(r); err != nil {
		return r, fmt.Errorf("%w: encode %s record: %v", telemetry.ErrInvalidRecord, r.Kind, err)
	}

	l := c.laneFor(r.Kind)
	r = l.queue.Enqueue(r)
	c.opts.metrics.RecordEnqueued(l.queue.Name(), r.Kind)
	c.opts.metrics.QueueDepth(l.queue.Name(), l.queue.Len())

	if c.Ready() {
		l.sched.Schedule(0)
	}
	return r, nil
}

// Ready is false once the collector rejected the credential or the client was torn down.
func (c *Client) Ready() bool {
	return c.ready.Load()
}

func (c *Client) DeviceID() string {
	return c.deviceID
}

func (c *Client) UserID() string {
	return c.userID
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// SessionToken is the group tag stamped on event records queued by this client.
func (c *Client) SessionToken() string {
	return c.session
}

func (c *Client) CaptureErrors() bool {
	return c.config.CaptureErrors
}

// Pending reports how many records wait on the named queue.
func (c *Client) Pending(name telemetry.QueueName) int {
	if name == telemetry.LogQueue {
		return c.logs.queue.Len()
	}
	return c.events.queue.Len()
}

// Destroy tears the client down: timers are cancelled, requests aborted, both queues
// cleared including their persisted mirror, and any Flush waiter released.
func (c *Client) Destroy() {
	c.shutdown(true)
}

// Close stops the client like Destroy but keeps queued records persisted for the next start.
func (c *Client) Close() error {
	c.shutdown(false)
	return nil
}

func (c *Client) shutdown(clear bool) {
	if !c.destroyed.CompareAndSwap(false, true) {
		return
	}
	c.ready.Store(false)
	c.cancel()

	for _, l := range c.lanes() {
		l.sched.Cancel()
		if clear {
			l.queue.Discard()
			c.opts.metrics.QueueDepth(l.queue.Name(), 0)
		}
	}

	c.mu.Lock()
	if c.flushDone != nil {
		close(c.flushDone)
		c.flushDone = nil
	}
	c.mu.Unlock()

	c.logger.Info("client_stopped", zap.Bool("cleared", clear))
}

func (c *Client) lanes() []*lane {
	return []*lane{c.events, c.logs}
}

func (c *Client) laneFor(k telemetry.Kind) *lane {
	if k.Queue() == telemetry.LogQueue {
		return c.logs
	}
	return c.events
}

func (c *Client) report(args ...any) {
	if c.config.ErrorSink != nil {
		c.config.ErrorSink(args...)
	}
}

func (c *Client) persistFailed(err error) {
	c.report(fmt.Errorf("telemetry: persist queue: %w", err))
}
