package client

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/Chichichkin/TelemetryAgent/internal/telemetry"
	"github.com/Chichichkin/TelemetryAgent/internal/telemetry/batch"
	"github.com/Chichichkin/TelemetryAgent/internal/telemetry/collector"
	"github.com/Chichichkin/TelemetryAgent/internal/telemetry/queue"
	"github.com/Chichichkin/TelemetryAgent/internal/telemetry/scheduler"
)

// lane is one queue with its scheduler and endpoint.
type lane struct {
	client *Client
	queue  *queue.Queue
	sched  *scheduler.Scheduler
	pick   batch.Selector
	url    func() string
}

func newLane(c *Client, q *queue.Queue, url func() string) *lane {
	l := &lane{
		client: c,
		queue:  q,
		pick:   batch.SelectorFor(q.Name()),
		url:    url,
	}
	l.sched = scheduler.New(c.opts.clock, l.canSend, l.dispatch)
	return l
}

// canSend runs under the scheduler lock.
func (l *lane) canSend() bool {
	return l.client.Ready() && l.queue.Len() > 0
}

// kick arms a send when there is something to send.
func (l *lane) kick(delay time.Duration) {
	if l.queue.Len() > 0 && l.client.Ready() {
		l.sched.Schedule(delay)
	}
}

// dispatch runs with the scheduler in Sending. It takes the in-flight slot before returning
// so a concurrent Flush cannot observe an idle client between dispatch and delivery.
func (l *lane) dispatch() {
	c := l.client
	limit := c.opts.maxBatch
	records := l.queue.Select(func(rs []telemetry.Record) []telemetry.Record {
		return l.pick(rs, limit)
	})
	if len(records) == 0 {
		l.sched.Done(0)
		return
	}

	bundle := batch.Build(c.meta, l.queue.Name(), records)
	body, err := json.Marshal(bundle)
	if err != nil {
		c.logger.Error("bundle_encode_failed", zap.String("queue", string(l.queue.Name())), zap.Error(err))
		l.queue.Acknowledge(bundle.Indices())
		c.report(&telemetry.DeliveryError{
			Queue:   l.queue.Name(),
			Outcome: "encode_failed",
			Records: len(records),
			Err:     err,
		})
		l.sched.Done(0)
		return
	}

	req := telemetry.Request{URL: l.url(), Body: body}
	c.acquire()
	go l.send(req, bundle.Indices())
}

func (l *lane) send(req telemetry.Request, indices []int64) {
	c := l.client
	defer c.release()

	started := c.opts.clock.Now()
	resp, err := c.transport.Do(c.ctx, req)
	outcome := collector.Classify(resp.Status, err)
	l.settle(outcome, resp, err, indices, c.opts.clock.Now().Sub(started))
}

func (l *lane) settle(outcome collector.Outcome, resp telemetry.Response, err error, indices []int64, elapsed time.Duration) {
	c := l.client
	name := l.queue.Name()

	if outcome.Drops() {
		l.queue.Acknowledge(indices)
	}
	backoff := 0
	if outcome.ResetsBackoff() {
		l.queue.ResetBackoff()
	} else {
		backoff = l.queue.IncBackoff()
	}

	if outcome == collector.AuthRejected && name == telemetry.EventQueue {
		c.ready.Store(false)
	}

	fields := []zap.Field{
		zap.String("queue", string(name)),
		zap.String("outcome", outcome.String()),
		zap.Int("status", resp.Status),
		zap.Int("records", len(indices)),
		zap.Duration("elapsed", elapsed),
	}
	switch {
	case outcome == collector.Success:
		c.logger.Debug("bundle_sent", fields...)
	case outcome.Drops():
		c.logger.Warn("bundle_rejected", fields...)
	default:
		c.logger.Debug("bundle_retry", append(fields, zap.Int("backoff", backoff), zap.Error(err))...)
	}

	if outcome.Reports() && !c.destroyed.Load() {
		c.report(&telemetry.DeliveryError{
			Queue:   name,
			Outcome: outcome.String(),
			Status:  resp.Status,
			Body:    string(resp.Body),
			Records: len(indices),
			Err:     err,
		})
	}

	c.opts.metrics.BundleSettled(name, outcome.String(), len(indices), elapsed)
	c.opts.metrics.QueueDepth(name, l.queue.Len())

	l.sched.Done(time.Duration(l.queue.Backoff()) * c.opts.unitDelay)
}
