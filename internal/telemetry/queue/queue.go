package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Chichichkin/TelemetryAgent/internal/telemetry"
	"github.com/Chichichkin/TelemetryAgent/internal/telemetry/store"
)

// Queue is an ordered, durably mirrored list of records awaiting delivery.
// Indices are assigned at enqueue, strictly increase and are never reused.
type Queue struct {
	name      telemetry.QueueName
	store     telemetry.Store
	key       string
	cursorKey string
	tag       string
	now       func() time.Time
	logger    *zap.Logger
	onError   func(error)

	mu        sync.Mutex
	records   []telemetry.Record
	next      int64
	backoff   int
	discarded bool
}

type Config struct {
	Name      telemetry.QueueName
	Key       string
	CursorKey string
	// Tag is stamped as GroupTag on event-kind records. Empty disables stamping.
	Tag     string
	Now     func() time.Time
	Logger  *zap.Logger
	OnError func(error)
}

func New(s telemetry.Store, config Config) *Queue {
	q := &Queue{
		name:      config.Name,
		store:     s,
		key:       config.Key,
		cursorKey: config.CursorKey,
		tag:       config.Tag,
		now:       config.Now,
		logger:    config.Logger,
		onError:   config.OnError,
	}
	if q.now == nil {
		q.now = time.Now
	}
	if q.logger == nil {
		q.logger = zap.NewNop()
	}
	if q.onError == nil {
		q.onError = func(error) {}
	}
	return q
}

func Events(s telemetry.Store, config Config) *Queue {
	config.Name = telemetry.EventQueue
	config.Key = telemetry.KeyEventQueue
	config.CursorKey = telemetry.KeyEventCursor
	return New(s, config)
}

func Logs(s telemetry.Store, config Config) *Queue {
	config.Name = telemetry.LogQueue
	config.Key = telemetry.KeyLogQueue
	config.CursorKey = telemetry.KeyLogCursor
	config.Tag = ""
	return New(s, config)
}

func (q *Queue) Name() telemetry.QueueName {
	return q.name
}

// Restore replaces the in-memory state with what the store holds. Unreadable parts are
// skipped rather than failing the whole restore: a record that does not decode is dropped,
// and a cursor that does not decode is rebuilt from the surviving indices. The returned
// error lists what was skipped.
func (q *Queue) Restore() error {
	var errs []error

	raw, _, err := store.Load[[]json.RawMessage](q.store, q.key)
	if err != nil {
		errs = append(errs, err)
	}
	records := make([]telemetry.Record, 0, len(raw))
	for i, item := range raw {
		var r telemetry.Record
		if err := json.Unmarshal(item, &r); err != nil {
			errs = append(errs, fmt.Errorf("decode %s[%d]: %w", q.key, i, err))
			continue
		}
		records = append(records, r)
	}

	cursor, _, err := store.Load[int64](q.store, q.cursorKey)
	if err != nil {
		errs = append(errs, err)
	}

	next := cursor
	for _, r := range records {
		if r.Index+1 > next {
			next = r.Index + 1
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.records = records
	q.next = next
	q.logger.Debug("queue_restored",
		zap.String("queue", string(q.name)),
		zap.Int("records", len(records)),
		zap.Int("skipped", len(raw)-len(records)),
		zap.Int64("next_index", next),
	)
	return errors.Join(errs...)
}

// Enqueue appends r and persists the queue. It never fails; persistence problems are
// logged and handed to the error hook while the record stays queued in memory.
func (q *Queue) Enqueue(r telemetry.Record) telemetry.Record {
	q.mu.Lock()
	defer q.mu.Unlock()

	r.Index = q.next
	q.next++
	if r.Timestamp.IsZero() {
		r.Timestamp = q.now()
	}
	// the persisted form carries milliseconds only
	r.Timestamp = r.Timestamp.UTC().Truncate(time.Millisecond)
	if r.Kind.IsEvent() {
		if q.tag != "" {
			r.GroupTag = q.tag
		}
	} else {
		r.GroupTag = ""
	}

	q.records = append(q.records, r)
	q.persist()
	return r
}

// Acknowledge removes every record whose index is listed.
func (q *Queue) Acknowledge(indices []int64) {
	if len(indices) == 0 {
		return
	}
	drop := make(map[int64]struct{}, len(indices))
	for _, i := range indices {
		drop[i] = struct{}{}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.records[:0]
	for _, r := range q.records {
		if _, ok := drop[r.Index]; !ok {
			kept = append(kept, r)
		}
	}
	// zero the tail so dropped records can be collected
	for i := len(kept); i < len(q.records); i++ {
		q.records[i] = telemetry.Record{}
	}
	q.records = kept
	q.persist()
}

// Clear empties the queue and removes its persisted mirror.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.clearLocked()
}

// Discard clears the queue for good. Later changes, such as an acknowledgement from a
// request that was already in flight, stay in memory and never reach the store.
func (q *Queue) Discard() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.discarded = true
	q.clearLocked()
}

func (q *Queue) clearLocked() {
	q.records = nil
	q.backoff = 0
	for _, key := range []string{q.key, q.cursorKey} {
		if err := q.store.Delete(key); err != nil {
			q.logger.Warn("queue_clear_failed", zap.String("queue", string(q.name)), zap.String("key", key), zap.Error(err))
			q.onError(err)
		}
	}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.records)
}

// Records returns a copy of the queued records in send order.
func (q *Queue) Records() []telemetry.Record {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]telemetry.Record, len(q.records))
	copy(out, q.records)
	return out
}

// Select runs pick over the queued records under the queue lock.
func (q *Queue) Select(pick func([]telemetry.Record) []telemetry.Record) []telemetry.Record {
	q.mu.Lock()
	defer q.mu.Unlock()
	selected := pick(q.records)
	out := make([]telemetry.Record, len(selected))
	copy(out, selected)
	return out
}

func (q *Queue) NextIndex() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.next
}

func (q *Queue) Backoff() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.backoff
}

func (q *Queue) IncBackoff() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.backoff++
	return q.backoff
}

func (q *Queue) ResetBackoff() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.backoff = 0
}

func (q *Queue) persist() {
	if q.discarded {
		return
	}
	records := q.records
	if records == nil {
		records = []telemetry.Record{}
	}
	if err := store.Save(q.store, q.key, records); err != nil {
		q.logger.Error("queue_persist_failed", zap.String("queue", string(q.name)), zap.Error(err))
		q.onError(err)
		return
	}
	if err := store.Save(q.store, q.cursorKey, q.next); err != nil {
		q.logger.Error("queue_cursor_persist_failed", zap.String("queue", string(q.name)), zap.Error(err))
		q.onError(err)
	}
}
