package telemetry

import (
	"encoding/json"
	"fmt"
	"time"
)

type Kind string

const (
	KindEvent       Kind = "event"
	KindEconomy     Kind = "economy"
	KindMessageSend Kind = "message_send"
	KindInstall     Kind = "install"
	KindDAU         Kind = "dau"
	KindLog         Kind = "log"
)

// AllowedFields lists, per kind, the only keys of Record.Fields that are ever serialized.
var AllowedFields = map[Kind][]string{
	KindEvent:       {"category", "name", "value", "properties"},
	KindEconomy:     {"category", "name", "currency", "amount", "is_gain", "reason"},
	KindMessageSend: {"channel", "campaign_id", "message_id", "recipient_count"},
	KindInstall:     {"referrer", "install_time"},
	KindDAU:         {},
	KindLog:         {"level", "message", "tag", "context"},
}

func (k Kind) Valid() bool {
	_, ok := AllowedFields[k]
	return ok
}

// IsEvent reports whether records of this kind belong to the event queue.
func (k Kind) IsEvent() bool {
	return k.Valid() && k != KindLog
}

func (k Kind) Queue() QueueName {
	if k == KindLog {
		return LogQueue
	}
	return EventQueue
}

type Fields map[string]any

type Record struct {
	Index     int64
	Kind      Kind
	Timestamp time.Time
	GroupTag  string
	Fields    Fields
}

// TimestampLayout is ISO-8601 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

const (
	fieldIndex     = "index"
	fieldKind      = "type"
	fieldTimestamp = "timestamp"
	fieldGroupTag  = "group_tag"
)

func (r Record) MarshalJSON() ([]byte, error) {
	if !r.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidRecord, r.Kind)
	}

	out := make(map[string]any, len(r.Fields)+4)
	for _, name := range AllowedFields[r.Kind] {
		if v, ok := r.Fields[name]; ok {
			out[name] = v
		}
	}
	out[fieldIndex] = r.Index
	out[fieldKind] = r.Kind
	out[fieldTimestamp] = FormatTimestamp(r.Timestamp)
	if r.GroupTag != "" && r.Kind.IsEvent() {
		out[fieldGroupTag] = r.GroupTag
	}
	return json.Marshal(out)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var rec Record
	if err := json.Unmarshal(raw[fieldKind], &rec.Kind); err != nil {
		return fmt.Errorf("decode record kind: %w", err)
	}
	if !rec.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRecord, rec.Kind)
	}
	if v, ok := raw[fieldIndex]; ok {
		if err := json.Unmarshal(v, &rec.Index); err != nil {
			return fmt.Errorf("decode record index: %w", err)
		}
	}
	if v, ok := raw[fieldTimestamp]; ok {
		var ts string
		if err := json.Unmarshal(v, &ts); err != nil {
			return fmt.Errorf("decode record timestamp: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return fmt.Errorf("decode record timestamp: %w", err)
		}
		rec.Timestamp = parsed.UTC()
	}
	if v, ok := raw[fieldGroupTag]; ok && rec.Kind.IsEvent() {
		if err := json.Unmarshal(v, &rec.GroupTag); err != nil {
			return fmt.Errorf("decode record group tag: %w", err)
		}
	}

	for _, name := range AllowedFields[rec.Kind] {
		v, ok := raw[name]
		if !ok {
			continue
		}
		var value any
		if err := json.Unmarshal(v, &value); err != nil {
			return fmt.Errorf("decode record field %s: %w", name, err)
		}
		if rec.Fields == nil {
			rec.Fields = Fields{}
		}
		rec.Fields[name] = value
	}

	*r = rec
	return nil
}
