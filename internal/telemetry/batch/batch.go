package batch

import (
	"github.com/Chichichkin/TelemetryAgent/internal/telemetry"
)

// MaxRecords caps the number of records in one bundle.
const MaxRecords = 10

// Selector picks the records of the next bundle. The result is always a prefix of records.
type Selector func(records []telemetry.Record, limit int) []telemetry.Record

// SelectEvents takes the leading run of records sharing the first record's group tag.
// A bundle never mixes sessions, and a newer session never overtakes unsent records of
// an older one.
func SelectEvents(records []telemetry.Record, limit int) []telemetry.Record {
	if len(records) == 0 || limit <= 0 {
		return nil
	}

	fence := records[0].GroupTag
	n := 0
	for n < len(records) && n < limit {
		if records[n].GroupTag != fence {
			break
		}
		n++
	}
	return records[:n]
}

// SelectLogs takes the first limit records. Logs are not session scoped, so no fence applies.
func SelectLogs(records []telemetry.Record, limit int) []telemetry.Record {
	if limit <= 0 {
		return nil
	}
	if len(records) > limit {
		return records[:limit]
	}
	return records
}

func SelectorFor(queue telemetry.QueueName) Selector {
	if queue == telemetry.LogQueue {
		return SelectLogs
	}
	return SelectEvents
}

// Metadata is the per-client part of every bundle, fixed at init.
type Metadata struct {
	Environment telemetry.Environment
	APIKey      string
	AppVersion  string
	DeviceID    string
	UserID      string
}

func Build(meta Metadata, queue telemetry.QueueName, records []telemetry.Record) telemetry.Bundle {
	bundle := telemetry.Bundle{
		Environment: meta.Environment,
		APIKey:      meta.APIKey,
		AppVersion:  meta.AppVersion,
		DeviceID:    meta.DeviceID,
		UserID:      meta.UserID,
	}

	batchToSend := make([]telemetry.Record, len(records))
	copy(batchToSend, records)

	if queue == telemetry.LogQueue {
		bundle.Logs = batchToSend
	} else {
		bundle.Events = batchToSend
	}
	return bundle
}
