package batch

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chichichkin/TelemetryAgent/internal/telemetry"
)

func tagged(tags ...string) []telemetry.Record {
	records := make([]telemetry.Record, len(tags))
	for i, tag := range tags {
		records[i] = telemetry.Record{Index: int64(i), Kind: telemetry.KindEvent, GroupTag: tag}
	}
	return records
}

func indices(records []telemetry.Record) []int64 {
	out := make([]int64, len(records))
	for i, r := range records {
		out[i] = r.Index
	}
	return out
}

func TestSelectEvents_SessionFence(t *testing.T) {
	selected := SelectEvents(tagged("A", "A", "B", "A"), MaxRecords)
	assert.Equal(t, []int64{0, 1}, indices(selected))
}

func TestSelectEvents(t *testing.T) {
	many := make([]string, 15)
	for i := range many {
		many[i] = "s"
	}

	tests := []struct {
		name string
		tags []string
		max  int
		want []int64
	}{
		{"empty", nil, MaxRecords, []int64{}},
		{"single", []string{"A"}, MaxRecords, []int64{0}},
		{"capped at max", many, MaxRecords, []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}},
		{"newer session waits", []string{"A", "B", "B"}, MaxRecords, []int64{0}},
		{"untagged run", []string{"", "", "A"}, MaxRecords, []int64{0, 1}},
		{"zero max", []string{"A"}, 0, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, indices(SelectEvents(tagged(tt.tags...), tt.max)))
		})
	}
}

func TestSelectLogs_NoFence(t *testing.T) {
	records := tagged("A", "B", "C")
	assert.Equal(t, []int64{0, 1, 2}, indices(SelectLogs(records, MaxRecords)))

	many := make([]telemetry.Record, 25)
	for i := range many {
		many[i] = telemetry.Record{Index: int64(i), Kind: telemetry.KindLog}
	}
	selected := SelectLogs(many, MaxRecords)
	require.Len(t, selected, MaxRecords)
	assert.Equal(t, int64(9), selected[9].Index)
	assert.Empty(t, SelectLogs(many, 0))
}

func TestSelectorFor(t *testing.T) {
	records := tagged("A", "B")
	assert.Len(t, SelectorFor(telemetry.EventQueue)(records, MaxRecords), 1)
	assert.Len(t, SelectorFor(telemetry.LogQueue)(records, MaxRecords), 2)
}

func TestBuild(t *testing.T) {
	meta := Metadata{
		Environment: telemetry.Environment{Platform: "go", OS: "linux"},
		APIKey:      "key",
		AppVersion:  "1.2.3",
		DeviceID:    "dev",
	}
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	records := []telemetry.Record{
		{Index: 1, Kind: telemetry.KindEvent, Timestamp: ts, GroupTag: "s1", Fields: telemetry.Fields{"name": "open"}},
	}

	bundle := Build(meta, telemetry.EventQueue, records)
	records[0].Index = 99

	assert.Equal(t, []int64{1}, bundle.Indices())
	assert.Empty(t, bundle.Logs)

	body, err := json.Marshal(bundle)
	require.NoError(t, err)
	assert.JSONEq(t, fmt.Sprintf(`{
		"platform": "go", "os": "linux", "arch": "", "runtime": "", "sdk_version": "",
		"api_key": "key", "app_version": "1.2.3", "device_id": "dev",
		"events": [{"index": 1, "type": "event", "timestamp": %q, "group_tag": "s1", "name": "open"}]
	}`, "2024-01-02T03:04:05.000Z"), string(body))

	logBundle := Build(Metadata{UserID: "u1"}, telemetry.LogQueue, []telemetry.Record{{Index: 3, Kind: telemetry.KindLog, Timestamp: ts}})
	assert.Empty(t, logBundle.Events)
	assert.Equal(t, []int64{3}, logBundle.Indices())
	assert.Equal(t, "u1", logBundle.UserID)
}
