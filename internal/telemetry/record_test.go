package telemetry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_MarshalDropsUnknownFields(t *testing.T) {
	rec := Record{
		Index:     7,
		Kind:      KindEvent,
		Timestamp: time.Date(2024, 3, 1, 12, 30, 0, 123000000, time.UTC),
		GroupTag:  "s1",
		Fields: Fields{
			"category": "ui",
			"name":     "click",
			"password": "hunter2",
		},
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))

	assert.Equal(t, "ui", out["category"])
	assert.Equal(t, "click", out["name"])
	assert.Equal(t, "event", out["type"])
	assert.Equal(t, "s1", out["group_tag"])
	assert.Equal(t, "2024-03-01T12:30:00.123Z", out["timestamp"])
	assert.EqualValues(t, 7, out["index"])
	_, leaked := out["password"]
	assert.False(t, leaked)
}

func TestRecord_LogNeverCarriesGroupTag(t *testing.T) {
	rec := Record{
		Index:     1,
		Kind:      KindLog,
		Timestamp: time.Now(),
		GroupTag:  "s1",
		Fields:    Fields{"level": "info", "message": "boot"},
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "group_tag")
}

func TestRecord_RoundTrip(t *testing.T) {
	rec := Record{
		Index:     42,
		Kind:      KindEconomy,
		Timestamp: time.Date(2024, 3, 1, 8, 0, 0, 5000000, time.UTC),
		GroupTag:  "abc",
		Fields: Fields{
			"currency": "gold",
			"amount":   12.5,
			"is_gain":  true,
		},
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var decoded Record
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, rec, decoded)
}

func TestRecord_UnmarshalFiltersFields(t *testing.T) {
	var rec Record
	err := json.Unmarshal([]byte(`{"index":3,"type":"log","timestamp":"2024-01-01T00:00:00.000Z","group_tag":"x","message":"m","extra":1}`), &rec)
	require.NoError(t, err)

	assert.Equal(t, int64(3), rec.Index)
	assert.Equal(t, KindLog, rec.Kind)
	assert.Empty(t, rec.GroupTag)
	assert.Equal(t, Fields{"message": "m"}, rec.Fields)
}

func TestRecord_InvalidKind(t *testing.T) {
	_, err := json.Marshal(Record{Kind: "bogus"})
	assert.ErrorIs(t, err, ErrInvalidRecord)

	var rec Record
	err = json.Unmarshal([]byte(`{"type":"bogus"}`), &rec)
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestKind_Queue(t *testing.T) {
	for _, k := range []Kind{KindEvent, KindEconomy, KindMessageSend, KindInstall, KindDAU} {
		assert.True(t, k.IsEvent(), k)
		assert.Equal(t, EventQueue, k.Queue())
	}
	assert.False(t, KindLog.IsEvent())
	assert.Equal(t, LogQueue, KindLog.Queue())
	assert.False(t, Kind("nope").IsEvent())
}

func TestBundle_Indices(t *testing.T) {
	b := Bundle{Logs: []Record{{Index: 4}, {Index: 5}}}
	assert.Equal(t, []int64{4, 5}, b.Indices())

	b = Bundle{Events: []Record{{Index: 1}}}
	assert.Equal(t, []int64{1}, b.Indices())
}
