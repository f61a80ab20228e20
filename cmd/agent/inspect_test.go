package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Chichichkin/TelemetryAgent/internal/telemetry"
	"github.com/Chichichkin/TelemetryAgent/internal/telemetry/queue"
	"github.com/Chichichkin/TelemetryAgent/internal/telemetry/store"
)

func TestInspectStore(t *testing.T) {
	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "telemetry.db"))
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, store.Save(st, telemetry.KeyDeviceID, "device-1"))
	events := queue.Events(st, queue.Config{Tag: "session"})
	events.Enqueue(telemetry.Record{Kind: telemetry.KindEvent})
	events.Enqueue(telemetry.Record{Kind: telemetry.KindEvent})
	events.Acknowledge([]int64{0})

	var out bytes.Buffer
	require.NoError(t, inspectStore(&out, st))

	assert.Equal(t, "device: device-1\n"+
		"events: pending=1 next_index=2\n"+
		"logs:   pending=0 next_index=0\n", out.String())
}

func TestErrorSink(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	sink := errorSink(zap.New(core))

	sink(errors.New("boom"), "detail")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "delivery_problem", entries[0].Message)
	assert.Equal(t, "boom", entries[0].ContextMap()["error"])
	assert.Equal(t, "detail", entries[1].ContextMap()["detail"])
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger("debug")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))

	_, err = newLogger("loud")
	assert.Error(t, err)
}
