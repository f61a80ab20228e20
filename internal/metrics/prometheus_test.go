package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chichichkin/TelemetryAgent/internal/daemon"
	"github.com/Chichichkin/TelemetryAgent/internal/telemetry"
)

func TestPrometheus_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg)
	require.NoError(t, err)

	p.RecordEnqueued(telemetry.EventQueue, telemetry.KindEvent)
	p.RecordEnqueued(telemetry.EventQueue, telemetry.KindEvent)
	p.RecordEnqueued(telemetry.LogQueue, telemetry.KindLog)
	p.BundleSettled(telemetry.EventQueue, "success", 2, 30*time.Millisecond)
	p.BundleSettled(telemetry.EventQueue, "transient", 1, time.Second)
	p.QueueDepth(telemetry.EventQueue, 1)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.enqueued.WithLabelValues("events", "event")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.enqueued.WithLabelValues("logs", "log")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.bundles.WithLabelValues("events", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.records.WithLabelValues("events", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.depth.WithLabelValues("events")))
	assert.Equal(t, 1, testutil.CollectAndCount(p.latency))

	expected := `
# HELP telemetry_agent_bundles_total Delivery attempts by outcome.
# TYPE telemetry_agent_bundles_total counter
telemetry_agent_bundles_total{outcome="success",queue="events"} 1
telemetry_agent_bundles_total{outcome="transient",queue="events"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "telemetry_agent_bundles_total"))
}

func TestPrometheus_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheus(reg)
	require.NoError(t, err)

	_, err = NewPrometheus(reg)
	assert.Error(t, err)
}

func TestRegisterDaemon(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := daemon.NewMetrics(4)
	require.NoError(t, RegisterDaemon(reg, m))

	m.IncFilesDiscovered()
	m.IncLinesForwarded()
	m.IncLinesForwarded()
	m.IncQueuedFiles()
	m.IncScaleUps()

	expected := `
# HELP telemetry_agent_daemon_lines_forwarded_total Lines handed to the client.
# TYPE telemetry_agent_daemon_lines_forwarded_total counter
telemetry_agent_daemon_lines_forwarded_total 2
# HELP telemetry_agent_daemon_file_queue_usage Fill ratio of the file queue.
# TYPE telemetry_agent_daemon_file_queue_usage gauge
telemetry_agent_daemon_file_queue_usage 0.25
# HELP telemetry_agent_daemon_scale_ups_total Workers added by the autoscaler.
# TYPE telemetry_agent_daemon_scale_ups_total counter
telemetry_agent_daemon_scale_ups_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"telemetry_agent_daemon_lines_forwarded_total",
		"telemetry_agent_daemon_file_queue_usage",
		"telemetry_agent_daemon_scale_ups_total",
	))
}
