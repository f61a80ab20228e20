// Package metrics exposes client and daemon activity as Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Chichichkin/TelemetryAgent/internal/daemon"
	"github.com/Chichichkin/TelemetryAgent/internal/telemetry"
)

const namespace = "telemetry_agent"

// Prometheus implements telemetry.Metrics.
type Prometheus struct {
	enqueued *prometheus.CounterVec
	bundles  *prometheus.CounterVec
	records  *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	depth    *prometheus.GaugeVec
}

var _ telemetry.Metrics = (*Prometheus)(nil)

func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		enqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_enqueued_total",
			Help:      "Records accepted into a delivery queue.",
		}, []string{"queue", "kind"}),
		bundles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bundles_total",
			Help:      "Delivery attempts by outcome.",
		}, []string{"queue", "outcome"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bundle_records_total",
			Help:      "Records carried by delivery attempts, by outcome.",
		}, []string{"queue", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bundle_duration_seconds",
			Help:      "Time from dispatch to collector answer.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"queue"}),
		depth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Records waiting in a delivery queue.",
		}, []string{"queue"}),
	}

	for _, c := range []prometheus.Collector{p.enqueued, p.bundles, p.records, p.latency, p.depth} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) RecordEnqueued(queue telemetry.QueueName, kind telemetry.Kind) {
	p.enqueued.WithLabelValues(string(queue), string(kind)).Inc()
}

func (p *Prometheus) BundleSettled(queue telemetry.QueueName, outcome string, records int, d time.Duration) {
	p.bundles.WithLabelValues(string(queue), outcome).Inc()
	p.records.WithLabelValues(string(queue), outcome).Add(float64(records))
	p.latency.WithLabelValues(string(queue)).Observe(d.Seconds())
}

func (p *Prometheus) QueueDepth(queue telemetry.QueueName, depth int) {
	p.depth.WithLabelValues(string(queue)).Set(float64(depth))
}

// RegisterDaemon publishes the daemon counters, read on every scrape.
func RegisterDaemon(reg prometheus.Registerer, m *daemon.Metrics) error {
	counter := func(name, help string, read func(daemon.Snapshot) int) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "daemon",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(read(m.Snapshot())) })
	}
	gauge := func(name, help string, read func(daemon.Snapshot) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "daemon",
			Name:      name,
			Help:      help,
		}, func() float64 { return read(m.Snapshot()) })
	}

	collectors := []prometheus.Collector{
		counter("files_discovered_total", "Log files found under the root.", func(s daemon.Snapshot) int { return s.FilesDiscovered }),
		counter("files_processed_total", "Log files whose tail finished.", func(s daemon.Snapshot) int { return s.FilesProcessed }),
		counter("files_failed_total", "Log files that could not be tailed.", func(s daemon.Snapshot) int { return s.FilesFailed }),
		counter("lines_forwarded_total", "Lines handed to the client.", func(s daemon.Snapshot) int { return s.LinesForwarded }),
		counter("lines_rejected_total", "Lines the client refused.", func(s daemon.Snapshot) int { return s.LinesRejected }),
		counter("scale_ups_total", "Workers added by the autoscaler.", func(s daemon.Snapshot) int { return s.ScaleUps }),
		counter("scale_downs_total", "Workers retired by the autoscaler.", func(s daemon.Snapshot) int { return s.ScaleDowns }),
		gauge("workers_busy", "Workers currently tailing a file.", func(s daemon.Snapshot) float64 { return float64(s.WorkersBusy) }),
		gauge("file_queue_usage", "Fill ratio of the file queue.", daemon.Snapshot.QueueUsage),
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
