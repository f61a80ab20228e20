package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Chichichkin/TelemetryAgent/internal/config"
	"github.com/Chichichkin/TelemetryAgent/internal/daemon"
	"github.com/Chichichkin/TelemetryAgent/internal/metrics"
	"github.com/Chichichkin/TelemetryAgent/internal/platform/otel"
	"github.com/Chichichkin/TelemetryAgent/internal/telemetry/client"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Tail log files under LOG_PATH and deliver every line as a log record",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAgent(cmd.Context())
	},
}

func runAgent(ctx context.Context) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Setup(ctx, "telemetry-agent", version)
	if err != nil {
		logger.Warn("tracing_disabled", zap.Error(err))
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing_shutdown_failed", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom, err := metrics.NewPrometheus(reg)
	if err != nil {
		return err
	}

	c, st, err := openClient(cfg, logger, client.WithMetrics(prom))
	if err != nil {
		return err
	}
	defer st.Close()

	svc := daemon.NewService(ctx, daemon.Config{
		LogRootPath:        cfg.LogRootPath,
		ScanInterval:       cfg.ScanInterval,
		Workers:            cfg.Workers,
		MaxWorkers:         cfg.MaxWorkers,
		ScaleUpThreshold:   cfg.ScaleUpThreshold,
		ScaleDownThreshold: cfg.ScaleDownThreshold,
		ScaleCheckInterval: cfg.ScaleCheckInterval,
		FileQueueSize:      cfg.QueueSize,
		NodeName:           cfg.NodeName,
		FileIdleTimeout:    cfg.FileIdleTimeout,
		ReportInterval:     cfg.ReportInterval,
	}, c, logger)
	if err := metrics.RegisterDaemon(reg, svc.Metrics()); err != nil {
		c.Close()
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics_server_failed", zap.Error(err))
		}
	}()

	svc.Start()
	logger.Info("agent_started",
		zap.String("version", version),
		zap.String("device_id", c.DeviceID()),
		zap.String("metrics_addr", cfg.MetricsAddr),
	)

	<-ctx.Done()
	logger.Info("shutdown_signal_received")

	svc.Stop()
	drain(c, cfg.ShutdownTimeout, logger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
