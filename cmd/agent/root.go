package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Chichichkin/TelemetryAgent/internal/config"
	"github.com/Chichichkin/TelemetryAgent/internal/telemetry"
	"github.com/Chichichkin/TelemetryAgent/internal/telemetry/client"
	"github.com/Chichichkin/TelemetryAgent/internal/telemetry/collector"
	"github.com/Chichichkin/TelemetryAgent/internal/telemetry/store"
)

var version = "dev"

var envFile string

var rootCmd = &cobra.Command{
	Use:          "telemetry-agent",
	Short:        "Buffers telemetry records on disk and delivers them to the collector",
	Version:      version,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file read before the environment")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg.Level = lvl
	return cfg.Build()
}

// errorSink logs whatever the client reports; delivery problems never stop the agent.
func errorSink(logger *zap.Logger) telemetry.ErrorSink {
	return func(args ...any) {
		for _, arg := range args {
			if err, ok := arg.(error); ok {
				logger.Warn("delivery_problem", zap.Error(err))
				continue
			}
			logger.Warn("delivery_problem", zap.Any("detail", arg))
		}
	}
}

// openClient opens the store at cfg.StorePath and starts a client on it. The caller
// closes the client before the store.
func openClient(cfg config.AppConfig, logger *zap.Logger, opts ...client.Option) (*client.Client, *store.SQLite, error) {
	st, err := store.OpenSQLite(cfg.StorePath)
	if err != nil {
		return nil, nil, err
	}

	sender := collector.NewSender(collector.WithTimeout(cfg.RequestTimeout))
	opts = append([]client.Option{
		client.WithLogger(logger),
		client.WithUnitDelay(cfg.UnitDelay),
	}, opts...)

	c, err := client.New(client.Config{
		APIKey:        cfg.APIKey,
		OrgID:         cfg.OrgID,
		AppVersion:    cfg.AppVersion,
		DeviceID:      cfg.DeviceID,
		UserID:        cfg.UserID,
		BaseURL:       cfg.BaseURL,
		ErrorSink:     errorSink(logger),
		CaptureErrors: cfg.CaptureErrors,
	}, st, sender, opts...)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return c, st, nil
}

// drain flushes with a deadline and then closes the client, keeping unsent records on disk.
func drain(c *client.Client, timeout time.Duration, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := c.Flush(ctx); err != nil {
		logger.Warn("final_flush_incomplete", zap.Error(err))
	}
	c.Close()
	logger.Info("client_drained",
		zap.Int("events_pending", c.Pending(telemetry.EventQueue)),
		zap.Int("logs_pending", c.Pending(telemetry.LogQueue)),
	)
}
