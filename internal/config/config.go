// Package config reads the agent configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type AppConfig struct {
	APIKey          string        `env:"TELEMETRY_API_KEY"`
	OrgID           string        `env:"TELEMETRY_ORG_ID"`
	AppVersion      string        `env:"TELEMETRY_APP_VERSION"      envDefault:"dev"`
	DeviceID        string        `env:"TELEMETRY_DEVICE_ID"`
	UserID          string        `env:"TELEMETRY_USER_ID"`
	BaseURL         string        `env:"TELEMETRY_BASE_URL"`
	StorePath       string        `env:"TELEMETRY_STORE_PATH"       envDefault:"telemetry.db"`
	RequestTimeout  time.Duration `env:"TELEMETRY_REQUEST_TIMEOUT"  envDefault:"10s"`
	UnitDelay       time.Duration `env:"TELEMETRY_UNIT_DELAY"       envDefault:"2s"`
	ShutdownTimeout time.Duration `env:"TELEMETRY_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	CaptureErrors   bool          `env:"TELEMETRY_CAPTURE_ERRORS"`

	LogLevel    string `env:"LOG_LEVEL"    envDefault:"info"`
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`

	LogRootPath     string        `env:"LOG_PATH"          envDefault:"/var/log/pods"`
	NodeName        string        `env:"NODE_NAME"         envDefault:"unknown"`
	Workers         int           `env:"WORKERS"           envDefault:"4"`
	QueueSize       int           `env:"QUEUE_SIZE"        envDefault:"50"`
	ScanInterval    time.Duration `env:"SCAN_INTERVAL"     envDefault:"30s"`
	FileIdleTimeout time.Duration `env:"FILE_IDLE_TIMEOUT" envDefault:"5m"`
	ReportInterval  time.Duration `env:"REPORT_INTERVAL"   envDefault:"30s"`

	// MaxWorkers at or below Workers keeps the pool fixed.
	MaxWorkers         int           `env:"MAX_WORKERS"`
	ScaleUpThreshold   float64       `env:"SCALE_UP_THRESHOLD"   envDefault:"0.9"`
	ScaleDownThreshold float64       `env:"SCALE_DOWN_THRESHOLD" envDefault:"0.3"`
	ScaleCheckInterval time.Duration `env:"SCALE_CHECK_INTERVAL" envDefault:"10s"`
}

// Load reads envFile into the environment when it exists, without overriding variables
// that are already set, then parses the environment.
func Load(envFile string) (AppConfig, error) {
	var cfg AppConfig
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks what a sending agent needs.
func (c AppConfig) Validate() error {
	var errs []error
	if c.APIKey == "" {
		errs = append(errs, errors.New("TELEMETRY_API_KEY is required"))
	}
	if c.OrgID == "" {
		errs = append(errs, errors.New("TELEMETRY_ORG_ID is required"))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("WORKERS must be positive, got %d", c.Workers))
	}
	if c.MaxWorkers < 0 {
		errs = append(errs, fmt.Errorf("MAX_WORKERS must not be negative, got %d", c.MaxWorkers))
	}
	if c.ScaleDownThreshold >= c.ScaleUpThreshold {
		errs = append(errs, fmt.Errorf("SCALE_DOWN_THRESHOLD (%g) must be below SCALE_UP_THRESHOLD (%g)", c.ScaleDownThreshold, c.ScaleUpThreshold))
	}
	if c.UnitDelay < 0 {
		errs = append(errs, fmt.Errorf("TELEMETRY_UNIT_DELAY must not be negative, got %s", c.UnitDelay))
	}
	return errors.Join(errs...)
}
