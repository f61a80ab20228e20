package client

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Chichichkin/TelemetryAgent/internal/telemetry"
	"github.com/Chichichkin/TelemetryAgent/internal/telemetry/collector"
	"github.com/Chichichkin/TelemetryAgent/internal/telemetry/store"
)

// resolveIdentity picks device id, user id and base URL from config, then the store,
// then a default, and persists whatever config supplied or was generated.
func (c *Client) resolveIdentity() error {
	device, ok := store.Resolve(
		store.Value(c.config.DeviceID),
		store.Stored(c.store, telemetry.KeyDeviceID),
		store.Generate(c.opts.newID),
	)
	if !ok {
		return errors.New("client: could not determine a device id")
	}
	c.deviceID = device
	if err := c.remember(telemetry.KeyDeviceID, device); err != nil {
		return err
	}

	c.userID, _ = store.Resolve(
		store.Value(c.config.UserID),
		store.Stored(c.store, telemetry.KeyUserID),
	)
	if c.userID != "" {
		if err := c.remember(telemetry.KeyUserID, c.userID); err != nil {
			return err
		}
	}

	c.baseURL, _ = store.Resolve(
		store.Value(c.config.BaseURL),
		store.Stored(c.store, telemetry.KeyBaseURL),
		store.Value(collector.DefaultBaseURL),
	)
	if c.config.BaseURL != "" {
		if err := c.remember(telemetry.KeyBaseURL, c.baseURL); err != nil {
			return err
		}
	}
	return nil
}

// remember writes value under key unless it is already stored.
func (c *Client) remember(key, value string) error {
	current, ok, err := store.Load[string](c.store, key)
	if err == nil && ok && current == value {
		return nil
	}
	if err := store.Save(c.store, key, value); err != nil {
		return fmt.Errorf("client: persist %s: %w", key, err)
	}
	return nil
}

// trackLifecycle queues the one-time install record and the daily active record.
func (c *Client) trackLifecycle() {
	now := c.opts.clock.Now().UTC()

	sent, _, err := store.Load[bool](c.store, telemetry.KeyInstallSent)
	if err != nil {
		c.logger.Warn("install_flag_unreadable", zap.Error(err))
	}
	if !sent {
		c.trackInternal(telemetry.Record{
			Kind:   telemetry.KindInstall,
			Fields: telemetry.Fields{"install_time": telemetry.FormatTimestamp(now)},
		})
		if err := store.Save(c.store, telemetry.KeyInstallSent, true); err != nil {
			c.logger.Warn("install_flag_persist_failed", zap.Error(err))
		}
	}

	last, ok, err := store.Load[time.Time](c.store, telemetry.KeyLastDAU)
	if err != nil {
		c.logger.Warn("dau_marker_unreadable", zap.Error(err))
	}
	if !ok || !sameDay(last, now) {
		c.trackInternal(telemetry.Record{Kind: telemetry.KindDAU})
		if err := store.Save(c.store, telemetry.KeyLastDAU, now); err != nil {
			c.logger.Warn("dau_marker_persist_failed", zap.Error(err))
		}
	}
}

func (c *Client) trackInternal(r telemetry.Record) {
	if _, err := c.Track(r); err != nil {
		c.logger.Warn("lifecycle_track_failed", zap.String("kind", string(r.Kind)), zap.Error(err))
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
