// Package store holds the Store implementations and the typed helpers used to read and write them.
package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Chichichkin/TelemetryAgent/internal/telemetry"
)

// Load decodes the JSON value under key. ok is false when the key is absent.
func Load[T any](s telemetry.Store, key string) (value T, ok bool, err error) {
	raw, found, err := s.Get(key)
	if err != nil || !found {
		return value, false, err
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return value, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return value, true, nil
}

func Save(s telemetry.Store, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(key, raw)
}

// Source is one candidate in a fallback chain.
type Source func() (string, bool)

// Value yields v unless it is blank.
func Value(v string) Source {
	return func() (string, bool) {
		v = strings.TrimSpace(v)
		return v, v != ""
	}
}

// Stored yields the string persisted under key. Undecodable values are skipped.
func Stored(s telemetry.Store, key string) Source {
	return func() (string, bool) {
		v, ok, err := Load[string](s, key)
		if err != nil || !ok || strings.TrimSpace(v) == "" {
			return "", false
		}
		return v, true
	}
}

func Generate(fn func() string) Source {
	return func() (string, bool) {
		v := fn()
		return v, v != ""
	}
}

// Resolve returns the first value produced by sources, in order.
func Resolve(sources ...Source) (string, bool) {
	for _, src := range sources {
		if v, ok := src(); ok {
			return v, true
		}
	}
	return "", false
}
