package telemetry

import "runtime"

// SDKVersion is reported in every bundle.
const SDKVersion = "1.4.0"

// Environment is the client metadata snapshot taken once at init.
type Environment struct {
	Platform   string `json:"platform"`
	OS         string `json:"os"`
	Arch       string `json:"arch"`
	Runtime    string `json:"runtime"`
	SDKVersion string `json:"sdk_version"`
}

func DefaultEnvironment() Environment {
	return Environment{
		Platform:   "go",
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
		Runtime:    runtime.Version(),
		SDKVersion: SDKVersion,
	}
}

// Bundle is the payload of one delivery attempt. It is rebuilt on every attempt.
type Bundle struct {
	Environment
	APIKey     string   `json:"api_key"`
	AppVersion string   `json:"app_version"`
	DeviceID   string   `json:"device_id"`
	UserID     string   `json:"user_id,omitempty"`
	Events     []Record `json:"events,omitempty"`
	Logs       []Record `json:"logs,omitempty"`
}

func (b Bundle) Records() []Record {
	if len(b.Events) > 0 {
		return b.Events
	}
	return b.Logs
}

func (b Bundle) Indices() []int64 {
	records := b.Records()
	out := make([]int64, len(records))
	for i, r := range records {
		out[i] = r.Index
	}
	return out
}
