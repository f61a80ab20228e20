package testutils

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Chichichkin/TelemetryAgent/internal/telemetry"
)

type MockResponse struct {
	Status int
	Body   string
	Err    error
}

// MockTransport answers with Responses in order, repeating the last one. With no
// responses configured every call succeeds with 200.
type MockTransport struct {
	mu        sync.Mutex
	Requests  []telemetry.Request
	Responses []MockResponse
	// Gate, when set, holds every call until a value is received or the context ends.
	Gate chan struct{}
	// Started receives one value per call before the call blocks on Gate.
	Started chan struct{}
	// IgnoreContext keeps a gated call blocked after its context ends, like a transport
	// that answers regardless of cancellation.
	IgnoreContext bool
	Delay         time.Duration
}

func (m *MockTransport) Do(ctx context.Context, req telemetry.Request) (telemetry.Response, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	resp := MockResponse{Status: 200}
	if len(m.Responses) > 0 {
		resp = m.Responses[0]
		if len(m.Responses) > 1 {
			m.Responses = m.Responses[1:]
		}
	}
	gate, started, delay := m.Gate, m.Started, m.Delay
	done := ctx.Done()
	if m.IgnoreContext {
		done = nil
	}
	m.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if gate != nil {
		select {
		case <-gate:
		case <-done:
			return telemetry.Response{}, ctx.Err()
		}
	}
	if resp.Err != nil {
		return telemetry.Response{}, resp.Err
	}
	return telemetry.Response{Status: resp.Status, Body: []byte(resp.Body)}, nil
}

func (m *MockTransport) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

func (m *MockTransport) GetRequests() []telemetry.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]telemetry.Request, len(m.Requests))
	copy(out, m.Requests)
	return out
}

// SinkRecorder collects everything handed to an ErrorSink.
type SinkRecorder struct {
	mu    sync.Mutex
	Calls [][]any
}

func (s *SinkRecorder) Sink(args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, args)
}

func (s *SinkRecorder) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}

func (s *SinkRecorder) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []error
	for _, call := range s.Calls {
		for _, arg := range call {
			if err, ok := arg.(error); ok {
				out = append(out, err)
			}
		}
	}
	return out
}

type LoggedLine struct {
	Tag     string
	Level   string
	Message string
	Context map[string]any
}

type MockLogSink struct {
	mu         sync.Mutex
	Lines      []LoggedLine
	ShouldFail bool
	Delay      time.Duration
}

func (m *MockLogSink) TaggedLog(tag, level, message string, context map[string]any) error {
	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ShouldFail {
		return telemetry.ErrInvalidRecord
	}
	m.Lines = append(m.Lines, LoggedLine{Tag: tag, Level: level, Message: message, Context: context})
	return nil
}

func (m *MockLogSink) GetLines() []LoggedLine {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LoggedLine, len(m.Lines))
	copy(out, m.Lines)
	return out
}

func CreateTempLogStructure(t *testing.T) string {
	tempDir := t.TempDir()

	structure := map[string]string{
		"api/access.log":          "GET /\n",
		"api/error.log":           "boom\n",
		"worker/jobs/runner.log":  "job started\n",
		"worker/jobs/runner.txt":  "not a log\n",
		"web/frontend/render.log": "rendered\n",
	}

	for path, content := range structure {
		fullPath := filepath.Join(tempDir, path)
		dir := filepath.Dir(fullPath)

		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("Failed to create directory %s: %v", dir, err)
		}

		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write file %s: %v", fullPath, err)
		}
	}

	return tempDir
}
