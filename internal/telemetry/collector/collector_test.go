package collector

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Chichichkin/TelemetryAgent/internal/telemetry"
)

func TestSender_Do(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/org/1/app_log", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.JSONEq(t, `{"logs":[]}`, string(body))

		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	sender := NewSender()
	resp, err := sender.Do(context.Background(), telemetry.Request{
		URL:  AppLogURL(server.URL, "org"),
		Body: []byte(`{"logs":[]}`),
	})

	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.Status)
	assert.Equal(t, `{"ok":true}`, string(resp.Body))
}

func TestSender_Do_Multipart(t *testing.T) {
	const contentType = "multipart/form-data; boundary=xyz"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, contentType, r.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	resp, err := NewSender().Do(context.Background(), telemetry.Request{
		URL:       server.URL,
		Body:      []byte("--xyz--"),
		Multipart: contentType,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
}

func TestSender_Do_ErrorStatusIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("bad key"))
	}))
	defer server.Close()

	resp, err := NewSender().Do(context.Background(), telemetry.Request{URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.Status)
	assert.Equal(t, "bad key", string(resp.Body))
}

func TestSender_Do_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	sender := NewSender(WithTimeout(50 * time.Millisecond))
	_, err := sender.Do(context.Background(), telemetry.Request{URL: server.URL})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, Transient, Classify(0, err))
}

func TestSender_Do_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSender().Do(ctx, telemetry.Request{URL: "http://127.0.0.1:1"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSender_Do_Span(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewSender(WithTracerProvider(tp)).Do(context.Background(), telemetry.Request{URL: server.URL + "/o/1/app_log"})
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "collector.post", spans[0].Name())

	attrs := map[string]any{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, int64(500), attrs["http.response.status_code"])
	assert.Equal(t, "/o/1/app_log", attrs["url.path"])
}

func TestURLs(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	assert.Equal(t,
		"https://c.example/acme/1/track?current_time=2024-03-01T12%3A30%3A00.000Z",
		TrackURL("https://c.example/", "acme", now))
	assert.Equal(t, "https://c.example/acme/1/app_log", AppLogURL("https://c.example", "acme"))
}
