package collector

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/Chichichkin/TelemetryAgent/internal/telemetry"
)

// DefaultBaseURL is used when neither the caller nor the store supplies one.
const DefaultBaseURL = "https://collector.telemetry-agent.dev"

const tracerName = "github.com/Chichichkin/TelemetryAgent/internal/telemetry/collector"

// Sender posts bundles to the collector over HTTP.
type Sender struct {
	httpClient *http.Client
	timeout    time.Duration
	tracer     trace.Tracer
}

type Option func(*Sender)

// WithTimeout bounds every request. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Sender) { s.timeout = d }
}

func WithHTTPClient(c *http.Client) Option {
	return func(s *Sender) {
		if c != nil {
			s.httpClient = c
		}
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Sender) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

func NewSender(opts ...Option) *Sender {
	s := &Sender{
		httpClient: &http.Client{},
		timeout:    10 * time.Second,
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Do issues one POST. Any answer carrying a status code is returned without error,
// whatever the code; errors mean no status was obtained.
func (s *Sender) Do(ctx context.Context, r telemetry.Request) (telemetry.Response, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	ctx, span := s.tracer.Start(ctx, "collector.post",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", http.MethodPost),
			attribute.String("url.path", pathOf(r.URL)),
			attribute.Int("http.request.body.size", len(r.Body)),
		),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(r.Body))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build request")
		return telemetry.Response{}, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if r.Multipart == "" {
		req.Header.Set("Content-Type", "application/json")
	} else {
		req.Header.Set("Content-Type", r.Multipart)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		return telemetry.Response{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		// the status is known, so the outcome is still decidable
		span.RecordError(err)
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}
	return telemetry.Response{Status: resp.StatusCode, Body: body}, nil
}

// TrackURL is the endpoint for event bundles.
func TrackURL(base, org string, now time.Time) string {
	return fmt.Sprintf("%s/%s/1/track?current_time=%s",
		strings.TrimRight(base, "/"), org, url.QueryEscape(telemetry.FormatTimestamp(now)))
}

// AppLogURL is the endpoint for log bundles.
func AppLogURL(base, org string) string {
	return fmt.Sprintf("%s/%s/1/app_log", strings.TrimRight(base, "/"), org)
}

func pathOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Path
}
