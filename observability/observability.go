// Package observability provides the structured Logger and MetricsCollector
// injected into the service and the HTTP adapter, plus request-scoped
// RequestHook implementations (LoggingHook, MetricsHook). The HTTP adapter
// logs through Logger directly and does not invoke the hooks.
package observability

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/deepzoom/iiifd/apperrors"
)

// Logger is the minimal structured logging interface depended on by the
// rest of the module. SlogLogger is the only production implementation.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)
}

// SlogLogger wraps the standard library slog.Logger.
type SlogLogger struct {
	log *slog.Logger
}

// NewSlogLogger creates a Logger backed by slog.
func NewSlogLogger(l *slog.Logger) *SlogLogger { return &SlogLogger{log: l} }

func (s *SlogLogger) Debug(msg string, fields ...any) { s.log.Debug(msg, fields...) }
func (s *SlogLogger) Info(msg string, fields ...any)  { s.log.Info(msg, fields...) }
func (s *SlogLogger) Warn(msg string, fields ...any)  { s.log.Warn(msg, fields...) }
func (s *SlogLogger) Error(msg string, fields ...any) { s.log.Error(msg, fields...) }

// MetricsCollector receives performance observations. MetricsHook is the
// only code in this module that records into it; service.Service carries
// one but does not record.
type MetricsCollector interface {
	RecordRequestDuration(route string, d time.Duration)
	RecordBytesStreamed(n int64)
	RecordError(category string)
}

// InMemoryMetrics accumulates metrics atomically; safe for concurrent use.
// There is no Prometheus/OTEL metrics exporter in this repo (metrics export
// is out of scope per spec.md §1) — this is the collector a future exporter
// would read from.
type InMemoryMetrics struct {
	mu sync.RWMutex

	durationsMs map[string]int64
	calls       map[string]int64
	errors      map[string]int64

	totalBytesStreamed int64
}

// NewInMemoryMetrics creates an empty metrics store.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		durationsMs: make(map[string]int64),
		calls:       make(map[string]int64),
		errors:      make(map[string]int64),
	}
}

func (m *InMemoryMetrics) RecordRequestDuration(route string, d time.Duration) {
	ms := d.Milliseconds()
	m.mu.Lock()
	m.durationsMs[route] += ms
	m.calls[route]++
	m.mu.Unlock()
}

func (m *InMemoryMetrics) RecordBytesStreamed(n int64) {
	atomic.AddInt64(&m.totalBytesStreamed, n)
}

func (m *InMemoryMetrics) RecordError(category string) {
	m.mu.Lock()
	m.errors[category]++
	m.mu.Unlock()
}

// Snapshot is an immutable point-in-time copy of metrics.
type Snapshot struct {
	DurationsMs        map[string]int64
	Calls              map[string]int64
	Errors             map[string]int64
	TotalBytesStreamed int64
}

// Snapshot returns a copy of current metrics.
func (m *InMemoryMetrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		DurationsMs:        make(map[string]int64, len(m.durationsMs)),
		Calls:              make(map[string]int64, len(m.calls)),
		Errors:             make(map[string]int64, len(m.errors)),
		TotalBytesStreamed: atomic.LoadInt64(&m.totalBytesStreamed),
	}
	for k, v := range m.durationsMs {
		snap.DurationsMs[k] = v
	}
	for k, v := range m.calls {
		snap.Calls[k] = v
	}
	for k, v := range m.errors {
		snap.Errors[k] = v
	}
	return snap
}

// RequestHook is an optional observer invoked around each HTTP request.
type RequestHook interface {
	BeforeRequest(ctx context.Context, route string)
	AfterRequest(ctx context.Context, route string, status int, d time.Duration, err error)
}

// LoggingHook logs the start/end of each HTTP request.
type LoggingHook struct {
	logger Logger
}

// NewLoggingHook creates a LoggingHook.
func NewLoggingHook(l Logger) *LoggingHook { return &LoggingHook{logger: l} }

func (h *LoggingHook) BeforeRequest(_ context.Context, route string) {
	h.logger.Debug("request.start", "route", route)
}

func (h *LoggingHook) AfterRequest(_ context.Context, route string, status int, d time.Duration, err error) {
	if err != nil {
		h.logger.Error("request.error",
			"route", route,
			"status", status,
			"duration_ms", d.Milliseconds(),
			"error", err.Error(),
		)
		return
	}
	h.logger.Info("request.done",
		"route", route,
		"status", status,
		"duration_ms", d.Milliseconds(),
	)
}

// MetricsHook feeds request events into a MetricsCollector.
type MetricsHook struct {
	collector MetricsCollector
}

// NewMetricsHook creates a MetricsHook.
func NewMetricsHook(c MetricsCollector) *MetricsHook { return &MetricsHook{collector: c} }

func (h *MetricsHook) BeforeRequest(context.Context, string) {}

func (h *MetricsHook) AfterRequest(_ context.Context, route string, _ int, d time.Duration, err error) {
	h.collector.RecordRequestDuration(route, d)
	if err != nil {
		category := "uncategorized"
		if cat, ok := apperrors.CategoryOf(err); ok {
			category = string(cat)
		}
		h.collector.RecordError(category)
	}
}
