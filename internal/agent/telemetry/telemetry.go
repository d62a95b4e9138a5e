// Package telemetry tracks query, tool, and translation activity. It keeps
// in-memory aggregates for log reports and mirrors every event into a
// dedicated Prometheus registry served on /metrics.
package telemetry

import (
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/medassist/medassist/config"
)

// Telemetry provides monitoring for the query pipeline.
type Telemetry struct {
	config   config.TelemetryConfig
	logger   *log.Logger
	registry *prometheus.Registry
	mu       sync.RWMutex
	metrics  *Metrics

	queriesTotal      *prometheus.CounterVec
	toolInvocations   *prometheus.CounterVec
	toolDuration      *prometheus.HistogramVec
	translationsTotal *prometheus.CounterVec
}

// Metrics holds aggregate counters for periodic and final reports.
type Metrics struct {
	TotalQueries     int64
	CacheHits        int64
	AverageQueryTime time.Duration

	ToolInvocations map[string]int64
	ToolFailures    map[string]int64
	ToolAverageTime map[string]time.Duration

	TranslationRequests int64
	TranslationFailures int64
}

// QueryEvent represents one completed query.
type QueryEvent struct {
	ID       string
	Tools    []string
	Duration time.Duration
	CacheHit bool
}

// ToolEvent represents a single tool invocation.
type ToolEvent struct {
	Tool     string
	Duration time.Duration
	Err      error
}

// TranslationEvent represents one translation attempt.
type TranslationEvent struct {
	Duration time.Duration
	Err      error
}

// NewTelemetry creates a new telemetry instance with its own registry.
func NewTelemetry(config config.TelemetryConfig) *Telemetry {
	registry := prometheus.NewRegistry()

	t := &Telemetry{
		config:   config,
		logger:   log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		registry: registry,
		metrics: &Metrics{
			ToolInvocations: make(map[string]int64),
			ToolFailures:    make(map[string]int64),
			ToolAverageTime: make(map[string]time.Duration),
		},
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medassist_queries_total",
			Help: "Queries answered, by cache outcome.",
		}, []string{"cache"}),
		toolInvocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medassist_tool_invocations_total",
			Help: "Tool invocations, by tool and outcome.",
		}, []string{"tool", "outcome"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "medassist_tool_duration_seconds",
			Help:    "Tool invocation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
		translationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medassist_translation_requests_total",
			Help: "Translation attempts, by outcome.",
		}, []string{"outcome"}),
	}

	registry.MustRegister(t.queriesTotal, t.toolInvocations, t.toolDuration, t.translationsTotal)

	if config.Enabled && config.PeriodicLogs {
		go t.startMetricsCollection()
	}

	return t
}

// Registry exposes the collectors for the /metrics endpoint.
func (t *Telemetry) Registry() *prometheus.Registry {
	if t == nil {
		return prometheus.NewRegistry()
	}
	return t.registry
}

// RecordQueryEvent records a completed query.
func (t *Telemetry) RecordQueryEvent(event QueryEvent) {
	if t == nil || !t.config.Enabled {
		return
	}

	cache := "miss"
	if event.CacheHit {
		cache = "hit"
	}
	t.queriesTotal.WithLabelValues(cache).Inc()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.TotalQueries++
	if event.CacheHit {
		t.metrics.CacheHits++
	}
	if t.metrics.TotalQueries == 1 {
		t.metrics.AverageQueryTime = event.Duration
	} else {
		total := t.metrics.AverageQueryTime * time.Duration(t.metrics.TotalQueries-1)
		t.metrics.AverageQueryTime = (total + event.Duration) / time.Duration(t.metrics.TotalQueries)
	}

	t.logger.Printf("Query Event: ID=%s, Tools=%v, Duration=%v, CacheHit=%t",
		event.ID, event.Tools, event.Duration, event.CacheHit)
}

// RecordToolEvent records a tool invocation.
func (t *Telemetry) RecordToolEvent(event ToolEvent) {
	if t == nil || !t.config.Enabled {
		return
	}

	outcome := "ok"
	if event.Err != nil {
		outcome = "error"
	}
	t.toolInvocations.WithLabelValues(event.Tool, outcome).Inc()
	t.toolDuration.WithLabelValues(event.Tool).Observe(event.Duration.Seconds())

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.ToolInvocations[event.Tool]++
	if event.Err != nil {
		t.metrics.ToolFailures[event.Tool]++
	}

	invocations := t.metrics.ToolInvocations[event.Tool]
	if invocations == 1 {
		t.metrics.ToolAverageTime[event.Tool] = event.Duration
	} else {
		total := t.metrics.ToolAverageTime[event.Tool] * time.Duration(invocations-1)
		t.metrics.ToolAverageTime[event.Tool] = (total + event.Duration) / time.Duration(invocations)
	}
}

// RecordTranslationEvent records a translation attempt.
func (t *Telemetry) RecordTranslationEvent(event TranslationEvent) {
	if t == nil || !t.config.Enabled {
		return
	}

	outcome := "ok"
	if event.Err != nil {
		outcome = "error"
	}
	t.translationsTotal.WithLabelValues(outcome).Inc()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.TranslationRequests++
	if event.Err != nil {
		t.metrics.TranslationFailures++
	}
}

// GetMetrics returns a snapshot of the aggregate counters.
func (t *Telemetry) GetMetrics() Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	metrics := *t.metrics
	metrics.ToolInvocations = make(map[string]int64)
	metrics.ToolFailures = make(map[string]int64)
	metrics.ToolAverageTime = make(map[string]time.Duration)

	for k, v := range t.metrics.ToolInvocations {
		metrics.ToolInvocations[k] = v
	}
	for k, v := range t.metrics.ToolFailures {
		metrics.ToolFailures[k] = v
	}
	for k, v := range t.metrics.ToolAverageTime {
		metrics.ToolAverageTime[k] = v
	}

	return metrics
}

// startMetricsCollection starts periodic metrics reporting.
func (t *Telemetry) startMetricsCollection() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		metrics := t.GetMetrics()
		t.logger.Printf("Metrics Snapshot: Queries=%d, CacheHits=%d, AvgTime=%v, Translations=%d/%d",
			metrics.TotalQueries, metrics.CacheHits, metrics.AverageQueryTime,
			metrics.TranslationRequests-metrics.TranslationFailures, metrics.TranslationRequests)
	}
}

// Shutdown emits the final report.
func (t *Telemetry) Shutdown() {
	if t == nil || !t.config.Enabled {
		return
	}

	metrics := t.GetMetrics()

	t.logger.Printf("Final Report:")
	t.logger.Printf("  Total Queries: %d", metrics.TotalQueries)
	t.logger.Printf("  Cache Hits: %d", metrics.CacheHits)
	t.logger.Printf("  Average Query Time: %v", metrics.AverageQueryTime)
	for tool, n := range metrics.ToolInvocations {
		t.logger.Printf("  Tool %s: %d invocations, %d failures, avg %v",
			tool, n, metrics.ToolFailures[tool], metrics.ToolAverageTime[tool])
	}
	t.logger.Printf("  Translations: %d (%d failed)",
		metrics.TranslationRequests, metrics.TranslationFailures)
}
