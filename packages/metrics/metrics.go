// Package metrics aggregates persisted batch runs and exposes them in the
// Prometheus text format.
package metrics

import (
	"context"
	"sync"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/abdul-hamid-achik/hitcron/packages/core/model"
)

const (
	minTrackableMs = 1
	maxTrackableMs = 600000
	sigFigs        = 3
)

// AggregateMetrics is a point-in-time copy of everything recorded
type AggregateMetrics struct {
	Runs            int64                     `json:"runs"`
	RunsByStatus    map[model.RunStatus]int64 `json:"runs_by_status"`
	TotalCalls      int64                     `json:"total_calls"`
	SuccessCount    int64                     `json:"success_count"`
	FailureCount    int64                     `json:"failure_count"`
	TotalDurationMs int64                     `json:"total_duration_ms"`
	MinDurationMs   int64                     `json:"min_duration_ms"`
	MaxDurationMs   int64                     `json:"max_duration_ms"`
	P50DurationMs   int64                     `json:"p50_duration_ms"`
	P95DurationMs   int64                     `json:"p95_duration_ms"`
	P99DurationMs   int64                     `json:"p99_duration_ms"`
	StatusCodes     map[int]int64             `json:"status_codes"`
	ByAPI           map[string]*APIAggregate  `json:"by_api"`
}

// APIAggregate represents aggregated metrics for a single api definition
type APIAggregate struct {
	ApiID           string `json:"api_id"`
	TotalCalls      int64  `json:"total_calls"`
	FailureCount    int64  `json:"failure_count"`
	TotalDurationMs int64  `json:"total_duration_ms"`
}

// Collector collects metrics from persisted runs. It is safe for concurrent use.
type Collector struct {
	mu        sync.RWMutex
	aggregate *AggregateMetrics
	latency   *hdrhistogram.Histogram
}

func NewCollector() *Collector {
	return &Collector{
		aggregate: newAggregate(),
		latency:   hdrhistogram.New(minTrackableMs, maxTrackableMs, sigFigs),
	}
}

func newAggregate() *AggregateMetrics {
	return &AggregateMetrics{
		RunsByStatus: make(map[model.RunStatus]int64),
		StatusCodes:  make(map[int]int64),
		ByAPI:        make(map[string]*APIAggregate),
	}
}

// RecordRun adds one run and its calls
func (c *Collector) RecordRun(run *model.RunResult) {
	if run == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	a := c.aggregate
	a.Runs++
	a.RunsByStatus[run.Status]++

	for _, call := range run.Calls {
		a.TotalCalls++
		a.TotalDurationMs += call.DurationMs
		if call.Failed() {
			a.FailureCount++
		} else {
			a.SuccessCount++
		}

		if a.TotalCalls == 1 || call.DurationMs < a.MinDurationMs {
			a.MinDurationMs = call.DurationMs
		}
		if call.DurationMs > a.MaxDurationMs {
			a.MaxDurationMs = call.DurationMs
		}
		a.StatusCodes[call.StatusCode]++

		api, ok := a.ByAPI[call.ApiID]
		if !ok {
			api = &APIAggregate{ApiID: call.ApiID}
			a.ByAPI[call.ApiID] = api
		}
		api.TotalCalls++
		api.TotalDurationMs += call.DurationMs
		if call.Failed() {
			api.FailureCount++
		}

		_ = c.latency.RecordValue(clamp(call.DurationMs))
	}
}

func clamp(ms int64) int64 {
	if ms < minTrackableMs {
		return minTrackableMs
	}
	if ms > maxTrackableMs {
		return maxTrackableMs
	}
	return ms
}

// Snapshot returns a copy of the aggregate with percentiles filled in
func (c *Collector) Snapshot() *AggregateMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	src := c.aggregate
	out := *src
	out.RunsByStatus = make(map[model.RunStatus]int64, len(src.RunsByStatus))
	for k, v := range src.RunsByStatus {
		out.RunsByStatus[k] = v
	}
	out.StatusCodes = make(map[int]int64, len(src.StatusCodes))
	for k, v := range src.StatusCodes {
		out.StatusCodes[k] = v
	}
	out.ByAPI = make(map[string]*APIAggregate, len(src.ByAPI))
	for k, v := range src.ByAPI {
		api := *v
		out.ByAPI[k] = &api
	}

	if src.TotalCalls > 0 {
		out.P50DurationMs = c.latency.ValueAtQuantile(50)
		out.P95DurationMs = c.latency.ValueAtQuantile(95)
		out.P99DurationMs = c.latency.ValueAtQuantile(99)
	}
	return &out
}

// RunWriter persists a run
type RunWriter interface {
	CreateRun(ctx context.Context, run *model.RunResult) error
}

// RecordingWriter records every run that next persisted successfully
type RecordingWriter struct {
	next      RunWriter
	collector *Collector
}

func NewRecordingWriter(next RunWriter, c *Collector) *RecordingWriter {
	return &RecordingWriter{next: next, collector: c}
}

func (w *RecordingWriter) CreateRun(ctx context.Context, run *model.RunResult) error {
	if err := w.next.CreateRun(ctx, run); err != nil {
		return err
	}
	w.collector.RecordRun(run)
	return nil
}
