package search

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TraceStep is one recorded pipeline stage with its elapsed time and a
// structured snapshot of the intermediate data it produced.
type TraceStep struct {
	Name      string `json:"name"`
	ElapsedMs int64  `json:"elapsedMs"`
	Snapshot  any    `json:"snapshot,omitempty"`
}

// TraceStats aggregates the pipeline outcome.
type TraceStats struct {
	TotalQueries        int     `json:"totalQueries"`
	TotalInitialResults int     `json:"totalInitialResults"`
	BoostedResults      int     `json:"boostedResults"`
	FinalResults        int     `json:"finalResults"`
	AverageSimilarity   float64 `json:"averageSimilarity"`
}

// Trace is a structured execution trace of one search request. On failure it
// carries the partial trace gathered so far plus the error.
type Trace struct {
	ID        string      `json:"id"`
	StartedAt time.Time   `json:"startedAt"`
	Steps     []TraceStep `json:"steps"`
	Logs      []string    `json:"logs,omitempty"`
	Stats     TraceStats  `json:"stats"`
	Error     string      `json:"error,omitempty"`
}

// TraceRecorder collects a Trace across the expansion, fan-out and fusion
// stages. All methods are safe on a nil receiver so the pipeline can record
// unconditionally; a nil recorder traces nothing.
type TraceRecorder struct {
	mu    sync.Mutex
	trace Trace
	last  time.Time
}

// NewTraceRecorder starts a trace with a fresh id.
func NewTraceRecorder() *TraceRecorder {
	now := time.Now()
	return &TraceRecorder{
		trace: Trace{
			ID:        uuid.NewString(),
			StartedAt: now,
		},
		last: now,
	}
}

// Step records a completed pipeline stage. Elapsed time is measured from
// the previous step (or the trace start).
func (r *TraceRecorder) Step(name string, snapshot any) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.trace.Steps = append(r.trace.Steps, TraceStep{
		Name:      name,
		ElapsedMs: now.Sub(r.last).Milliseconds(),
		Snapshot:  snapshot,
	})
	r.last = now
}

// Logf appends a human-readable log line to the trace.
func (r *TraceRecorder) Logf(format string, args ...any) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace.Logs = append(r.trace.Logs, fmt.Sprintf(format, args...))
}

// Fail records a pipeline error without discarding the steps gathered so
// far. Diagnosability takes priority over early termination.
func (r *TraceRecorder) Fail(err error) {
	if r == nil || err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace.Error = err.Error()
}

// SetStats records the aggregate pipeline statistics.
func (r *TraceRecorder) SetStats(stats TraceStats) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace.Stats = stats
}

// Snapshot returns a copy of the trace gathered so far. Returns nil on a
// nil recorder.
func (r *TraceRecorder) Snapshot() *Trace {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := r.trace
	copied.Steps = append([]TraceStep(nil), r.trace.Steps...)
	copied.Logs = append([]string(nil), r.trace.Logs...)
	return &copied
}
