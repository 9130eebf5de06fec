// Package stats keeps rolling-window processing latencies per pipeline stage
// and counts of task outcomes.
package stats

import (
	"slices"
	"sync"
	"time"
)

type sample struct {
	at time.Time
	ms int64
}

// Latency is a point-in-time aggregate of one stage's samples.
type Latency struct {
	Count int     `json:"count"`
	MinMs int64   `json:"min_ms"`
	MaxMs int64   `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`
}

// Report is what the stats endpoint serves.
type Report struct {
	Window   string             `json:"window"`
	Stages   map[string]Latency `json:"stages"`
	Outcomes map[string]int64   `json:"outcomes"`
}

// Recorder is safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	maxAge   time.Duration
	stages   map[string][]sample
	outcomes map[string]int64
	now      func() time.Time
}

// NewRecorder keeps samples younger than maxAge (default one hour).
func NewRecorder(maxAge time.Duration) *Recorder {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Recorder{
		maxAge:   maxAge,
		stages:   make(map[string][]sample),
		outcomes: make(map[string]int64),
		now:      time.Now,
	}
}

// Record adds a duration sample for stage. Negative durations count as zero.
func (r *Recorder) Record(stage string, d time.Duration) {
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages[stage] = append(prune(r.stages[stage], now.Add(-r.maxAge)), sample{at: now, ms: ms})
}

// Outcome counts a terminal task status. Counters are not windowed.
func (r *Recorder) Outcome(status string) {
	r.mu.Lock()
	r.outcomes[status]++
	r.mu.Unlock()
}

// Snapshot aggregates every stage with samples still inside the window.
func (r *Recorder) Snapshot() Report {
	cutoff := r.now().Add(-r.maxAge)

	r.mu.Lock()
	defer r.mu.Unlock()

	rep := Report{
		Window:   r.maxAge.String(),
		Stages:   make(map[string]Latency, len(r.stages)),
		Outcomes: make(map[string]int64, len(r.outcomes)),
	}
	for stage, samples := range r.stages {
		samples = prune(samples, cutoff)
		r.stages[stage] = samples
		if len(samples) > 0 {
			rep.Stages[stage] = aggregate(samples)
		}
	}
	for k, v := range r.outcomes {
		rep.Outcomes[k] = v
	}
	return rep
}

func prune(samples []sample, cutoff time.Time) []sample {
	keep := samples[:0]
	for _, s := range samples {
		if !s.at.Before(cutoff) {
			keep = append(keep, s)
		}
	}
	return keep
}

func aggregate(samples []sample) Latency {
	values := make([]int64, len(samples))
	var sum int64
	for i, s := range samples {
		values[i] = s.ms
		sum += s.ms
	}
	slices.Sort(values)
	return Latency{
		Count: len(values),
		MinMs: values[0],
		MaxMs: values[len(values)-1],
		AvgMs: float64(sum) / float64(len(values)),
		P50Ms: percentile(values, 50),
		P95Ms: percentile(values, 95),
		P99Ms: percentile(values, 99),
	}
}

// percentile interpolates linearly between the closest ranks.
func percentile(sorted []int64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sorted[0])
	}
	if pct >= 100 {
		return float64(sorted[len(sorted)-1])
	}
	index := float64(len(sorted)-1) * pct / 100
	lower := int(index)
	if lower+1 >= len(sorted) {
		return float64(sorted[lower])
	}
	lo, hi := float64(sorted[lower]), float64(sorted[lower+1])
	return lo + (hi-lo)*(index-float64(lower))
}
