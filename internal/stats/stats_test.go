package stats

import (
	"testing"
	"time"
)

func TestRecorderPercentiles(t *testing.T) {
	r := NewRecorder(time.Hour)
	for _, ms := range []int64{300, 100, 500, 200, 400} {
		r.Record("document", time.Duration(ms)*time.Millisecond)
	}

	snap, ok := r.Snapshot().Stages["document"]
	if !ok {
		t.Fatal("expected document stage in snapshot")
	}
	if snap.Count != 5 {
		t.Fatalf("expected count=5, got %d", snap.Count)
	}
	if snap.MinMs != 100 || snap.MaxMs != 500 {
		t.Fatalf("expected min=100 max=500, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
	if snap.AvgMs != 300 {
		t.Fatalf("expected avg=300, got %f", snap.AvgMs)
	}
	if snap.P50Ms != 300 {
		t.Fatalf("expected p50=300, got %f", snap.P50Ms)
	}
	if snap.P95Ms != 480 {
		t.Fatalf("expected p95=480, got %f", snap.P95Ms)
	}
	if snap.P99Ms != 496 {
		t.Fatalf("expected p99=496, got %f", snap.P99Ms)
	}
}

func TestRecorderPrunesExpiredSamples(t *testing.T) {
	r := NewRecorder(time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	r.Record("task", 100*time.Millisecond)
	now = now.Add(2 * time.Minute)

	if _, ok := r.Snapshot().Stages["task"]; ok {
		t.Fatal("expected expired stage to be absent")
	}

	r.Record("task", 200*time.Millisecond)
	snap := r.Snapshot().Stages["task"]
	if snap.Count != 1 || snap.MinMs != 200 {
		t.Fatalf("expected single fresh sample of 200ms, got %+v", snap)
	}
}

func TestRecorderClampsNegativeDuration(t *testing.T) {
	r := NewRecorder(time.Hour)
	r.Record("task", -10*time.Millisecond)
	snap := r.Snapshot().Stages["task"]
	if snap.Count != 1 || snap.MaxMs != 0 {
		t.Fatalf("expected one clamped sample, got %+v", snap)
	}
}

func TestRecorderOutcomes(t *testing.T) {
	r := NewRecorder(0)
	r.Outcome("completed")
	r.Outcome("completed")
	r.Outcome("failed")
	rep := r.Snapshot()
	if rep.Outcomes["completed"] != 2 || rep.Outcomes["failed"] != 1 {
		t.Fatalf("unexpected outcomes: %v", rep.Outcomes)
	}
	if rep.Window != "1h0m0s" {
		t.Errorf("window = %q", rep.Window)
	}
}
