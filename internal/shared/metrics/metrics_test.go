package metrics

import (
	"strings"
	"testing"
	"time"
)

func TestRenderIncludesCountersAndHistogram(t *testing.T) {
	IncRunStarted()
	IncRunCompleted()
	ObserveRunDuration(1500 * time.Millisecond)

	out := Render()
	for _, want := range []string{
		"# TYPE deal_runs_started_total counter",
		"deal_run_duration_ms_bucket{le=\"2500\"}",
		"deal_run_duration_ms_bucket{le=\"+Inf\"}",
		"deal_run_duration_ms_count",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("render missing %q:\n%s", want, out)
		}
	}
}

func TestHistogramCountsLowestBucketOnly(t *testing.T) {
	h := newHistogram([]float64{10, 100})
	h.Observe(5)
	h.Observe(50)
	h.Observe(500)
	snap := h.Snapshot()
	if snap.count != 3 {
		t.Fatalf("expected count 3, got %d", snap.count)
	}
	if snap.counts[0] != 1 || snap.counts[1] != 1 {
		t.Fatalf("unexpected bucket counts: %v", snap.counts)
	}
}
