package internaldefs

import (
	"strings"
	"testing"

	goSession "github.com/MrEthical07/goSession"
)

func TestCounterDefsCoverEveryCounter(t *testing.T) {
	seen := map[goSession.MetricID]bool{}
	names := map[string]bool{}
	for _, def := range CounterDefs {
		if seen[def.ID] {
			t.Fatalf("duplicate metric id %d", def.ID)
		}
		if names[def.Name] {
			t.Fatalf("duplicate metric name %s", def.Name)
		}
		if !strings.HasPrefix(def.Name, "gosession_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("unexpected counter name %s", def.Name)
		}
		seen[def.ID] = true
		names[def.Name] = true
	}

	snap := goSession.NewMetrics(goSession.MetricsConfig{Enabled: true}).Snapshot()
	for id := range snap.Counters {
		if !seen[id] {
			t.Fatalf("counter %d has no export definition", id)
		}
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 0, 2}))
	want := [8]uint64{1, 1, 3, 3, 3, 3, 3, 3}
	if got != want {
		t.Fatalf("got %v want %v", got, want)
	}
	if len(HistogramBounds) != 8 || len(HistogramBoundSuffix) != 8 {
		t.Fatal("bucket labels out of sync")
	}
}
