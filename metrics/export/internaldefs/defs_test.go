package internaldefs

import (
	"strings"
	"testing"

	"github.com/MrEthical07/sessionguard"
)

func TestCounterDefsUniqueAndPrefixed(t *testing.T) {
	seenID := map[sessionguard.MetricID]bool{}
	seenName := map[string]bool{}
	for _, def := range CounterDefs {
		if seenID[def.ID] || seenName[def.Name] {
			t.Fatalf("duplicate counter def %+v", def)
		}
		seenID[def.ID] = true
		seenName[def.Name] = true
		if !strings.HasPrefix(def.Name, Namespace+"_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("bad counter name %q", def.Name)
		}
	}
	for _, def := range HistogramDefs {
		if seenID[def.ID] {
			t.Fatalf("histogram %s reuses a counter id", def.Name)
		}
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	want := [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("CumulativeBuckets = %v, want %v", got, want)
	}
	if len(HistogramUpperBounds)+1 != len(HistogramBoundSuffix) {
		t.Fatal("bounds and suffixes disagree")
	}
}
