package engine

import (
	"testing"
	"time"

	"github.com/wallsense-data/wallsense/internal/wifi"
)

func newTestDetector(t *testing.T, threshold float64) (*Detector, *BaselineStore) {
	t.Helper()
	store := NewBaselineStore()
	return NewDetector(threshold, store), store
}

func TestDetectorSkipsUncalibratedNetwork(t *testing.T) {
	d, _ := newTestDetector(t, 10)
	_, ok := d.Evaluate(testNet, -40, -40, 1.0, time.Now())
	if ok {
		t.Error("network without baseline must not trigger")
	}
}

func TestDetectorThreshold(t *testing.T) {
	d, store := newTestDetector(t, 10)
	store.Replace(map[wifi.NetworkID]Baseline{testNet: {Mean: -55, SampleCount: 30}})
	now := time.Now()

	cases := []struct {
		name        string
		filtered    float64
		sensitivity float64
		want        bool
	}{
		{"large deviation triggers", -40, 1.0, true},
		{"small deviation does not", -58, 1.0, false},
		{"exactly at threshold does not", -65, 1.0, false},
		{"just past threshold does", -65.1, 1.0, true},
		{"negative deviation triggers too", -70, 1.0, true},
		{"deviation 6 below default threshold", -61, 1.0, false},
		{"sensitivity 2 halves threshold", -61, 2.0, true},
		{"low sensitivity raises threshold", -68, 0.5, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, got := d.Evaluate(testNet, int(tc.filtered), tc.filtered, tc.sensitivity, now)
			if got != tc.want {
				t.Errorf("filtered=%v sensitivity=%v: triggered=%v, want %v",
					tc.filtered, tc.sensitivity, got, tc.want)
			}
		})
	}
}

func TestDetectorCandidateFields(t *testing.T) {
	d, store := newTestDetector(t, 10)
	store.Replace(map[wifi.NetworkID]Baseline{testNet: {Mean: -55, StdDev: 1.2, SampleCount: 30}})
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	c, ok := d.Evaluate(testNet, -40, -40, 1.0, at)
	if !ok {
		t.Fatal("expected trigger")
	}
	if c.Network != testNet {
		t.Errorf("network = %v", c.Network)
	}
	if c.Deviation != 15 {
		t.Errorf("deviation = %v, want 15", c.Deviation)
	}
	if c.Confidence != 100 {
		t.Errorf("confidence = %v, want saturated 100", c.Confidence)
	}
	if c.Baseline.Mean != -55 {
		t.Errorf("baseline mean = %v", c.Baseline.Mean)
	}
	if !c.At.Equal(at) {
		t.Errorf("timestamp not propagated")
	}
}

func TestConfidenceMonotonicAndClamped(t *testing.T) {
	prev := -1.0
	for dev := 0.0; dev <= 30; dev += 0.5 {
		c := confidence(dev, 10)
		if c < prev {
			t.Fatalf("confidence decreased at deviation %v: %v < %v", dev, c, prev)
		}
		if c < 0 || c > 100 {
			t.Fatalf("confidence out of range at deviation %v: %v", dev, c)
		}
		prev = c
	}

	if got := confidence(5, 10); got != 50 {
		t.Errorf("confidence(5, 10) = %v, want 50", got)
	}
	if got := confidence(10, 10); got != 100 {
		t.Errorf("confidence(10, 10) = %v, want 100", got)
	}
	if got := confidence(25, 10); got != 100 {
		t.Errorf("confidence(25, 10) = %v, want clamped 100", got)
	}
}
