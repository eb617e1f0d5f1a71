package engine

import (
	"sync/atomic"

	"github.com/wallsense-data/wallsense/internal/wifi"
)

// Baseline is the expected no-motion signal statistics for one network,
// established by calibration. Immutable once published.
type Baseline struct {
	Mean        float64 `json:"mean"`
	StdDev      float64 `json:"std_dev"`
	SampleCount int     `json:"sample_count"`
}

type baselineSnapshot map[wifi.NetworkID]Baseline

// BaselineStore holds the current baseline set behind an atomic snapshot
// swap: detection reads a consistent snapshot every tick and calibration
// completion replaces the whole set at once, so a half-updated baseline set
// is never observable.
type BaselineStore struct {
	snap atomic.Pointer[baselineSnapshot]
}

// NewBaselineStore returns an empty store.
func NewBaselineStore() *BaselineStore {
	s := &BaselineStore{}
	empty := baselineSnapshot{}
	s.snap.Store(&empty)
	return s
}

// Get returns the baseline for a network, if one was published.
func (s *BaselineStore) Get(id wifi.NetworkID) (Baseline, bool) {
	b, ok := (*s.snap.Load())[id]
	return b, ok
}

// Len returns the number of networks with a published baseline.
func (s *BaselineStore) Len() int {
	return len(*s.snap.Load())
}

// All returns a copy of the current baseline set.
func (s *BaselineStore) All() map[wifi.NetworkID]Baseline {
	cur := *s.snap.Load()
	out := make(map[wifi.NetworkID]Baseline, len(cur))
	for id, b := range cur {
		out[id] = b
	}
	return out
}

// Replace swaps in a new baseline set wholesale. Networks absent from the
// new set lose their baseline; a network that disappears and reappears must
// be recalibrated.
func (s *BaselineStore) Replace(baselines map[wifi.NetworkID]Baseline) {
	snap := make(baselineSnapshot, len(baselines))
	for id, b := range baselines {
		snap[id] = b
	}
	s.snap.Store(&snap)
}
