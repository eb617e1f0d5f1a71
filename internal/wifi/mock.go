package wifi

import (
	"context"
	"sync"
	"time"
)

// ScriptedScanner replays a fixed sequence of sample batches. Used by tests
// and by the offline replay tool; once the script is exhausted it keeps
// returning the final batch (a stable environment).
type ScriptedScanner struct {
	mu      sync.Mutex
	batches [][]RawSample
	pos     int
}

// NewScriptedScanner returns a scanner that yields the given batches in order.
func NewScriptedScanner(batches ...[]RawSample) *ScriptedScanner {
	return &ScriptedScanner{batches: batches}
}

// Scan returns the next scripted batch.
func (s *ScriptedScanner) Scan(ctx context.Context) ([]RawSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.batches) == 0 {
		return nil, nil
	}
	batch := s.batches[s.pos]
	if s.pos < len(s.batches)-1 {
		s.pos++
	}
	return batch, nil
}

// Batch is a convenience for building a scripted batch where every network
// reports at the same instant.
func Batch(at time.Time, readings map[NetworkID]int) []RawSample {
	samples := make([]RawSample, 0, len(readings))
	for id, rssi := range readings {
		samples = append(samples, RawSample{Network: id, RSSI: rssi, ObservedAt: at})
	}
	return samples
}
