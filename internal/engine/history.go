package engine

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/wallsense-data/wallsense/internal/wifi"
)

// historyRing keeps the most recent raw readings for one network. It exists
// only for diagnostics (the /api/networks surface); detection itself needs
// no buffered history.
type historyRing struct {
	buf  []float64
	next int
	full bool
}

func newHistoryRing(size int) *historyRing {
	if size < 1 {
		size = 1
	}
	return &historyRing{buf: make([]float64, size)}
}

func (h *historyRing) add(x float64) {
	h.buf[h.next] = x
	h.next++
	if h.next == len(h.buf) {
		h.next = 0
		h.full = true
	}
}

// values returns the buffered readings, oldest first.
func (h *historyRing) values() []float64 {
	if !h.full {
		out := make([]float64, h.next)
		copy(out, h.buf[:h.next])
		return out
	}
	out := make([]float64, 0, len(h.buf))
	out = append(out, h.buf[h.next:]...)
	out = append(out, h.buf[:h.next]...)
	return out
}

// NetworkStats summarizes a network's recent raw readings.
type NetworkStats struct {
	Network     wifi.NetworkID `json:"network"`
	SampleCount int            `json:"sample_count"`
	Mean        float64        `json:"mean"`
	StdDev      float64        `json:"std_dev"`
	Min         float64        `json:"min"`
	Max         float64        `json:"max"`
	Median      float64        `json:"median"`
	Latest      float64        `json:"latest"`
	Baseline    *Baseline      `json:"baseline,omitempty"`
}

func summarize(id wifi.NetworkID, values []float64, baseline *Baseline) NetworkStats {
	ns := NetworkStats{Network: id, SampleCount: len(values), Baseline: baseline}
	if len(values) == 0 {
		return ns
	}

	ns.Latest = values[len(values)-1]
	ns.Mean = stat.Mean(values, nil)
	if len(values) > 1 {
		ns.StdDev = stat.StdDev(values, nil)
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	ns.Min = sorted[0]
	ns.Max = sorted[len(sorted)-1]
	ns.Median = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	return ns
}
