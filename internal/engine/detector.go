package engine

import (
	"math"
	"time"

	"github.com/wallsense-data/wallsense/internal/wifi"
)

// Detector compares filtered readings against calibrated baselines. It holds
// no per-network state of its own; all of its inputs arrive per call, which
// keeps evaluation deterministic and reproducible.
type Detector struct {
	threshold float64
	store     *BaselineStore
}

// NewDetector returns a detector using the given base threshold in dBm.
func NewDetector(threshold float64, store *BaselineStore) *Detector {
	return &Detector{threshold: threshold, store: store}
}

// Evaluate decides whether one filtered reading constitutes a motion
// candidate. Networks without a baseline are skipped (fail-open: they simply
// do not participate in detection). Higher sensitivity lowers the effective
// threshold. The caller guarantees sensitivity > 0.
func (d *Detector) Evaluate(id wifi.NetworkID, rssi int, filtered, sensitivity float64, at time.Time) (DetectionCandidate, bool) {
	baseline, ok := d.store.Get(id)
	if !ok {
		return DetectionCandidate{}, false
	}

	effective := d.threshold / sensitivity
	deviation := math.Abs(filtered - baseline.Mean)
	if deviation <= effective {
		return DetectionCandidate{}, false
	}

	return DetectionCandidate{
		Network:    id,
		RSSI:       rssi,
		Filtered:   filtered,
		Baseline:   baseline,
		Deviation:  deviation,
		Confidence: confidence(deviation, effective),
		At:         at,
	}, true
}

// confidence maps deviation magnitude to a saturating 0-100 score relative
// to the effective threshold. Monotonic in deviation and clamped at 100.
func confidence(deviation, threshold float64) float64 {
	if threshold <= 0 {
		return 100
	}
	return math.Min(100, deviation/threshold*100)
}
