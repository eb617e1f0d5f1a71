package engine

import (
	"math"
	"time"

	"github.com/wallsense-data/wallsense/internal/monitoring"
	"github.com/wallsense-data/wallsense/internal/wifi"
)

// welford accumulates a streaming mean and variance in one pass, without
// buffering raw history (Welford's online algorithm).
type welford struct {
	n    int
	mean float64
	m2   float64
}

func (w *welford) add(x float64) {
	w.n++
	delta := x - w.mean
	w.mean += delta / float64(w.n)
	w.m2 += delta * (x - w.mean)
}

func (w *welford) stdDev() float64 {
	if w.n < 2 {
		return 0
	}
	return math.Sqrt(w.m2 / float64(w.n-1))
}

// calibrationSession accumulates per-network running statistics for a
// time-boxed window. Exactly one session may be active at a time; the engine
// guards that invariant. The session terminates by duration elapse at a tick
// boundary, producing immutable baselines and discarding itself.
type calibrationSession struct {
	startedAt  time.Time
	duration   time.Duration
	minSamples int
	acc        map[wifi.NetworkID]*welford
}

func newCalibrationSession(startedAt time.Time, duration time.Duration, minSamples int) *calibrationSession {
	return &calibrationSession{
		startedAt:  startedAt,
		duration:   duration,
		minSamples: minSamples,
		acc:        make(map[wifi.NetworkID]*welford),
	}
}

func (s *calibrationSession) deadline() time.Time {
	return s.startedAt.Add(s.duration)
}

func (s *calibrationSession) expired(now time.Time) bool {
	return !now.Before(s.deadline())
}

func (s *calibrationSession) feed(sample wifi.RawSample) {
	w, ok := s.acc[sample.Network]
	if !ok {
		w = &welford{}
		s.acc[sample.Network] = w
	}
	w.add(float64(sample.RSSI))
}

// finish produces the baseline set for this session. Networks that
// accumulated fewer than the minimum sample count are excluded: they stay
// undetectable until recalibrated rather than detectable with a junk
// baseline.
func (s *calibrationSession) finish() map[wifi.NetworkID]Baseline {
	out := make(map[wifi.NetworkID]Baseline, len(s.acc))
	for id, w := range s.acc {
		if w.n < s.minSamples {
			monitoring.Logf("calibration: %s had %d samples (min %d), skipping", id, w.n, s.minSamples)
			continue
		}
		out[id] = Baseline{
			Mean:        w.mean,
			StdDev:      w.stdDev(),
			SampleCount: w.n,
		}
	}
	return out
}
