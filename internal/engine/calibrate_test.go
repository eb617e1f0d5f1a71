package engine

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wallsense-data/wallsense/internal/wifi"
)

func TestWelfordMatchesDirectComputation(t *testing.T) {
	values := []float64{-55, -57, -54, -56, -55, -53, -58, -55}

	var w welford
	for _, v := range values {
		w.add(v)
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var m2 float64
	for _, v := range values {
		m2 += (v - mean) * (v - mean)
	}
	stdDev := math.Sqrt(m2 / float64(len(values)-1))

	assert.InDelta(t, mean, w.mean, 1e-9)
	assert.InDelta(t, stdDev, w.stdDev(), 1e-9)
	assert.Equal(t, len(values), w.n)
}

func TestWelfordFewSamples(t *testing.T) {
	var w welford
	assert.Zero(t, w.stdDev())
	w.add(-55)
	assert.Zero(t, w.stdDev(), "single sample has no spread")
	assert.Equal(t, -55.0, w.mean)
}

func TestCalibrationSessionExcludesUnderSampled(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	session := newCalibrationSession(start, 30*time.Second, 10)

	stable := wifi.NetworkID{SSID: "HomeNet", BSSID: "AA:BB:CC:DD:EE:FF"}
	flaky := wifi.NetworkID{SSID: "Flaky", BSSID: "11:22:33:44:55:66"}

	for i := 0; i < 30; i++ {
		session.feed(wifi.RawSample{Network: stable, RSSI: -55, ObservedAt: start.Add(time.Duration(i) * time.Second)})
	}
	for i := 0; i < 4; i++ {
		session.feed(wifi.RawSample{Network: flaky, RSSI: -70})
	}

	baselines := session.finish()
	require.Len(t, baselines, 1)

	b, ok := baselines[stable]
	require.True(t, ok, "stable network must be calibrated")
	assert.InDelta(t, -55, b.Mean, 1e-9)
	assert.Zero(t, b.StdDev)
	assert.Equal(t, 30, b.SampleCount)

	_, ok = baselines[flaky]
	assert.False(t, ok, "under-sampled network must not publish a baseline")
}

func TestCalibrationSessionExpiry(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	session := newCalibrationSession(start, 30*time.Second, 10)

	assert.False(t, session.expired(start))
	assert.False(t, session.expired(start.Add(29*time.Second)))
	assert.True(t, session.expired(start.Add(30*time.Second)))
	assert.True(t, session.expired(start.Add(time.Hour)))
}

func TestBaselineStoreReplaceDropsStale(t *testing.T) {
	a := wifi.NetworkID{SSID: "A", BSSID: "AA:AA:AA:AA:AA:AA"}
	b := wifi.NetworkID{SSID: "B", BSSID: "BB:BB:BB:BB:BB:BB"}

	store := NewBaselineStore()
	require.Zero(t, store.Len())

	store.Replace(map[wifi.NetworkID]Baseline{
		a: {Mean: -55, SampleCount: 30},
		b: {Mean: -70, SampleCount: 30},
	})
	require.Equal(t, 2, store.Len())

	// A second session that only saw network B drops A's baseline.
	store.Replace(map[wifi.NetworkID]Baseline{
		b: {Mean: -68, SampleCount: 25},
	})
	assert.Equal(t, 1, store.Len())

	_, ok := store.Get(a)
	assert.False(t, ok, "stale baseline must be dropped")

	got, ok := store.Get(b)
	require.True(t, ok)
	assert.Equal(t, -68.0, got.Mean)
}

func TestBaselineStoreAllReturnsCopy(t *testing.T) {
	a := wifi.NetworkID{SSID: "A", BSSID: "AA:AA:AA:AA:AA:AA"}
	store := NewBaselineStore()
	store.Replace(map[wifi.NetworkID]Baseline{a: {Mean: -55}})

	all := store.All()
	all[a] = Baseline{Mean: 0}

	got, _ := store.Get(a)
	assert.Equal(t, -55.0, got.Mean, "mutating the copy must not affect the store")
}
