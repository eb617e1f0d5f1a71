package engine

import (
	"math"

	"github.com/wallsense-data/wallsense/internal/wifi"
)

// biquadCoeffs are the normalized coefficients of a second-order Butterworth
// low pass, computed once at construction via the bilinear transform. A
// single-sample spike is attenuated while a sustained shift (the signature of
// physical occlusion) passes through after a short settling time.
type biquadCoeffs struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// newLowPassCoeffs derives coefficients for the given cutoff and sampling
// frequency (both Hz). The cutoff is clamped just below Nyquist to keep the
// prewarp finite.
func newLowPassCoeffs(cutoffHz, sampleHz float64) biquadCoeffs {
	nyquist := sampleHz / 2
	if cutoffHz >= nyquist {
		cutoffHz = nyquist * 0.99
	}

	k := math.Tan(math.Pi * cutoffHz / sampleHz)
	q := 1 / math.Sqrt2 // Butterworth damping
	norm := 1 / (1 + k/q + k*k)

	b0 := k * k * norm
	return biquadCoeffs{
		b0: b0,
		b1: 2 * b0,
		b2: b0,
		a1: 2 * (k*k - 1) * norm,
		a2: (1 - k/q + k*k) * norm,
	}
}

// biquad holds the per-network filter state: two delay registers in Direct
// Form II transposed. Never shared across networks.
type biquad struct {
	coeffs biquadCoeffs
	z1, z2 float64
}

// newBiquad seeds the delay registers at the steady-state response to the
// first observed value, so a network's first outputs track its real level
// instead of decaying in from zero.
func newBiquad(c biquadCoeffs, seed float64) *biquad {
	return &biquad{
		coeffs: c,
		z1:     (1 - c.b0) * seed,
		z2:     (c.b2 - c.a2) * seed,
	}
}

func (f *biquad) update(x float64) float64 {
	c := f.coeffs
	y := c.b0*x + f.z1
	f.z1 = c.b1*x - c.a1*y + f.z2
	f.z2 = c.b2*x - c.a2*y
	return y
}

// FilterBank maintains one low-pass filter per known network. Update is O(1)
// and deterministic given the network's prior samples; networks are fully
// independent of one another.
type FilterBank struct {
	coeffs biquadCoeffs
	states map[wifi.NetworkID]*biquad
}

// NewFilterBank constructs a bank whose filters share coefficients derived
// from the cutoff frequency and sampling rate.
func NewFilterBank(cutoffHz, sampleHz float64) *FilterBank {
	return &FilterBank{
		coeffs: newLowPassCoeffs(cutoffHz, sampleHz),
		states: make(map[wifi.NetworkID]*biquad),
	}
}

// Update feeds one raw reading through the network's filter and returns the
// smoothed estimate. A network never seen before gets fresh state seeded
// with this first value.
func (fb *FilterBank) Update(id wifi.NetworkID, raw float64) float64 {
	state, ok := fb.states[id]
	if !ok {
		state = newBiquad(fb.coeffs, raw)
		fb.states[id] = state
	}
	return state.update(raw)
}

// Known reports whether the bank has state for the given network.
func (fb *FilterBank) Known(id wifi.NetworkID) bool {
	_, ok := fb.states[id]
	return ok
}

// Len returns the number of tracked networks.
func (fb *FilterBank) Len() int { return len(fb.states) }

// Reset drops all per-network state.
func (fb *FilterBank) Reset() {
	fb.states = make(map[wifi.NetworkID]*biquad)
}
