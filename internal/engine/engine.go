// Package engine implements the motion detection and zone resolution
// pipeline: per-network low-pass filtering, calibrated baselines, deviation
// detection, zone activation with hysteresis, and fan-out of motion events to
// independent subscribers.
//
// The pipeline is passive and tick-driven: an external sample source calls
// Tick once per sampling interval with whatever networks are currently
// visible, and everything up to event publication executes synchronously
// inside that call. Only subscriber delivery is concurrent.
package engine

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wallsense-data/wallsense/internal/monitoring"
	"github.com/wallsense-data/wallsense/internal/timeutil"
	"github.com/wallsense-data/wallsense/internal/wifi"
)

// State is the lifecycle state of the engine.
type State int

const (
	StateStopped State = iota
	StateCalibrating
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateCalibrating:
		return "calibrating"
	case StateRunning:
		return "running"
	default:
		return "stopped"
	}
}

// MarshalJSON encodes the state as its string name.
func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Params are the operator tunables for the pipeline, loaded once before the
// pipeline starts.
type Params struct {
	// SampleInterval is the expected cadence of Tick calls.
	SampleInterval time.Duration

	// FilterCutoffHz is the low-pass cutoff frequency.
	FilterCutoffHz float64

	// DetectionThreshold is the base deviation threshold in dBm; sensitivity
	// divides it at evaluation time.
	DetectionThreshold float64

	// MinCalibrationSamples is the minimum per-network sample count for a
	// calibration session to publish a baseline for that network.
	MinCalibrationSamples int

	// ActiveHold is the quiet interval before an Active zone enters Cooldown.
	ActiveHold time.Duration

	// CooldownHold is the further quiet interval before a Cooldown zone
	// returns to Inactive.
	CooldownHold time.Duration

	// HistorySize bounds the per-network raw history kept for diagnostics.
	HistorySize int

	// EventQueueSize bounds each subscriber's undelivered event queue.
	EventQueueSize int

	// Zones is the static zone configuration.
	Zones []Zone
}

// DefaultParams returns the stock tuning: 1 Hz sampling, 0.1 Hz cutoff,
// 10 dBm threshold.
func DefaultParams() Params {
	return Params{
		SampleInterval:        time.Second,
		FilterCutoffHz:        0.1,
		DetectionThreshold:    10,
		MinCalibrationSamples: 10,
		ActiveHold:            10 * time.Second,
		CooldownHold:          30 * time.Second,
		HistorySize:           60,
		EventQueueSize:        64,
	}
}

// Validate checks the tunables are in their operating ranges.
func (p Params) Validate() error {
	if p.SampleInterval <= 0 {
		return fmt.Errorf("sample interval must be positive, got %v", p.SampleInterval)
	}
	if p.FilterCutoffHz <= 0 {
		return fmt.Errorf("filter cutoff must be positive, got %v", p.FilterCutoffHz)
	}
	if p.DetectionThreshold <= 0 {
		return fmt.Errorf("detection threshold must be positive, got %v", p.DetectionThreshold)
	}
	if p.MinCalibrationSamples < 1 {
		return fmt.Errorf("min calibration samples must be >= 1, got %d", p.MinCalibrationSamples)
	}
	if p.ActiveHold <= 0 || p.CooldownHold <= 0 {
		return fmt.Errorf("zone hold intervals must be positive")
	}
	seen := map[string]bool{}
	for _, z := range p.Zones {
		if z.ID == "" {
			return fmt.Errorf("zone with empty id")
		}
		if seen[z.ID] {
			return fmt.Errorf("duplicate zone id %q", z.ID)
		}
		seen[z.ID] = true
	}
	return nil
}

// CalibrationResult summarizes a completed calibration session.
type CalibrationResult struct {
	StartedAt  time.Time                   `json:"started_at"`
	FinishedAt time.Time                   `json:"finished_at"`
	Baselines  map[wifi.NetworkID]Baseline `json:"-"`
	Networks   int                         `json:"networks"`
}

// Engine owns the whole pipeline and serializes lifecycle commands against
// sample ticks with a single mutex. Sensitivity is the one tunable commands
// may change while ticks run; it lives in an atomic and is read once per
// tick, so a change takes effect on the next tick, never mid-tick.
type Engine struct {
	params Params
	clock  timeutil.Clock

	mu            sync.Mutex
	state         State
	resumeRunning bool
	session       *calibrationSession
	filters       *FilterBank
	zones         *ZoneResolver
	history       map[wifi.NetworkID]*historyRing
	startedAt     time.Time
	onCalibrated  func(CalibrationResult)

	store       *BaselineStore
	detector    *Detector
	broadcaster *Broadcaster

	sensitivityBits atomic.Uint64
	totalDetections atomic.Uint64
	tickCount       atomic.Uint64

	droppedSamples *atomic.Uint64
}

// New constructs a stopped engine from validated params.
func New(params Params, clock timeutil.Clock) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine params: %w", err)
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	store := NewBaselineStore()
	e := &Engine{
		params:         params,
		clock:          clock,
		filters:        NewFilterBank(params.FilterCutoffHz, 1/params.SampleInterval.Seconds()),
		zones:          NewZoneResolver(params.Zones, params.ActiveHold, params.CooldownHold),
		history:        make(map[wifi.NetworkID]*historyRing),
		store:          store,
		detector:       NewDetector(params.DetectionThreshold, store),
		broadcaster:    NewBroadcaster(params.EventQueueSize),
		droppedSamples: monitoring.Counter("samples_dropped"),
	}
	e.sensitivityBits.Store(math.Float64bits(1.0))
	e.startedAt = clock.Now()
	return e, nil
}

// Broadcaster exposes the event fan-out for subscriber registration.
func (e *Engine) Broadcaster() *Broadcaster { return e.broadcaster }

// Params returns the static tunables the engine was built with.
func (e *Engine) Params() Params { return e.params }

// SetCalibrationHook installs a callback invoked (synchronously, at the tick
// that completes a session) with every calibration result.
func (e *Engine) SetCalibrationHook(fn func(CalibrationResult)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onCalibrated = fn
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Sensitivity returns the current sensitivity multiplier.
func (e *Engine) Sensitivity() float64 {
	return math.Float64frombits(e.sensitivityBits.Load())
}

// SetSensitivity updates the sensitivity multiplier. Higher sensitivity
// lowers the effective detection threshold. Non-positive or non-finite
// values are rejected. Always permitted, in any state; takes effect on the
// next tick.
func (e *Engine) SetSensitivity(v float64) error {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidSensitivity, v)
	}
	e.sensitivityBits.Store(math.Float64bits(v))
	monitoring.Logf("sensitivity set to %.2f (effective threshold %.1f dBm)",
		v, e.params.DetectionThreshold/v)
	return nil
}

// Start begins routing ticks to the detection path. It fails with
// ErrNotCalibrated while no network has a baseline, and with
// ErrAlreadyCalibrating while a calibration session is active.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateCalibrating {
		return ErrAlreadyCalibrating
	}
	if e.store.Len() == 0 {
		return ErrNotCalibrated
	}
	if e.state != StateRunning {
		e.state = StateRunning
		monitoring.Logf("monitoring started (%d baselines)", e.store.Len())
	}
	return nil
}

// Stop halts the detection path; subsequent samples are discarded until
// restarted. Stopping during calibration abandons the session and leaves the
// prior baselines untouched.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateCalibrating {
		e.session = nil
		monitoring.Logf("calibration aborted; previous baselines retained")
	}
	if e.state != StateStopped {
		e.state = StateStopped
		monitoring.Logf("monitoring stopped")
	}
	e.resumeRunning = false
}

// Calibrate opens a time-boxed calibration session. While it is active,
// samples feed baseline accumulation instead of detection. The session
// completes at the first tick on or after its deadline; if the engine was
// running when calibration began, it resumes running on completion.
func (e *Engine) Calibrate(duration time.Duration) error {
	if duration <= 0 {
		return fmt.Errorf("calibration duration must be positive, got %v", duration)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateCalibrating {
		return ErrAlreadyCalibrating
	}
	e.resumeRunning = e.state == StateRunning
	e.session = newCalibrationSession(e.clock.Now(), duration, e.params.MinCalibrationSamples)
	e.state = StateCalibrating
	monitoring.Logf("calibration started (%v window, min %d samples/network)",
		duration, e.params.MinCalibrationSamples)
	return nil
}

// Tick feeds one batch of raw samples through the pipeline and returns the
// motion events produced. Batches may be empty; an empty batch still
// advances zone decay and calibration deadlines. Ticks are serialized: a
// slow tick delays, never overlaps, the next.
func (e *Engine) Tick(batch []wifi.RawSample) []MotionEvent {
	now := e.clock.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.tickCount.Add(1)
	valid := batch[:0:0]
	for _, s := range batch {
		if !s.Valid() {
			e.droppedSamples.Add(1)
			continue
		}
		valid = append(valid, s)
	}

	switch e.state {
	case StateStopped:
		return nil

	case StateCalibrating:
		if !e.session.expired(now) {
			for _, s := range valid {
				e.session.feed(s)
				e.recordHistory(s)
			}
			return nil
		}
		e.finishCalibrationLocked(now)
		if e.state != StateRunning {
			return nil
		}
		// The completing tick's batch flows straight into detection.
	}

	return e.detectLocked(valid, now)
}

// detectLocked runs the filter -> detector -> zone resolver path for one
// tick. Caller holds e.mu.
func (e *Engine) detectLocked(batch []wifi.RawSample, now time.Time) []MotionEvent {
	sensitivity := e.Sensitivity()

	var candidates []DetectionCandidate
	for _, s := range batch {
		filtered := e.filters.Update(s.Network, float64(s.RSSI))
		e.recordHistory(s)

		at := s.ObservedAt
		if at.IsZero() {
			at = now
		}
		if c, ok := e.detector.Evaluate(s.Network, s.RSSI, filtered, sensitivity, at); ok {
			candidates = append(candidates, c)
		}
	}

	events := e.zones.Resolve(candidates, now)
	for _, ev := range events {
		monitoring.Logf("motion: %s rssi=%d filtered=%.1f baseline=%.1f deviation=%.1f confidence=%.0f%% zone=%q",
			ev.Network, ev.RSSI, ev.Filtered, ev.BaselineMean, ev.Deviation, ev.Confidence, ev.ZoneID)
		e.broadcaster.Publish(ev)
	}
	e.totalDetections.Add(uint64(len(events)))
	return events
}

// finishCalibrationLocked publishes the session's baselines and restores the
// pre-calibration disposition. Caller holds e.mu.
func (e *Engine) finishCalibrationLocked(now time.Time) {
	session := e.session
	e.session = nil

	baselines := session.finish()
	e.store.Replace(baselines)
	// Filter state predates the new baselines; if the signal level shifted
	// during the window, the stale smoothed values would fire against the
	// fresh means on the first monitoring tick. Dropping the state re-seeds
	// each filter at the level actually observed next.
	e.filters.Reset()
	monitoring.Logf("calibration finished: %d networks calibrated", len(baselines))

	if e.resumeRunning && len(baselines) > 0 {
		e.state = StateRunning
	} else {
		if e.resumeRunning {
			monitoring.Logf("calibration produced no baselines; monitoring not resumed")
		}
		e.state = StateStopped
	}
	e.resumeRunning = false

	if e.onCalibrated != nil {
		e.onCalibrated(CalibrationResult{
			StartedAt:  session.startedAt,
			FinishedAt: now,
			Baselines:  baselines,
			Networks:   len(baselines),
		})
	}
}

func (e *Engine) recordHistory(s wifi.RawSample) {
	h, ok := e.history[s.Network]
	if !ok {
		h = newHistoryRing(e.params.HistorySize)
		e.history[s.Network] = h
	}
	h.add(float64(s.RSSI))
}

// Baselines returns a copy of the current baseline set.
func (e *Engine) Baselines() map[wifi.NetworkID]Baseline {
	return e.store.All()
}

// ZoneStatuses returns a snapshot of all zone states.
func (e *Engine) ZoneStatuses() []ZoneStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.zones.Statuses()
}

// ZoneStatus returns one zone's snapshot by id.
func (e *Engine) ZoneStatus(zoneID string) (ZoneStatus, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.zones.Status(zoneID)
}

// NetworkStats summarizes recent raw readings for every observed network,
// sorted by SSID then BSSID for stable output.
func (e *Engine) NetworkStats() []NetworkStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]NetworkStats, 0, len(e.history))
	for id, ring := range e.history {
		out = append(out, e.statLocked(id, ring))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Network.SSID != out[j].Network.SSID {
			return out[i].Network.SSID < out[j].Network.SSID
		}
		return out[i].Network.BSSID < out[j].Network.BSSID
	})
	return out
}

// NetworkStat summarizes one network, or ErrUnknownNetwork if it has never
// been observed.
func (e *Engine) NetworkStat(id wifi.NetworkID) (NetworkStats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ring, ok := e.history[id]
	if !ok {
		return NetworkStats{}, fmt.Errorf("%w: %s", ErrUnknownNetwork, id)
	}
	return e.statLocked(id, ring), nil
}

func (e *Engine) statLocked(id wifi.NetworkID, ring *historyRing) NetworkStats {
	var baseline *Baseline
	if b, ok := e.store.Get(id); ok {
		baseline = &b
	}
	return summarize(id, ring.values(), baseline)
}

// Status is the control-surface snapshot of the whole engine.
type Status struct {
	State              State             `json:"state"`
	Sensitivity        float64           `json:"sensitivity"`
	Threshold          float64           `json:"threshold"`
	EffectiveThreshold float64           `json:"effective_threshold"`
	BaselineCount      int               `json:"baseline_count"`
	NetworkCount       int               `json:"network_count"`
	TotalDetections    uint64            `json:"total_detections"`
	Ticks              uint64            `json:"ticks"`
	Subscribers        int               `json:"subscribers"`
	DroppedEvents      map[string]uint64 `json:"dropped_events"`
	DroppedSamples     uint64            `json:"dropped_samples"`
	CalibrationEndsAt  *time.Time        `json:"calibration_ends_at,omitempty"`
	UptimeSeconds      float64           `json:"uptime_seconds"`
	Zones              []ZoneStatus      `json:"zones"`
}

// Status returns the current snapshot. Safe to call concurrently with ticks.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	sens := e.Sensitivity()
	st := Status{
		State:              e.state,
		Sensitivity:        sens,
		Threshold:          e.params.DetectionThreshold,
		EffectiveThreshold: e.params.DetectionThreshold / sens,
		BaselineCount:      e.store.Len(),
		NetworkCount:       len(e.history),
		TotalDetections:    e.totalDetections.Load(),
		Ticks:              e.tickCount.Load(),
		Subscribers:        e.broadcaster.SubscriberCount(),
		DroppedEvents:      e.broadcaster.DropCounts(),
		DroppedSamples:     e.droppedSamples.Load(),
		UptimeSeconds:      e.clock.Since(e.startedAt).Seconds(),
		Zones:              e.zones.Statuses(),
	}
	if e.session != nil {
		ends := e.session.deadline()
		st.CalibrationEndsAt = &ends
	}
	return st
}

// Close shuts down the broadcaster and its delivery goroutines.
func (e *Engine) Close() {
	e.Stop()
	e.broadcaster.Close()
}
