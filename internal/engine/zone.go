package engine

import (
	"time"

	"github.com/wallsense-data/wallsense/internal/monitoring"
	"github.com/wallsense-data/wallsense/internal/wifi"
)

// Zone is an operator-configured physical area owning one or more device
// identifiers. Devices are matched against a network's BSSID first, then its
// SSID. Zones are static for the process lifetime.
type Zone struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Devices []string `json:"devices"`
}

// ZonePhase is the activation state of a zone.
type ZonePhase int

const (
	ZoneInactive ZonePhase = iota
	ZoneActive
	ZoneCooldown
)

func (p ZonePhase) String() string {
	switch p {
	case ZoneActive:
		return "active"
	case ZoneCooldown:
		return "cooldown"
	default:
		return "inactive"
	}
}

// MarshalJSON encodes the phase as its string name.
func (p ZonePhase) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

type zoneState struct {
	phase           ZonePhase
	lastMotionAt    time.Time
	cooldownEntered time.Time
}

// ZoneStatus is a read-only snapshot of one zone's state.
type ZoneStatus struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Devices      []string   `json:"devices"`
	Phase        ZonePhase  `json:"phase"`
	LastMotionAt *time.Time `json:"last_motion_at,omitempty"`
}

// ZoneResolver maps triggering networks to physical zones and applies the
// two-stage Active -> Cooldown -> Inactive decay. The hysteresis keeps a zone
// from oscillating when a signal hovers near the threshold: one firing holds
// the zone Active for the active-hold window, then Cooldown absorbs further
// quiet before the zone finally deactivates. A firing during Cooldown returns
// the zone straight to Active and resets both timers.
//
// All state transitions happen inside the tick via timestamp comparison;
// there are no timer goroutines.
type ZoneResolver struct {
	zones        []Zone
	deviceToZone map[string]int // device identifier -> index into zones
	states       []zoneState

	activeHold   time.Duration
	cooldownHold time.Duration
}

// NewZoneResolver builds a resolver over the static zone configuration.
// activeHold is the quiet interval before Active decays to Cooldown;
// cooldownHold is the further quiet interval before Cooldown decays to
// Inactive.
func NewZoneResolver(zones []Zone, activeHold, cooldownHold time.Duration) *ZoneResolver {
	r := &ZoneResolver{
		zones:        zones,
		deviceToZone: make(map[string]int),
		states:       make([]zoneState, len(zones)),
		activeHold:   activeHold,
		cooldownHold: cooldownHold,
	}
	for i, z := range zones {
		for _, dev := range z.Devices {
			r.deviceToZone[dev] = i
		}
	}
	return r
}

// Resolve turns this tick's candidates into finalized motion events and
// advances zone decay. It must be called every tick, even with no
// candidates, so that quiet intervals are observed at tick boundaries.
// Candidates whose network no zone owns still produce an event with an empty
// zone id. Two zones triggered in the same tick both activate; there is no
// tie-breaking.
func (r *ZoneResolver) Resolve(candidates []DetectionCandidate, now time.Time) []MotionEvent {
	r.decay(now)

	if len(candidates) == 0 {
		return nil
	}

	events := make([]MotionEvent, 0, len(candidates))
	for _, c := range candidates {
		ev := newMotionEvent(c)
		if idx, ok := r.lookup(c.Network); ok {
			ev.ZoneID = r.zones[idx].ID
			ev.ZoneName = r.zones[idx].Name
			r.activate(idx, c.At)
		}
		events = append(events, ev)
	}
	return events
}

func (r *ZoneResolver) lookup(id wifi.NetworkID) (int, bool) {
	if idx, ok := r.deviceToZone[id.BSSID]; ok {
		return idx, true
	}
	idx, ok := r.deviceToZone[id.SSID]
	return idx, ok
}

func (r *ZoneResolver) activate(idx int, at time.Time) {
	st := &r.states[idx]
	if st.phase != ZoneActive {
		monitoring.Logf("zone %s: %s -> active", r.zones[idx].ID, st.phase)
	}
	st.phase = ZoneActive
	st.lastMotionAt = at
	st.cooldownEntered = time.Time{}
}

func (r *ZoneResolver) decay(now time.Time) {
	for i := range r.states {
		st := &r.states[i]
		switch st.phase {
		case ZoneActive:
			if now.Sub(st.lastMotionAt) >= r.activeHold {
				st.phase = ZoneCooldown
				st.cooldownEntered = now
				monitoring.Logf("zone %s: active -> cooldown", r.zones[i].ID)
			}
		case ZoneCooldown:
			if now.Sub(st.cooldownEntered) >= r.cooldownHold {
				st.phase = ZoneInactive
				monitoring.Logf("zone %s: cooldown -> inactive", r.zones[i].ID)
			}
		}
	}
}

// Statuses returns a snapshot of every zone's current state.
func (r *ZoneResolver) Statuses() []ZoneStatus {
	out := make([]ZoneStatus, len(r.zones))
	for i, z := range r.zones {
		st := r.states[i]
		out[i] = ZoneStatus{
			ID:      z.ID,
			Name:    z.Name,
			Devices: z.Devices,
			Phase:   st.phase,
		}
		if !st.lastMotionAt.IsZero() {
			last := st.lastMotionAt
			out[i].LastMotionAt = &last
		}
	}
	return out
}

// Status returns the snapshot for one zone by id.
func (r *ZoneResolver) Status(zoneID string) (ZoneStatus, bool) {
	for _, s := range r.Statuses() {
		if s.ID == zoneID {
			return s, true
		}
	}
	return ZoneStatus{}, false
}
