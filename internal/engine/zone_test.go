package engine

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/wallsense-data/wallsense/internal/wifi"
)

func testZones() []Zone {
	return []Zone{
		{ID: "living", Name: "Living Room", Devices: []string{"AA:BB:CC:DD:EE:FF"}},
		{ID: "kitchen", Name: "Kitchen", Devices: []string{"Neighbour"}},
	}
}

func candidateFor(id wifi.NetworkID, at time.Time) DetectionCandidate {
	return DetectionCandidate{
		Network:    id,
		RSSI:       -40,
		Filtered:   -40,
		Baseline:   Baseline{Mean: -55, SampleCount: 30},
		Deviation:  15,
		Confidence: 100,
		At:         at,
	}
}

func phaseOf(t *testing.T, r *ZoneResolver, zoneID string) ZonePhase {
	t.Helper()
	st, ok := r.Status(zoneID)
	if !ok {
		t.Fatalf("zone %q not found", zoneID)
	}
	return st.Phase
}

func TestZoneLifecycle(t *testing.T) {
	// activeHold 10s, cooldownHold 30s, 1s ticks.
	r := NewZoneResolver(testZones(), 10*time.Second, 30*time.Second)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	living := wifi.NetworkID{SSID: "HomeNet", BSSID: "AA:BB:CC:DD:EE:FF"}

	if phaseOf(t, r, "living") != ZoneInactive {
		t.Fatal("zones must start inactive")
	}

	// One triggering tick activates.
	events := r.Resolve([]DetectionCandidate{candidateFor(living, now)}, now)
	if len(events) != 1 || events[0].ZoneID != "living" {
		t.Fatalf("unexpected events: %+v", events)
	}
	if phaseOf(t, r, "living") != ZoneActive {
		t.Fatal("expected active after trigger")
	}

	// Quiet ticks inside the active hold keep it active.
	for i := 1; i <= 9; i++ {
		r.Resolve(nil, now.Add(time.Duration(i)*time.Second))
	}
	if phaseOf(t, r, "living") != ZoneActive {
		t.Fatal("active hold not honored")
	}

	// At 10s quiet the zone decays to cooldown.
	r.Resolve(nil, now.Add(10*time.Second))
	if phaseOf(t, r, "living") != ZoneCooldown {
		t.Fatal("expected cooldown after active hold elapsed")
	}

	// Cooldown persists for its own hold, then the zone goes inactive.
	r.Resolve(nil, now.Add(39*time.Second))
	if phaseOf(t, r, "living") != ZoneCooldown {
		t.Fatal("cooldown ended early")
	}
	r.Resolve(nil, now.Add(40*time.Second))
	if phaseOf(t, r, "living") != ZoneInactive {
		t.Fatal("expected inactive after cooldown hold elapsed")
	}
}

func TestZoneTriggerDuringCooldownReactivates(t *testing.T) {
	r := NewZoneResolver(testZones(), 10*time.Second, 30*time.Second)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	living := wifi.NetworkID{SSID: "HomeNet", BSSID: "AA:BB:CC:DD:EE:FF"}

	r.Resolve([]DetectionCandidate{candidateFor(living, now)}, now)
	r.Resolve(nil, now.Add(10*time.Second)) // -> cooldown

	// A trigger during cooldown returns straight to active with fresh timers.
	reTrigger := now.Add(15 * time.Second)
	r.Resolve([]DetectionCandidate{candidateFor(living, reTrigger)}, reTrigger)
	if phaseOf(t, r, "living") != ZoneActive {
		t.Fatal("trigger during cooldown must reactivate")
	}

	// Timers were reset: 9s of quiet after the re-trigger stays active.
	r.Resolve(nil, reTrigger.Add(9*time.Second))
	if phaseOf(t, r, "living") != ZoneActive {
		t.Fatal("re-trigger did not reset active hold")
	}
	r.Resolve(nil, reTrigger.Add(10*time.Second))
	if phaseOf(t, r, "living") != ZoneCooldown {
		t.Fatal("expected cooldown after reset hold elapsed")
	}
}

func TestZoneUnownedNetworkStillYieldsEvent(t *testing.T) {
	r := NewZoneResolver(testZones(), 10*time.Second, 30*time.Second)
	now := time.Now()
	unknown := wifi.NetworkID{SSID: "SomeoneElse", BSSID: "99:88:77:66:55:44"}

	events := r.Resolve([]DetectionCandidate{candidateFor(unknown, now)}, now)
	if len(events) != 1 {
		t.Fatalf("expected 1 unzoned event, got %d", len(events))
	}
	if events[0].ZoneID != "" || events[0].ZoneName != "" {
		t.Errorf("expected empty zone, got %q", events[0].ZoneID)
	}
	for _, z := range r.Statuses() {
		if z.Phase != ZoneInactive {
			t.Errorf("zone %s activated by unowned network", z.ID)
		}
	}
}

func TestZoneTiesActivateBoth(t *testing.T) {
	r := NewZoneResolver(testZones(), 10*time.Second, 30*time.Second)
	now := time.Now()
	living := wifi.NetworkID{SSID: "HomeNet", BSSID: "AA:BB:CC:DD:EE:FF"}
	kitchen := wifi.NetworkID{SSID: "Neighbour", BSSID: "11:22:33:44:55:66"}

	events := r.Resolve([]DetectionCandidate{
		candidateFor(living, now),
		candidateFor(kitchen, now),
	}, now)

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if phaseOf(t, r, "living") != ZoneActive || phaseOf(t, r, "kitchen") != ZoneActive {
		t.Error("both zones must activate independently")
	}
}

func TestZoneMatchesSSIDFallback(t *testing.T) {
	r := NewZoneResolver(testZones(), 10*time.Second, 30*time.Second)
	now := time.Now()
	// The kitchen zone lists the SSID "Neighbour", not a BSSID.
	kitchen := wifi.NetworkID{SSID: "Neighbour", BSSID: "11:22:33:44:55:66"}

	events := r.Resolve([]DetectionCandidate{candidateFor(kitchen, now)}, now)
	if len(events) != 1 || events[0].ZoneID != "kitchen" {
		t.Fatalf("SSID fallback failed: %+v", events)
	}
}

func TestZoneStatusesSnapshot(t *testing.T) {
	r := NewZoneResolver(testZones(), 10*time.Second, 30*time.Second)

	want := []ZoneStatus{
		{ID: "living", Name: "Living Room", Devices: []string{"AA:BB:CC:DD:EE:FF"}, Phase: ZoneInactive},
		{ID: "kitchen", Name: "Kitchen", Devices: []string{"Neighbour"}, Phase: ZoneInactive},
	}
	if diff := cmp.Diff(want, r.Statuses()); diff != "" {
		t.Errorf("statuses mismatch (-want +got):\n%s", diff)
	}
}
