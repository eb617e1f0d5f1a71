package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/wallsense-data/wallsense/internal/engine"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wallsense.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `{
		"sample_interval": "2s",
		"filter_cutoff_hz": 0.05,
		"detection_threshold": 8,
		"sensitivity": 1.5,
		"min_calibration_samples": 20,
		"active_hold": "5s",
		"cooldown_hold": "15s",
		"zones": [
			{"id": "living", "name": "Living Room", "devices": ["AA:BB:CC:DD:EE:FF"]}
		],
		"notify": {"enabled": true, "max_per_minute": 3, "quiet_hours_start": 22, "quiet_hours_end": 7},
		"mqtt": {"enabled": true, "broker_url": "tcp://localhost:1883"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	p := cfg.EngineParams()
	if p.SampleInterval != 2*time.Second {
		t.Errorf("sample interval = %v", p.SampleInterval)
	}
	if p.FilterCutoffHz != 0.05 || p.DetectionThreshold != 8 || p.MinCalibrationSamples != 20 {
		t.Errorf("tunables not applied: %+v", p)
	}
	if p.ActiveHold != 5*time.Second || p.CooldownHold != 15*time.Second {
		t.Errorf("holds not applied: %v / %v", p.ActiveHold, p.CooldownHold)
	}

	wantZones := []engine.Zone{{ID: "living", Name: "Living Room", Devices: []string{"AA:BB:CC:DD:EE:FF"}}}
	if diff := cmp.Diff(wantZones, p.Zones); diff != "" {
		t.Errorf("zones mismatch (-want +got):\n%s", diff)
	}

	if cfg.GetSensitivity() != 1.5 {
		t.Errorf("sensitivity = %v", cfg.GetSensitivity())
	}
	if cfg.NotifyMaxPerMinute() != 3 {
		t.Errorf("max per minute = %d", cfg.NotifyMaxPerMinute())
	}
	start, end, ok := cfg.QuietHours()
	if !ok || start != 22 || end != 7 {
		t.Errorf("quiet hours = %d-%d (%v)", start, end, ok)
	}
}

func TestLoadPartialConfigUsesDefaults(t *testing.T) {
	path := writeConfig(t, `{"detection_threshold": 12}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	p := cfg.EngineParams()
	def := engine.DefaultParams()
	if p.SampleInterval != def.SampleInterval {
		t.Errorf("expected default sample interval, got %v", p.SampleInterval)
	}
	if p.DetectionThreshold != 12 {
		t.Errorf("threshold = %v", p.DetectionThreshold)
	}
	if cfg.GetSensitivity() != 1.0 {
		t.Errorf("expected default sensitivity, got %v", cfg.GetSensitivity())
	}
	if cfg.NotifyCooldown() != 30*time.Second {
		t.Errorf("expected default notify cooldown, got %v", cfg.NotifyCooldown())
	}
	if _, _, ok := cfg.QuietHours(); ok {
		t.Error("quiet hours should be disabled by default")
	}
}

func TestLoadRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"bad json", `{`},
		{"bad duration", `{"sample_interval": "fast"}`},
		{"negative sensitivity", `{"sensitivity": -1}`},
		{"zero threshold", `{"detection_threshold": 0}`},
		{"duplicate zone", `{"zones": [{"id": "a", "name": "A"}, {"id": "a", "name": "B"}]}`},
		{"empty zone id", `{"zones": [{"id": "", "name": "A"}]}`},
		{"mqtt without broker", `{"mqtt": {"enabled": true}}`},
		{"quiet hour out of range", `{"notify": {"enabled": true, "quiet_hours_start": 24, "quiet_hours_end": 7}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.content)
			if _, err := Load(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadRejectsNonJSONExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for non-.json extension")
	}
}
