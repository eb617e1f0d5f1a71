// Package config loads the operator configuration: detection tunables, zone
// definitions, and the settings for the outward-facing surfaces (HTTP,
// Telegram, MQTT). The file is read once before the pipeline starts;
// hot-reloading is out of scope.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wallsense-data/wallsense/internal/engine"
)

// Config is the root configuration schema. Fields use pointers so omitted
// keys fall back to defaults via the Get* methods, making partial configs
// safe.
type Config struct {
	// Detection params
	SampleInterval        *string  `json:"sample_interval,omitempty"` // duration string like "1s"
	FilterCutoffHz        *float64 `json:"filter_cutoff_hz,omitempty"`
	DetectionThreshold    *float64 `json:"detection_threshold,omitempty"` // dBm
	Sensitivity           *float64 `json:"sensitivity,omitempty"`
	MinCalibrationSamples *int     `json:"min_calibration_samples,omitempty"`
	HistorySize           *int     `json:"history_size,omitempty"`
	EventQueueSize        *int     `json:"event_queue_size,omitempty"`

	// Zone decay params
	ActiveHold   *string `json:"active_hold,omitempty"`   // duration string like "10s"
	CooldownHold *string `json:"cooldown_hold,omitempty"` // duration string like "30s"

	// Zone definitions
	Zones []ZoneConfig `json:"zones,omitempty"`

	// Notifier params (Telegram credentials come from the environment)
	Notify *NotifyConfig `json:"notify,omitempty"`

	// MQTT params
	MQTT *MQTTConfig `json:"mqtt,omitempty"`
}

// ZoneConfig is one operator-defined physical area.
type ZoneConfig struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Devices []string `json:"devices"`
}

// NotifyConfig configures the Telegram notifier rate limiting and quiet
// hours.
type NotifyConfig struct {
	Enabled         bool    `json:"enabled"`
	MaxPerMinute    *int    `json:"max_per_minute,omitempty"`
	Cooldown        *string `json:"cooldown,omitempty"`          // duration string like "30s"
	QuietHoursStart *int    `json:"quiet_hours_start,omitempty"` // hour of day, 0-23
	QuietHoursEnd   *int    `json:"quiet_hours_end,omitempty"`
}

// MQTTConfig configures the optional MQTT event publisher.
type MQTTConfig struct {
	Enabled     bool    `json:"enabled"`
	BrokerURL   string  `json:"broker_url"`
	ClientID    *string `json:"client_id,omitempty"`
	TopicPrefix *string `json:"topic_prefix,omitempty"`
}

// Load reads and validates a Config from a JSON file.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	for _, field := range []struct {
		name  string
		value *string
	}{
		{"sample_interval", c.SampleInterval},
		{"active_hold", c.ActiveHold},
		{"cooldown_hold", c.CooldownHold},
	} {
		if field.value != nil && *field.value != "" {
			if _, err := time.ParseDuration(*field.value); err != nil {
				return fmt.Errorf("invalid %s %q: %w", field.name, *field.value, err)
			}
		}
	}

	if c.Sensitivity != nil && *c.Sensitivity <= 0 {
		return fmt.Errorf("sensitivity must be positive, got %v", *c.Sensitivity)
	}
	if c.DetectionThreshold != nil && *c.DetectionThreshold <= 0 {
		return fmt.Errorf("detection_threshold must be positive, got %v", *c.DetectionThreshold)
	}

	seen := map[string]bool{}
	for _, z := range c.Zones {
		if z.ID == "" {
			return fmt.Errorf("zone with empty id")
		}
		if seen[z.ID] {
			return fmt.Errorf("duplicate zone id %q", z.ID)
		}
		seen[z.ID] = true
	}

	if c.Notify != nil {
		for _, h := range []*int{c.Notify.QuietHoursStart, c.Notify.QuietHoursEnd} {
			if h != nil && (*h < 0 || *h > 23) {
				return fmt.Errorf("quiet hours must be 0-23, got %d", *h)
			}
		}
	}
	if c.MQTT != nil && c.MQTT.Enabled && c.MQTT.BrokerURL == "" {
		return fmt.Errorf("mqtt enabled but broker_url is empty")
	}
	return nil
}

func parseDurationOr(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def
	}
	return d
}

// GetSampleInterval returns the sampling interval or the 1s default.
func (c *Config) GetSampleInterval() time.Duration {
	return parseDurationOr(c.SampleInterval, time.Second)
}

// GetSensitivity returns the initial sensitivity or the 1.0 default.
func (c *Config) GetSensitivity() float64 {
	if c.Sensitivity == nil {
		return 1.0
	}
	return *c.Sensitivity
}

// EngineParams maps the configuration onto engine tunables, applying
// defaults for anything omitted.
func (c *Config) EngineParams() engine.Params {
	p := engine.DefaultParams()

	p.SampleInterval = c.GetSampleInterval()
	if c.FilterCutoffHz != nil {
		p.FilterCutoffHz = *c.FilterCutoffHz
	}
	if c.DetectionThreshold != nil {
		p.DetectionThreshold = *c.DetectionThreshold
	}
	if c.MinCalibrationSamples != nil {
		p.MinCalibrationSamples = *c.MinCalibrationSamples
	}
	if c.HistorySize != nil {
		p.HistorySize = *c.HistorySize
	}
	if c.EventQueueSize != nil {
		p.EventQueueSize = *c.EventQueueSize
	}
	p.ActiveHold = parseDurationOr(c.ActiveHold, p.ActiveHold)
	p.CooldownHold = parseDurationOr(c.CooldownHold, p.CooldownHold)

	for _, z := range c.Zones {
		p.Zones = append(p.Zones, engine.Zone{ID: z.ID, Name: z.Name, Devices: z.Devices})
	}
	return p
}

// NotifyMaxPerMinute returns the notifier burst limit or the default of 5.
func (c *Config) NotifyMaxPerMinute() int {
	if c.Notify == nil || c.Notify.MaxPerMinute == nil {
		return 5
	}
	return *c.Notify.MaxPerMinute
}

// NotifyCooldown returns the minimum gap between notifications (default 30s).
func (c *Config) NotifyCooldown() time.Duration {
	if c.Notify == nil {
		return 30 * time.Second
	}
	return parseDurationOr(c.Notify.Cooldown, 30*time.Second)
}

// QuietHours returns the configured quiet window as (start, end, enabled).
func (c *Config) QuietHours() (int, int, bool) {
	if c.Notify == nil || c.Notify.QuietHoursStart == nil || c.Notify.QuietHoursEnd == nil {
		return 0, 0, false
	}
	return *c.Notify.QuietHoursStart, *c.Notify.QuietHoursEnd, true
}

// MQTTClientID returns the MQTT client id or the default.
func (c *Config) MQTTClientID() string {
	if c.MQTT == nil || c.MQTT.ClientID == nil {
		return "wallsense"
	}
	return *c.MQTT.ClientID
}

// MQTTTopicPrefix returns the topic prefix or the default.
func (c *Config) MQTTTopicPrefix() string {
	if c.MQTT == nil || c.MQTT.TopicPrefix == nil {
		return "wallsense"
	}
	return *c.MQTT.TopicPrefix
}
