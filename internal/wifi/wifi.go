// Package wifi defines the sample-source side of the pipeline: network
// identity, raw RSSI samples, and scanners that produce them.
package wifi

import (
	"fmt"
	"regexp"
	"time"
)

// RSSI plausibility bounds in dBm. Readings outside this window are treated
// as scanner glitches and dropped before they reach the detection pipeline.
const (
	MinValidRSSI = -100
	MaxValidRSSI = 0
)

// NetworkID is the stable key for a wireless network: SSID plus BSSID.
// Two access points broadcasting the same SSID are distinct networks.
type NetworkID struct {
	SSID  string `json:"ssid"`
	BSSID string `json:"bssid"`
}

func (id NetworkID) String() string {
	return fmt.Sprintf("%s (%s)", id.SSID, id.BSSID)
}

// RawSample is one RSSI reading for one network at one instant.
type RawSample struct {
	Network    NetworkID `json:"network"`
	RSSI       int       `json:"rssi"`
	Channel    int       `json:"channel,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}

// Valid reports whether the sample is plausible enough to feed the pipeline.
func (s RawSample) Valid() bool {
	if s.Network.SSID == "" && s.Network.BSSID == "" {
		return false
	}
	return s.RSSI >= MinValidRSSI && s.RSSI <= MaxValidRSSI
}

var bssidRe = regexp.MustCompile(`^([0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$`)

// ValidBSSID reports whether s looks like a colon-separated MAC address.
func ValidBSSID(s string) bool {
	return bssidRe.MatchString(s)
}

// ValidSSID reports whether s is a usable network name. Hidden networks
// report an empty SSID and are skipped; the 802.11 limit is 32 bytes.
func ValidSSID(s string) bool {
	return s != "" && len(s) <= 32 && s != "--"
}

// PercentToDBm converts a 0-100 signal quality percentage (as reported by
// some nmcli versions) to an approximate dBm value: 0% maps to -100 dBm,
// 100% to -30 dBm.
func PercentToDBm(percent int) int {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return -100 + int(float64(percent)*0.7)
}
