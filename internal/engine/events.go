package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/wallsense-data/wallsense/internal/wifi"
)

// DetectionCandidate is a per-network trigger produced by the deviation
// detector, before zone resolution. Multiple networks may produce candidates
// in the same tick; no cross-network suppression happens at this layer.
type DetectionCandidate struct {
	Network    wifi.NetworkID
	RSSI       int
	Filtered   float64
	Baseline   Baseline
	Deviation  float64
	Confidence float64
	At         time.Time
}

// MotionEvent is the finalized, immutable record fanned out to subscribers.
// ZoneID is empty for networks no configured zone owns; the event is still
// published as a global, unzoned detection.
type MotionEvent struct {
	ID           string         `json:"id"`
	Network      wifi.NetworkID `json:"network"`
	RSSI         int            `json:"rssi"`
	Filtered     float64        `json:"filtered"`
	BaselineMean float64        `json:"baseline_mean"`
	Deviation    float64        `json:"deviation"`
	Confidence   float64        `json:"confidence"`
	ZoneID       string         `json:"zone_id,omitempty"`
	ZoneName     string         `json:"zone_name,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

func newMotionEvent(c DetectionCandidate) MotionEvent {
	return MotionEvent{
		ID:           uuid.NewString(),
		Network:      c.Network,
		RSSI:         c.RSSI,
		Filtered:     c.Filtered,
		BaselineMean: c.Baseline.Mean,
		Deviation:    c.Deviation,
		Confidence:   c.Confidence,
		Timestamp:    c.At,
	}
}
