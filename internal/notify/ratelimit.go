package notify

import (
	"sync"
	"time"

	"github.com/wallsense-data/wallsense/internal/timeutil"
)

// RateLimiter caps notification volume two ways: a sliding one-minute window
// bounds the send rate, and hitting that bound trips a cooldown that stays
// closed until it elapses. The cooldown stops a burst of motion from turning
// into a phone full of alerts.
type RateLimiter struct {
	mu           sync.Mutex
	clock        timeutil.Clock
	maxPerMinute int
	cooldown     time.Duration

	sent          []time.Time
	cooldownUntil time.Time
}

func NewRateLimiter(maxPerMinute int, cooldown time.Duration, clock timeutil.Clock) *RateLimiter {
	if maxPerMinute < 1 {
		maxPerMinute = 1
	}
	return &RateLimiter{
		clock:        clock,
		maxPerMinute: maxPerMinute,
		cooldown:     cooldown,
	}
}

// Allow reports whether a notification may be sent now. Crossing the
// per-minute limit starts the cooldown as a side effect.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()

	kept := rl.sent[:0]
	for _, ts := range rl.sent {
		if now.Sub(ts) < time.Minute {
			kept = append(kept, ts)
		}
	}
	rl.sent = kept

	if !rl.cooldownUntil.IsZero() {
		if now.Before(rl.cooldownUntil) {
			return false
		}
		rl.cooldownUntil = time.Time{}
	}

	if len(rl.sent) >= rl.maxPerMinute {
		rl.cooldownUntil = now.Add(rl.cooldown)
		return false
	}
	return true
}

// Record registers a sent notification against the sliding window.
func (rl *RateLimiter) Record() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.sent = append(rl.sent, rl.clock.Now())
}
