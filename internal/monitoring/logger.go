// Package monitoring provides process-wide diagnostics: a swappable logger
// and named counters for pipeline health (dropped samples, dropped events,
// detections). Counters are cheap enough to bump from the tick loop.
package monitoring

import (
	"log"
	"sort"
	"sync"
	"sync/atomic"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

var (
	countersMu sync.Mutex
	counters   = map[string]*atomic.Uint64{}
)

// Counter returns the named process-wide counter, creating it on first use.
// The returned pointer is stable for the process lifetime, so hot paths can
// resolve it once and bump it lock-free afterwards.
func Counter(name string) *atomic.Uint64 {
	countersMu.Lock()
	defer countersMu.Unlock()
	c, ok := counters[name]
	if !ok {
		c = &atomic.Uint64{}
		counters[name] = c
	}
	return c
}

// CounterValues returns a snapshot of all registered counters, keyed by name.
func CounterValues() map[string]uint64 {
	countersMu.Lock()
	defer countersMu.Unlock()
	out := make(map[string]uint64, len(counters))
	for name, c := range counters {
		out[name] = c.Load()
	}
	return out
}

// CounterNames returns the registered counter names in sorted order.
func CounterNames() []string {
	countersMu.Lock()
	defer countersMu.Unlock()
	names := make([]string, 0, len(counters))
	for name := range counters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
