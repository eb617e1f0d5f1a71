package engine

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/wallsense-data/wallsense/internal/monitoring"
)

// Subscriber consumes motion events. It runs on its own delivery goroutine,
// so a slow or blocking subscriber only backs up its own queue.
type Subscriber func(MotionEvent)

type subscription struct {
	id      uuid.UUID
	name    string
	queue   chan MotionEvent
	dropped atomic.Uint64
	done    chan struct{}
}

// Broadcaster fans motion events out to independent subscribers. Each
// subscriber owns a bounded queue; on overflow the oldest undelivered event
// for that subscriber is dropped and its drop counter incremented. Events
// are best-effort telemetry, not a durable log. Publish never blocks the
// tick loop.
type Broadcaster struct {
	mu        sync.RWMutex
	subs      map[uuid.UUID]*subscription
	queueSize int
	closed    bool
	wg        sync.WaitGroup

	published atomic.Uint64
}

// NewBroadcaster creates a broadcaster whose subscribers each buffer up to
// queueSize undelivered events.
func NewBroadcaster(queueSize int) *Broadcaster {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Broadcaster{
		subs:      make(map[uuid.UUID]*subscription),
		queueSize: queueSize,
	}
}

// Subscribe registers a named consumer and returns its id for Unsubscribe.
// Safe to call at any time, including concurrently with Publish.
func (b *Broadcaster) Subscribe(name string, fn Subscriber) uuid.UUID {
	sub := &subscription{
		id:    uuid.New(),
		name:  name,
		queue: make(chan MotionEvent, b.queueSize),
		done:  make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return sub.id
	}
	b.subs[sub.id] = sub
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case ev := <-sub.queue:
				fn(ev)
			case <-sub.done:
				// Drain what was queued before shutdown.
				for {
					select {
					case ev := <-sub.queue:
						fn(ev)
					default:
						return
					}
				}
			}
		}
	}()

	monitoring.Logf("broadcaster: subscriber %q registered (%s)", name, sub.id)
	return sub.id
}

// Unsubscribe removes a subscriber. Events already queued are still
// delivered before its goroutine exits.
func (b *Broadcaster) Unsubscribe(id uuid.UUID) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
	}
	b.mu.Unlock()

	if ok {
		close(sub.done)
		monitoring.Logf("broadcaster: subscriber %q removed", sub.name)
	}
}

// Publish hands the event to every subscriber queue without blocking. A full
// queue sheds its oldest event to make room, so a stalled consumer loses old
// events rather than stalling the pipeline or other consumers.
func (b *Broadcaster) Publish(ev MotionEvent) {
	b.published.Add(1)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		select {
		case sub.queue <- ev:
			continue
		default:
		}

		// Queue full: drop the oldest queued event, then retry once. The
		// second attempt can still lose the race against a concurrent
		// enqueue; count the event as dropped either way.
		select {
		case <-sub.queue:
		default:
		}
		sub.dropped.Add(1)
		monitoring.Counter("events_dropped").Add(1)
		select {
		case sub.queue <- ev:
		default:
		}
	}
}

// DropCounts reports per-subscriber dropped-event totals keyed by name.
func (b *Broadcaster) DropCounts() map[string]uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]uint64, len(b.subs))
	for _, sub := range b.subs {
		out[sub.name] += sub.dropped.Load()
	}
	return out
}

// Published returns the total number of events handed to Publish.
func (b *Broadcaster) Published() uint64 {
	return b.published.Load()
}

// SubscriberCount returns the number of registered subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close removes all subscribers and waits for their delivery goroutines to
// drain. The broadcaster accepts no new subscribers afterwards.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[uuid.UUID]*subscription)
	b.mu.Unlock()

	for _, sub := range subs {
		close(sub.done)
	}
	b.wg.Wait()
}
