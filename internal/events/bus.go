// Package events is the in-process refresh signal: services publish typed
// events after each applied transition and UI-facing subscribers react.
package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Kind names the event type.
type Kind string

const (
	KindStatsUpdated        Kind = "stats_updated"
	KindLevelUp             Kind = "level_up"
	KindAchievementUnlocked Kind = "achievement_unlocked"
	KindMoodLogged          Kind = "mood_logged"
	KindDataReset           Kind = "data_reset"
)

// Event carries ids and small payloads only; subscribers reload full state
// through the service when they need it.
type Event struct {
	Kind          Kind      `json:"kind"`
	UserID        string    `json:"userId"`
	Level         int       `json:"level,omitempty"`
	AchievementID string    `json:"achievementId,omitempty"`
	At            time.Time `json:"at"`
}

// ErrClosed is reported by HealthPing after Close.
var ErrClosed = errors.New("event bus closed")

// Bus fans events out to subscribers over buffered channels.
type Bus struct {
	mu      sync.RWMutex
	subs    map[uint64]chan Event
	nextID  uint64
	closed  bool
	dropped atomic.Uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]chan Event)}
}

// Publish delivers evt to every subscriber without blocking. A subscriber
// whose buffer is full misses the event. It returns false when at least one
// delivery was dropped.
func (b *Bus) Publish(evt Event) bool {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return false
	}
	ok := true
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
			ok = false
			b.dropped.Add(1)
		}
	}
	return ok
}

// Subscribe registers a subscriber with the given buffer size. The returned
// cancel func unregisters it and closes the channel; calling it twice is safe.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped because a buffer was full.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// HealthPing implements health.HealthPinger. A closed bus is unhealthy.
func (b *Bus) HealthPing(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

// Close closes every subscriber channel. Later publishes are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
