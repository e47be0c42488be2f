// Package eventbus is an append-only, bounded stream of domain.Event
// records with filtering by goal ID, neuron type and event type, and
// live subscription. Once appended
// an event is never modified; once the bus exceeds its retention bound
// the oldest events are evicted to make room.
package eventbus

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/axonforge/engine/pkg/domain"
)

// Bus is a concurrency-safe, bounded, append-only event stream.
type Bus struct {
	mu      sync.RWMutex
	events  []domain.Event
	maxSize int
	nextID  int64

	subMu sync.Mutex
	subs  map[int]chan domain.Event
	nextSub int
}

// New creates a Bus retaining at most maxSize events. maxSize <= 0
// defaults to 10000.
func New(maxSize int) *Bus {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &Bus{
		maxSize: maxSize,
		subs:    make(map[int]chan domain.Event),
	}
}

// Append records event, assigning EventID and Timestamp if unset, then
// evicts the oldest entry if the bus is at capacity, and fans the event
// out to subscribers (a subscriber with a full buffer misses it — the
// bus never blocks on a slow reader).
func (b *Bus) Append(event domain.Event) domain.Event {
	if event.EventID == 0 {
		event.EventID = atomic.AddInt64(&b.nextID, 1)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.Lock()
	if len(b.events) >= b.maxSize {
		b.events = b.events[1:]
	}
	b.events = append(b.events, event)
	b.mu.Unlock()

	b.broadcast(event)
	return event
}

func (b *Bus) broadcast(event domain.Event) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Query returns events matching filter, oldest first, honoring Limit (0
// means unlimited).
func (b *Bus) Query(filter domain.EventFilter) []domain.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	matched := make([]domain.Event, 0, len(b.events))
	for _, e := range b.events {
		if filter.GoalID != "" && e.GoalID != filter.GoalID {
			continue
		}
		if filter.NeuronType != "" && e.NeuronType != filter.NeuronType {
			continue
		}
		if filter.EventType != "" && e.EventType != filter.EventType {
			continue
		}
		matched = append(matched, e)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.Before(matched[j].Timestamp)
	})

	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[len(matched)-filter.Limit:]
	}
	return matched
}

// Len returns the current number of retained events.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}

// Clear empties the bus. Subscribers are unaffected; they simply stop
// receiving events recorded before the call.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

// Subscribe returns a channel of newly-appended events and a cancel
// function to unregister. The channel is buffered; a slow consumer
// misses events rather than stalling the bus. The channel closes when
// ctx is done or cancel is called.
func (b *Bus) Subscribe(ctx context.Context, buffer int) (<-chan domain.Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan domain.Event, buffer)

	b.subMu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = ch
	b.subMu.Unlock()

	cancel := func() {
		b.subMu.Lock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
		b.subMu.Unlock()
	}

	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}

	return ch, cancel
}
