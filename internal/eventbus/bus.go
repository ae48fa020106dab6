// Package eventbus is an in-process fanout of relay lifecycle events.
//
// Publish never blocks: subscribers own a buffered channel and a slow
// subscriber drops events instead of stalling the poll loop.
package eventbus

import (
	"sync"
	"time"
)

// Event types published by the relay.
const (
	PollNew       = "poll.new"        // Data: PollResult
	PollFailed    = "poll.failed"     // Data: PollResult
	CycleDone     = "cycle.done"      // Data: CycleResult
	DeliverySent  = "delivery.sent"   // Data: DeliveryResult
	DeliveryError = "delivery.failed" // Data: DeliveryResult
)

type Event struct {
	Type string
	Time time.Time
	Data any
}

type PollResult struct {
	Channel string
	New     int
	Err     error
}

type CycleResult struct {
	Channels int
	Failed   int
	Took     time.Duration
}

type DeliveryResult struct {
	MessageID string
	Sink      string
	Err       error
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

func New() Bus {
	return &memBus{subs: map[uint64]chan Event{}}
}

// Publish is a nil-safe shorthand used by components with an optional bus.
func Publish(b Bus, typ string, data any) {
	if b == nil {
		return
	}
	b.Publish(Event{Type: typ, Time: time.Now(), Data: data})
}

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	next uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// The read lock is held across sends so unsubscribe cannot close a
	// channel mid-send; sends never block.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	b.next++
	id := b.next
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
}
