package state

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/kozaktomas/fuzzysearch/internal/constants"
)

// Handler observes state changes. Handlers run synchronously while the bus is
// locked and must not call Publish, Subscribe or Reset on the same bus.
// Unsubscribe is safe to call from anywhere, including the handler itself.
type Handler func(State)

// Bus owns the shared state and notifies subscribers after every publish.
// The zero value is not usable; create one with New.
type Bus struct {
	mu       sync.Mutex
	state    State
	nextID   uint64
	handlers []*subscriber
}

type subscriber struct {
	id      uint64
	handler Handler
	removed atomic.Bool
}

// Subscription is returned by Subscribe.
type Subscription struct {
	bus *Bus
	sub *subscriber
}

// New returns a bus holding the empty state.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers h and immediately calls it with the current state, so
// a new subscriber never misses the state that existed before it joined. The
// replay happens before any later publication reaches h.
func (b *Bus) Subscribe(h Handler) (Subscription, State) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.prune()
	b.nextID++
	sub := &subscriber{id: b.nextID, handler: h}
	b.handlers = append(b.handlers, sub)
	h(b.state)

	return Subscription{bus: b, sub: sub}, b.state
}

// Unsubscribe stops delivery to the subscription's handler. It never blocks
// on the bus: the subscriber is marked removed at once and dropped from the
// list the next time the bus lock is free. Calling it more than once is a
// no-op.
func (s Subscription) Unsubscribe() {
	if s.sub == nil || !s.sub.removed.CompareAndSwap(false, true) {
		return
	}
	if s.bus.mu.TryLock() {
		s.bus.prune()
		s.bus.mu.Unlock()
	}
}

// prune drops removed subscribers. The caller must hold b.mu.
func (b *Bus) prune() {
	b.handlers = slices.DeleteFunc(b.handlers, func(sub *subscriber) bool {
		return sub.removed.Load()
	})
}

// Publish applies reqs in order and then delivers the resulting state once to
// every subscriber, in subscription order. No subscriber observes an
// intermediate state between two requests of the same call.
func (b *Bus) Publish(reqs ...Request) State {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.prune()
	for _, r := range reqs {
		if r != nil {
			r.apply(&b.state)
		}
	}
	b.notify()
	return b.state
}

// Reset clears the state and notifies subscribers. Used at session start.
func (b *Bus) Reset() State {
	return b.Publish(ClearState{})
}

// Snapshot returns a copy of the current state.
func (b *Bus) Snapshot() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Len returns the number of active subscriptions.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prune()
	return len(b.handlers)
}

func (b *Bus) notify() {
	for _, sub := range b.handlers {
		if sub.removed.Load() {
			continue
		}
		sub.handler(b.state)
	}
}

// Watch subscribes to b and returns a channel carrying states until ctx is
// done. Every broadcast is queued in order, up to constants.WatchBuffer
// undelivered states; past that the oldest queued state is dropped, so a
// reader that stalls for that long still ends on the newest state.
func Watch(ctx context.Context, b *Bus) <-chan State {
	out := make(chan State)
	pending := make(chan State, constants.WatchBuffer)

	// enqueue runs under the bus lock, so it is the only sender.
	enqueue := func(s State) {
		select {
		case pending <- s:
		default:
			select {
			case <-pending:
			default:
			}
			pending <- s
		}
	}

	sub, _ := b.Subscribe(enqueue)

	go func() {
		defer close(out)
		defer sub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-pending:
				select {
				case out <- s:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
