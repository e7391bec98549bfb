// Package events implements the fixed, typed domain-event bus described
// in SPEC_FULL.md §9 Design Notes: a small synchronous publish/subscribe
// registry covering exactly the event set the core emits. Handlers are
// isolated so one faulty subscriber cannot interrupt fan-out to others.
package events

import (
	"fmt"
	"sync"
)

// Type enumerates the fixed set of domain events the core publishes.
type Type string

const (
	BufferLevelChanged  Type = "BufferLevelChanged"
	PalletDelivered     Type = "PalletDelivered"
	PalletConsumed      Type = "PalletConsumed"
	PalletRequested     Type = "PalletRequested"
	ForkliftStateChanged Type = "ForkliftStateChanged"
	TaskStreamCompleted Type = "TaskStreamCompleted"
)

// Event is the envelope delivered to subscribers.
type Event struct {
	Type    Type
	Payload any
}

// Handler processes one event. It must not block indefinitely; the bus
// calls handlers synchronously and in registration order.
type Handler func(Event)

// Bus is a typed, synchronous, in-process publish/subscribe registry.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler
	onPanic  func(Type, any)
}

// New creates an empty bus. onPanic, if non-nil, is invoked (and the
// panic swallowed) whenever a handler panics, so that one broken
// subscriber never interrupts fan-out to its siblings.
func New(onPanic func(Type, any)) *Bus {
	return &Bus{handlers: make(map[Type][]Handler), onPanic: onPanic}
}

// Subscribe registers h to run whenever an event of type t is published.
func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

// Publish fans an event out to every subscriber of its type, synchronously.
func (b *Bus) Publish(t Type, payload any) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[t]...)
	b.mu.RUnlock()

	ev := Event{Type: t, Payload: payload}
	for _, h := range handlers {
		b.invoke(t, h, ev)
	}
}

func (b *Bus) invoke(t Type, h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			if b.onPanic != nil {
				b.onPanic(t, r)
			}
		}
	}()
	h(ev)
}

func (e Event) String() string {
	return fmt.Sprintf("%s(%v)", e.Type, e.Payload)
}
