// Package events carries the simulator's verbose diagnostics stream.
// It is deliberately outside the core: spec.md treats "logging/verbose
// printing" as an external collaborator, and this bus is the seam the
// CLI and the admin API hook into.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType categorizes an emitted event.
type EventType string

const (
	MessageSent      EventType = "message_sent"
	MessageReceived  EventType = "message_received"
	MessageDropped   EventType = "message_dropped"
	NodeStateChanged EventType = "node_state_changed"
	VoteCast         EventType = "vote_cast"
	ConsensusReached EventType = "consensus_reached"
)

// Event is a single point on the diagnostics stream.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Listener is called synchronously for every emitted event.
type Listener func(Event)

const bufferCap = 200

// Bus fans events out to subscribers and keeps a bounded replay buffer
// for late attachers (the admin API's GET /events).
type Bus struct {
	mu        sync.RWMutex
	listeners []Listener
	buffer    []Event
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a listener invoked for every future event.
func (b *Bus) Subscribe(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// Emit publishes an event to the buffer and every subscriber.
func (b *Bus) Emit(typ EventType, data map[string]interface{}) {
	ev := Event{ID: uuid.NewString(), Type: typ, Timestamp: time.Now(), Data: data}

	b.mu.Lock()
	b.buffer = append(b.buffer, ev)
	if len(b.buffer) > bufferCap {
		b.buffer = b.buffer[len(b.buffer)-bufferCap:]
	}
	listeners := append([]Listener(nil), b.listeners...)
	b.mu.Unlock()

	for _, l := range listeners {
		l(ev)
	}
}

// Recent returns up to n of the most recently buffered events.
func (b *Bus) Recent(n int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n <= 0 || n > len(b.buffer) {
		n = len(b.buffer)
	}
	out := make([]Event, n)
	copy(out, b.buffer[len(b.buffer)-n:])
	return out
}
