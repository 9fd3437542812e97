package events

import "rentchain/core/types"

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies Emitter while discarding all events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Payload extracts the wire representation of an event, if it has one.
func Payload(evt Event) *types.Event {
	switch v := evt.(type) {
	case *types.Event:
		return v
	case interface{ Event() *types.Event }:
		return v.Event()
	default:
		return nil
	}
}
