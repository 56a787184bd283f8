package events

// Event represents a structured state change emitted by the protocol.
type Event interface {
	EventType() string
	Attributes() map[string]string
}

// Emitter broadcasts events to downstream subscribers (RPC, indexers,
// webhooks). Emission is fire-and-forget: no core logic depends on it.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies Emitter while discarding all events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}
