package events

// Event represents a structured state change emitted by the register.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, the audit
// journal, metrics).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// MultiEmitter fans a single emission out to every registered subscriber in
// order. Each successful mutation emits exactly once, so every subscriber
// observes the event exactly once.
type MultiEmitter struct {
	subscribers []Emitter
}

// NewMultiEmitter builds a fan-out emitter over the supplied subscribers,
// skipping nil entries.
func NewMultiEmitter(subs ...Emitter) *MultiEmitter {
	m := &MultiEmitter{}
	for _, sub := range subs {
		if sub != nil {
			m.subscribers = append(m.subscribers, sub)
		}
	}
	return m
}

// Subscribe appends a subscriber. Not safe for concurrent use with Emit;
// wiring happens before the register starts serving.
func (m *MultiEmitter) Subscribe(sub Emitter) {
	if sub != nil {
		m.subscribers = append(m.subscribers, sub)
	}
}

// Emit implements the Emitter interface.
func (m *MultiEmitter) Emit(evt Event) {
	if m == nil {
		return
	}
	for _, sub := range m.subscribers {
		sub.Emit(evt)
	}
}
