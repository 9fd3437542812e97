package types

// Event represents a typed event emitted during state transitions.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// EventType satisfies the events.Event interface so engines can emit the
// canonical payload directly.
func (e *Event) EventType() string {
	if e == nil {
		return ""
	}
	return e.Type
}
