package agent

import "time"

// EventType tags an Event
type EventType string

const (
	EventRetrieve   EventType = "retrieve"
	EventToken      EventType = "token"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventFinal      EventType = "final"
	EventError      EventType = "error"
)

// Event is one item of a request's progress stream
type Event struct {
	Type          EventType              `json:"type"`
	Data          map[string]interface{} `json:"data"`
	CorrelationID string                 `json:"correlation_id"`
	Timestamp     time.Time              `json:"timestamp"`
}

func newEvent(t EventType, correlationID string, data map[string]interface{}) Event {
	return Event{
		Type:          t,
		Data:          data,
		CorrelationID: correlationID,
		Timestamp:     time.Now().UTC(),
	}
}

// Terminal reports whether the event ends a successful or budget-exhausted stream
func (e Event) Terminal() bool {
	if e.Type == EventFinal {
		return true
	}
	_, budget := e.Data["max_iterations"]
	return e.Type == EventError && budget
}
