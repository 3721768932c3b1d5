package incident

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType is the severity class of a timeline event
type EventType string

const (
	EventError  EventType = "error"
	EventWarn   EventType = "warn"
	EventOK     EventType = "ok"
	EventInfo   EventType = "info"
	EventSystem EventType = "system"
)

// Event is one entry in the incident timeline. Events are immutable after
// creation.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Message   string    `json:"message"`
	Note      string    `json:"note,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates an event stamped at now. The identifier combines emission
// time with a random component; wall-clock time alone is not unique across
// rapid-fire emissions.
func NewEvent(eventType EventType, message, note string, now time.Time) Event {
	return Event{
		ID:        fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString()[:8]),
		Type:      eventType,
		Message:   message,
		Note:      note,
		Timestamp: now,
	}
}

// baselineEvents returns the fixed system entries seeded into a fresh log to
// establish context before any real telemetry arrives.
func baselineEvents(now time.Time) []Event {
	return []Event{
		NewEvent(EventSystem, "Console session started", "", now),
		NewEvent(EventSystem, "Telemetry polling armed", "waiting for first cycle", now),
		NewEvent(EventSystem, "Incident timeline initialized", "", now),
	}
}
