package notifications

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// LifecycleEvent is the wire format for booking and waitlist lifecycle
// messages on the notifications topic.
type LifecycleEvent struct {
	ID         uuid.UUID              `json:"id"`
	Type       string                 `json:"type"`
	Source     string                 `json:"source"`
	OccurredAt time.Time              `json:"occurred_at"`
	Payload    map[string]interface{} `json:"payload"`
}

// NewLifecycleEvent builds an event envelope
func NewLifecycleEvent(source, eventType string, payload map[string]interface{}) *LifecycleEvent {
	return &LifecycleEvent{
		ID:         uuid.New(),
		Type:       eventType,
		Source:     source,
		OccurredAt: time.Now(),
		Payload:    payload,
	}
}

// ToJSON serializes the event
func (e *LifecycleEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// GetPartitionKey routes all messages for one event to the same partition
// so per-event ordering survives.
func (e *LifecycleEvent) GetPartitionKey() string {
	if eventID, ok := e.Payload["event_id"].(string); ok && eventID != "" {
		return eventID
	}
	return e.ID.String()
}
