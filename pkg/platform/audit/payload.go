package audit

import (
	"encoding/json"
	"fmt"
	"time"
)

// Payload is the JSON document relayed to the broker.
type Payload struct {
	ID            string            `json:"id"`
	Category      string            `json:"category"`
	Action        string            `json:"action"`
	Timestamp     string            `json:"timestamp"`
	AggregateType string            `json:"aggregate_type"`
	AggregateID   string            `json:"aggregate_id"`
	ActorID       string            `json:"actor_id,omitempty"`
	RunID         string            `json:"run_id,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
}

// Encode renders the event as an outbox entry.
func Encode(event Event) (OutboxEntry, error) {
	payload := Payload{
		ID:            event.ID.String(),
		Category:      string(event.Category()),
		Action:        string(event.Action),
		Timestamp:     event.Timestamp.UTC().Format(time.RFC3339Nano),
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		ActorID:       event.ActorID,
		RunID:         event.RunID,
		Attributes:    event.Attributes,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return OutboxEntry{}, fmt.Errorf("marshal audit payload: %w", err)
	}
	return OutboxEntry{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     string(event.Action),
		Payload:       raw,
		CreatedAt:     event.Timestamp,
	}, nil
}
