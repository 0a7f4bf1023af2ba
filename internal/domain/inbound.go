package domain

import "time"

// InboundEvent is the wire form of an accepted event between the gateway and
// the pipeline: validated and deduplicated, but not yet identity-resolved.
type InboundEvent struct {
	EventID    string          `json:"event_id"`
	Signals    IdentitySignals `json:"identity_signals"`
	Type       EventType       `json:"event_type"`
	Payload    string          `json:"payload,omitempty"`
	OccurredAt int64           `json:"occurred_at"`
	ReceivedAt time.Time       `json:"received_at"`
}
