package consumer

import (
	"encoding/json"
	"fmt"

	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
)

// JSONInboundParser implements MessageParser for the gateway's JSON wire form
type JSONInboundParser struct{}

// NewJSONInboundParser creates a new JSON inbound event parser
func NewJSONInboundParser() *JSONInboundParser {
	return &JSONInboundParser{}
}

// Parse decodes and re-validates a queued message. The gateway validated the
// event once, but the queue is a trust boundary: anything malformed here is
// dropped, never retried.
func (p *JSONInboundParser) Parse(body []byte) (*domain.InboundEvent, error) {
	var inbound domain.InboundEvent
	if err := json.Unmarshal(body, &inbound); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message body: %w", err)
	}

	if inbound.EventID == "" {
		return nil, fmt.Errorf("message has no event_id")
	}
	if _, err := domain.ParseEventType(string(inbound.Type)); err != nil {
		return nil, err
	}
	if err := domain.ValidatePayload(inbound.Type, []byte(inbound.Payload)); err != nil {
		return nil, err
	}

	return &inbound, nil
}
