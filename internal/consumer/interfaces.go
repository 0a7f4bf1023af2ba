package consumer

import (
	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
)

// MessageParser defines the interface for parsing raw message bytes into
// inbound events
type MessageParser interface {
	Parse(body []byte) (*domain.InboundEvent, error)
}
