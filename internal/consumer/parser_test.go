package consumer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
)

func TestJSONInboundParser_Parse_Valid(t *testing.T) {
	parser := NewJSONInboundParser()

	body := []byte(`{
		"event_id": "evt_1",
		"identity_signals": {"fingerprint": "fp1", "session_id": "s1"},
		"event_type": "page_view",
		"payload": "{\"path\":\"/services\"}",
		"occurred_at": 1766702551
	}`)

	inbound, err := parser.Parse(body)

	assert.NoError(t, err)
	assert.Equal(t, "evt_1", inbound.EventID)
	assert.Equal(t, domain.EventPageView, inbound.Type)
	assert.Equal(t, "fp1", inbound.Signals.Fingerprint)
	assert.Equal(t, int64(1766702551), inbound.OccurredAt)
}

func TestJSONInboundParser_Parse_MalformedJSON(t *testing.T) {
	parser := NewJSONInboundParser()

	inbound, err := parser.Parse([]byte(`{"event_id": `))

	assert.Error(t, err)
	assert.Nil(t, inbound)
}

func TestJSONInboundParser_Parse_MissingEventID(t *testing.T) {
	parser := NewJSONInboundParser()

	inbound, err := parser.Parse([]byte(`{"event_type": "page_view", "occurred_at": 1}`))

	assert.Error(t, err)
	assert.Nil(t, inbound)
}

func TestJSONInboundParser_Parse_UnknownEventType(t *testing.T) {
	parser := NewJSONInboundParser()

	body := []byte(`{"event_id": "evt_1", "event_type": "mouse_move", "occurred_at": 1}`)
	inbound, err := parser.Parse(body)

	assert.ErrorIs(t, err, domain.ErrUnknownEventType)
	assert.Nil(t, inbound)
}

func TestJSONInboundParser_Parse_InvalidPayload(t *testing.T) {
	parser := NewJSONInboundParser()

	body := []byte(`{
		"event_id": "evt_1",
		"event_type": "scroll_milestone",
		"payload": "{\"path\":\"/p\",\"percent\":\"deep\"}",
		"occurred_at": 1
	}`)
	inbound, err := parser.Parse(body)

	assert.ErrorIs(t, err, domain.ErrMalformedPayload)
	assert.Nil(t, inbound)
}
