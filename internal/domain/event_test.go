package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEventType_Known(t *testing.T) {
	tests := []string{
		"page_view",
		"scroll_milestone",
		"click",
		"rage_click",
		"form_focus",
		"form_abandon",
		"service_view",
		"price_check",
		"service_compare",
		"booking_start",
		"booking_abandon",
		"booking_complete",
		"exit_intent",
		"search",
	}

	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			parsed, err := ParseEventType(raw)
			assert.NoError(t, err)
			assert.Equal(t, EventType(raw), parsed)
		})
	}
}

func TestParseEventType_Unknown(t *testing.T) {
	_, err := ParseEventType("mouse_move")
	assert.ErrorIs(t, err, ErrUnknownEventType)

	_, err = ParseEventType("")
	assert.ErrorIs(t, err, ErrUnknownEventType)
}

func TestValidatePayload_Valid(t *testing.T) {
	tests := []struct {
		name      string
		eventType EventType
		payload   string
	}{
		{"page view", EventPageView, `{"path":"/services","title":"Services"}`},
		{"scroll", EventScrollMilestone, `{"path":"/services","percent":75}`},
		{"price check", EventPriceCheck, `{"service_id":"svc_1","price":49.90}`},
		{"compare", EventServiceCompare, `{"service_ids":["svc_1","svc_2"]}`},
		{"booking abandon", EventBookingAbandon, `{"service_id":"svc_1","step":"payment"}`},
		{"search", EventSearch, `{"query":"deep clean","results":12}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, ValidatePayload(tt.eventType, []byte(tt.payload)))
		})
	}
}

func TestValidatePayload_Malformed(t *testing.T) {
	err := ValidatePayload(EventPageView, []byte(`{"path":`))
	assert.ErrorIs(t, err, ErrMalformedPayload)

	err = ValidatePayload(EventScrollMilestone, []byte(`{"percent":"deep"}`))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestValidatePayload_EmptyPayloadAllowed(t *testing.T) {
	assert.NoError(t, ValidatePayload(EventExitIntent, nil))
}
