package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType enumerates the closed set of behavioral event variants.
// Unknown values are rejected at validation time, never at runtime.
type EventType string

const (
	EventPageView        EventType = "page_view"
	EventScrollMilestone EventType = "scroll_milestone"
	EventClick           EventType = "click"
	EventRageClick       EventType = "rage_click"
	EventFormFocus       EventType = "form_focus"
	EventFormAbandon     EventType = "form_abandon"
	EventServiceView     EventType = "service_view"
	EventPriceCheck      EventType = "price_check"
	EventServiceCompare  EventType = "service_compare"
	EventBookingStart    EventType = "booking_start"
	EventBookingAbandon  EventType = "booking_abandon"
	EventBookingComplete EventType = "booking_complete"
	EventExitIntent      EventType = "exit_intent"
	EventSearch          EventType = "search"
)

var eventTypes = map[EventType]struct{}{
	EventPageView:        {},
	EventScrollMilestone: {},
	EventClick:           {},
	EventRageClick:       {},
	EventFormFocus:       {},
	EventFormAbandon:     {},
	EventServiceView:     {},
	EventPriceCheck:      {},
	EventServiceCompare:  {},
	EventBookingStart:    {},
	EventBookingAbandon:  {},
	EventBookingComplete: {},
	EventExitIntent:      {},
	EventSearch:          {},
}

// ParseEventType validates a raw event type string against the closed enum.
func ParseEventType(s string) (EventType, error) {
	t := EventType(s)
	if _, ok := eventTypes[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEventType, s)
	}
	return t, nil
}

// Event represents one accepted behavioral occurrence. Events are immutable
// once accepted and stored append-only in ClickHouse.
type Event struct {
	EventID    string    `ch:"event_id"`
	IdentityID string    `ch:"identity_id"`
	SessionID  string    `ch:"session_id"`
	Type       EventType `ch:"event_type"`
	StageRank  uint8     `ch:"stage_rank"`
	Payload    string    `ch:"payload"`
	OccurredAt int64     `ch:"occurred_at"`
	ReceivedAt time.Time `ch:"received_at"`
	Version    uint64    `ch:"version"`
}

// Payload shapes per event variant. Each variant carries a statically
// defined payload; ValidatePayload decodes raw bytes into the matching shape.

type PageViewPayload struct {
	Path     string `json:"path"`
	Title    string `json:"title,omitempty"`
	Referrer string `json:"referrer,omitempty"`
}

type ScrollMilestonePayload struct {
	Path    string `json:"path"`
	Percent int    `json:"percent"`
}

type ClickPayload struct {
	Path    string `json:"path"`
	Element string `json:"element"`
}

type RageClickPayload struct {
	Path    string `json:"path"`
	Element string `json:"element"`
	Count   int    `json:"count"`
}

type FormPayload struct {
	FormID string `json:"form_id"`
	Field  string `json:"field,omitempty"`
}

type ServiceViewPayload struct {
	ServiceID string `json:"service_id"`
}

type PriceCheckPayload struct {
	ServiceID string  `json:"service_id"`
	Price     float64 `json:"price,omitempty"`
}

type ServiceComparePayload struct {
	ServiceIDs []string `json:"service_ids"`
}

type BookingPayload struct {
	BookingID string `json:"booking_id,omitempty"`
	ServiceID string `json:"service_id"`
	Step      string `json:"step,omitempty"`
}

type ExitIntentPayload struct {
	Path string `json:"path"`
}

type SearchPayload struct {
	Query   string `json:"query"`
	Results int    `json:"results"`
}

// ValidatePayload decodes raw payload bytes into the shape required by the
// event type. Unknown variants were already rejected by ParseEventType, so a
// decode failure here means a malformed payload.
func ValidatePayload(t EventType, raw []byte) error {
	if len(raw) == 0 {
		raw = []byte("{}")
	}

	var dst any
	switch t {
	case EventPageView:
		dst = &PageViewPayload{}
	case EventScrollMilestone:
		dst = &ScrollMilestonePayload{}
	case EventClick:
		dst = &ClickPayload{}
	case EventRageClick:
		dst = &RageClickPayload{}
	case EventFormFocus, EventFormAbandon:
		dst = &FormPayload{}
	case EventServiceView:
		dst = &ServiceViewPayload{}
	case EventPriceCheck:
		dst = &PriceCheckPayload{}
	case EventServiceCompare:
		dst = &ServiceComparePayload{}
	case EventBookingStart, EventBookingAbandon, EventBookingComplete:
		dst = &BookingPayload{}
	case EventExitIntent:
		dst = &ExitIntentPayload{}
	case EventSearch:
		dst = &SearchPayload{}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEventType, t)
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}
