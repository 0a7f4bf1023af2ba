package dto

import "encoding/json"

// IdentitySignals carries the priority-ordered device signals of a request.
type IdentitySignals struct {
	Fingerprint string `json:"fingerprint,omitempty" example:"fp_9f2c41"`
	FallbackID  string `json:"fallback_id,omitempty" example:"ls_77ab1c"`
	SessionID   string `json:"session_id" binding:"required" example:"sess_4411"`
}

// IngestEventRequest represents a single event ingestion request
type IngestEventRequest struct {
	EventID    string          `json:"event_id" binding:"required" example:"evt_1a2b3c"`
	Signals    IdentitySignals `json:"identity_signals" binding:"required"`
	EventType  string          `json:"event_type" binding:"required" example:"page_view"`
	Payload    json.RawMessage `json:"payload,omitempty" swaggertype:"object"`
	OccurredAt int64           `json:"occurred_at" binding:"required" example:"1723475612"`
}

// IngestEventsBulkRequest represents a bulk ingestion request
type IngestEventsBulkRequest struct {
	Events []IngestEventRequest `json:"events" binding:"required,min=1,max=1000,dive"`
}

// ConsentPreferencesRequest mirrors the per-category consent booleans.
type ConsentPreferencesRequest struct {
	Necessary       bool `json:"necessary"`
	Analytics       bool `json:"analytics"`
	Marketing       bool `json:"marketing"`
	Personalization bool `json:"personalization"`
}

// RecordConsentRequest represents POST /consent
type RecordConsentRequest struct {
	Signals     IdentitySignals           `json:"identity_signals" binding:"required"`
	Preferences ConsentPreferencesRequest `json:"preferences" binding:"required"`
	Source      string                    `json:"source,omitempty" example:"cookie_banner"`
}

// GetFunnelRequest represents a funnel query
type GetFunnelRequest struct {
	From int64 `form:"from" binding:"required" example:"1723475612"`
	To   int64 `form:"to" binding:"required" example:"1723562012"`
}

// GetJourneyRequest represents a per-identity journey query. A zero window
// means full history.
type GetJourneyRequest struct {
	From int64 `form:"from" example:"1723475612"`
	To   int64 `form:"to" example:"1723562012"`
}

// TriggerAckRequest is the executor collaborator's acknowledgment.
type TriggerAckRequest struct {
	Outcome string `json:"outcome" binding:"required,oneof=executed failed skipped" example:"executed"`
	Reason  string `json:"reason,omitempty" example:"smtp timeout"`
}
