package dto

import (
	"time"

	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error" example:"validation_error"`
	Message string `json:"message,omitempty" example:"event_type is required"`
}

// Ingest statuses returned to event producers.
const (
	StatusAccepted     = "accepted"
	StatusDeduplicated = "deduplicated"
	StatusRejected     = "rejected"
	StatusShed         = "shed"
)

// IngestEventResponse represents the outcome of a single ingestion
type IngestEventResponse struct {
	EventID       string `json:"event_id" example:"evt_1a2b3c"`
	Status        string `json:"status" example:"accepted"`
	Reason        string `json:"reason,omitempty" example:"unknown event type"`
	RetryAfterSec int    `json:"retry_after,omitempty" example:"5"`
}

// IngestBulkResponse represents a bulk ingestion outcome
type IngestBulkResponse struct {
	Accepted     int                   `json:"accepted" example:"5"`
	Deduplicated int                   `json:"deduplicated" example:"1"`
	Rejected     int                   `json:"rejected" example:"0"`
	Shed         int                   `json:"shed" example:"0"`
	Results      []IngestEventResponse `json:"results"`
}

// ConsentResponse represents a consent record
type ConsentResponse struct {
	IdentityID  string                    `json:"identity_id"`
	Preferences ConsentPreferencesRequest `json:"preferences"`
	Version     int                       `json:"version"`
	RecordedAt  time.Time                 `json:"recorded_at"`
	Revoked     bool                      `json:"revoked"`
}

// ProfileResponse is a read-only profile snapshot. StaleForSec is non-zero
// when the pipeline is degraded and the snapshot may lag behind events.
type ProfileResponse struct {
	Profile     domain.BehaviorProfile `json:"profile"`
	StaleForSec int64                  `json:"stale_for_sec,omitempty"`
}

// FunnelResponse wraps a population funnel snapshot.
type FunnelResponse struct {
	Funnel domain.FunnelSnapshot `json:"funnel"`
}

// JourneyResponse wraps one identity's mapped journey.
type JourneyResponse struct {
	Journey domain.Journey `json:"journey"`
}

// TriggerAckResponse confirms an executor acknowledgment was recorded.
type TriggerAckResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status" example:"executed"`
}

// AnonymizeResponse confirms a data-subject deletion request was scheduled.
type AnonymizeResponse struct {
	IdentityID  string    `json:"identity_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
}
