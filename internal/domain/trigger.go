package domain

import "time"

// TriggerStatus tracks the lifecycle of a scheduled marketing action.
type TriggerStatus string

const (
	TriggerScheduled    TriggerStatus = "scheduled"
	TriggerExecuted     TriggerStatus = "executed"
	TriggerFailed       TriggerStatus = "failed"
	TriggerSkipped      TriggerStatus = "skipped"
	TriggerFrequencyCap TriggerStatus = "skipped-frequency-cap"
)

// TriggerJob is a scheduled marketing action intent. Execution belongs to an
// external collaborator; the engine's responsibility ends at producing the
// job.
type TriggerJob struct {
	JobID           string            `json:"job_id"`
	TriggerName     string            `json:"trigger_name"`
	IdentityID      string            `json:"identity_id"`
	Action          string            `json:"action"`
	Personalization map[string]string `json:"personalization_data,omitempty"`
	ScheduledFor    time.Time         `json:"scheduled_for"`
	Status          TriggerStatus     `json:"status"`
	FailureReason   string            `json:"failure_reason,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// DeadLetter is a record surfaced for manual inspection after a stage
// exhausted its retry budget. Never silently lost.
type DeadLetter struct {
	Source     string    `json:"source"`
	Reference  string    `json:"reference"`
	Payload    string    `json:"payload"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}
