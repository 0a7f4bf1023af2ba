package domain

import "time"

// JourneyStage is an ordered category events are mapped onto.
type JourneyStage string

const (
	StageAwareness     JourneyStage = "awareness"
	StageInterest      JourneyStage = "interest"
	StageConsideration JourneyStage = "consideration"
	StageDecision      JourneyStage = "decision"
	StageRetention     JourneyStage = "retention"
)

// StageOrder maps each stage to its rank in the funnel, starting at 1.
var StageOrder = map[JourneyStage]uint8{
	StageAwareness:     1,
	StageInterest:      2,
	StageConsideration: 3,
	StageDecision:      4,
	StageRetention:     5,
}

// FunnelStages lists the stages in funnel order.
var FunnelStages = []JourneyStage{
	StageAwareness,
	StageInterest,
	StageConsideration,
	StageDecision,
	StageRetention,
}

// JourneyStep is one labeled step of an identity's journey.
type JourneyStep struct {
	Stage          JourneyStage `json:"stage"`
	SequenceNumber int          `json:"sequence_number"`
	EnteredAt      time.Time    `json:"entered_at"`
	Duration       int64        `json:"duration_sec"`
}

// Journey is the ordered stage sequence of one identity's events.
type Journey struct {
	IdentityID   string        `json:"identity_id"`
	Steps        []JourneyStep `json:"steps"`
	Completed    bool          `json:"completed"`
	DropOff      bool          `json:"drop_off"`
	DropOffStage JourneyStage  `json:"drop_off_stage,omitempty"`
}

// FunnelStageCount is one row of a funnel snapshot: how many distinct
// identities reached at least this stage within the reporting window.
type FunnelStageCount struct {
	Stage      JourneyStage `json:"stage"`
	Reached    uint64       `json:"reached"`
	Conversion float64      `json:"conversion_from_prev"`
}

// FunnelSnapshot is a population-level conversion report.
type FunnelSnapshot struct {
	From       int64              `json:"from"`
	To         int64              `json:"to"`
	Stages     []FunnelStageCount `json:"stages"`
	ComputedAt time.Time          `json:"computed_at"`
}
