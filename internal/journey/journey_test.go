package journey

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
)

func journeyEvent(t domain.EventType, occurredAt int64) *domain.Event {
	return &domain.Event{
		EventID:    "evt",
		IdentityID: "id1",
		Type:       t,
		StageRank:  StageRankFor(t),
		OccurredAt: occurredAt,
	}
}

func TestStageFor_Mapping(t *testing.T) {
	tests := []struct {
		eventType domain.EventType
		stage     domain.JourneyStage
	}{
		{domain.EventPageView, domain.StageAwareness},
		{domain.EventSearch, domain.StageAwareness},
		{domain.EventServiceView, domain.StageInterest},
		{domain.EventPriceCheck, domain.StageConsideration},
		{domain.EventServiceCompare, domain.StageConsideration},
		{domain.EventBookingStart, domain.StageDecision},
		{domain.EventBookingComplete, domain.StageDecision},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.stage, StageFor(tt.eventType), string(tt.eventType))
	}
}

func TestStageRankFor_FollowsFunnelOrder(t *testing.T) {
	assert.Equal(t, uint8(1), StageRankFor(domain.EventPageView))
	assert.Equal(t, uint8(2), StageRankFor(domain.EventServiceView))
	assert.Equal(t, uint8(3), StageRankFor(domain.EventPriceCheck))
	assert.Equal(t, uint8(4), StageRankFor(domain.EventBookingComplete))
}

func TestAnalyzer_MapJourney_OrderedStages(t *testing.T) {
	a := NewAnalyzer(30 * 24 * time.Hour)
	now := time.Unix(5000, 0)

	events := []*domain.Event{
		journeyEvent(domain.EventPageView, 1000),
		journeyEvent(domain.EventServiceView, 1100),
		journeyEvent(domain.EventPriceCheck, 1200),
		journeyEvent(domain.EventBookingStart, 1300),
		journeyEvent(domain.EventBookingComplete, 1400),
	}

	j := a.MapJourney("id1", events, now)

	assert.Equal(t, "id1", j.IdentityID)
	assert.True(t, j.Completed)
	assert.False(t, j.DropOff)

	stages := make([]domain.JourneyStage, 0, len(j.Steps))
	for _, step := range j.Steps {
		stages = append(stages, step.Stage)
	}
	assert.Equal(t, []domain.JourneyStage{
		domain.StageAwareness,
		domain.StageInterest,
		domain.StageConsideration,
		domain.StageDecision,
	}, stages)

	for i, step := range j.Steps {
		assert.Equal(t, i+1, step.SequenceNumber)
	}
}

func TestAnalyzer_MapJourney_StepDurations(t *testing.T) {
	a := NewAnalyzer(30 * 24 * time.Hour)
	now := time.Unix(5000, 0)

	events := []*domain.Event{
		journeyEvent(domain.EventPageView, 1000),
		journeyEvent(domain.EventServiceView, 1100),
		journeyEvent(domain.EventPriceCheck, 1400),
		journeyEvent(domain.EventServiceCompare, 1600),
	}

	j := a.MapJourney("id1", events, now)

	assert.Len(t, j.Steps, 3)
	assert.Equal(t, int64(100), j.Steps[0].Duration)
	assert.Equal(t, int64(300), j.Steps[1].Duration)
	// The final step closes at the last event, not at zero.
	assert.Equal(t, int64(200), j.Steps[2].Duration)
}

func TestAnalyzer_MapJourney_SingleStepDuration(t *testing.T) {
	a := NewAnalyzer(30 * 24 * time.Hour)
	now := time.Unix(5000, 0)

	events := []*domain.Event{
		journeyEvent(domain.EventPageView, 1000),
		journeyEvent(domain.EventSearch, 1250),
	}

	j := a.MapJourney("id1", events, now)

	assert.Len(t, j.Steps, 1)
	assert.Equal(t, int64(250), j.Steps[0].Duration)
}

func TestAnalyzer_MapJourney_PostBookingIsRetention(t *testing.T) {
	a := NewAnalyzer(30 * 24 * time.Hour)
	now := time.Unix(5000, 0)

	events := []*domain.Event{
		journeyEvent(domain.EventPageView, 1000),
		journeyEvent(domain.EventBookingComplete, 1100),
		journeyEvent(domain.EventPageView, 2000),
	}

	j := a.MapJourney("id1", events, now)

	assert.True(t, j.Completed)
	last := j.Steps[len(j.Steps)-1]
	assert.Equal(t, domain.StageRetention, last.Stage)
}

func TestAnalyzer_MapJourney_DropOffAfterInactivity(t *testing.T) {
	a := NewAnalyzer(30 * 24 * time.Hour)

	events := []*domain.Event{
		journeyEvent(domain.EventPageView, 1000),
		journeyEvent(domain.EventPriceCheck, 1100),
	}
	now := time.Unix(1100, 0).Add(31 * 24 * time.Hour)

	j := a.MapJourney("id1", events, now)

	assert.False(t, j.Completed)
	assert.True(t, j.DropOff)
	assert.Equal(t, domain.StageConsideration, j.DropOffStage)
}

func TestAnalyzer_MapJourney_RecentIncompleteIsNotDropOff(t *testing.T) {
	a := NewAnalyzer(30 * 24 * time.Hour)

	events := []*domain.Event{
		journeyEvent(domain.EventPageView, 1000),
	}
	now := time.Unix(1000, 0).Add(time.Hour)

	j := a.MapJourney("id1", events, now)

	assert.False(t, j.Completed)
	assert.False(t, j.DropOff)
}

func TestAnalyzer_MapJourney_Empty(t *testing.T) {
	a := NewAnalyzer(0)

	j := a.MapJourney("id1", nil, time.Now())

	assert.Empty(t, j.Steps)
	assert.False(t, j.Completed)
	assert.False(t, j.DropOff)
}
