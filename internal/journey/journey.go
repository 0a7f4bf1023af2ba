package journey

import (
	"time"

	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
)

// stageByType is the fixed event-type→stage lookup.
var stageByType = map[domain.EventType]domain.JourneyStage{
	domain.EventPageView:        domain.StageAwareness,
	domain.EventSearch:          domain.StageAwareness,
	domain.EventScrollMilestone: domain.StageAwareness,
	domain.EventClick:           domain.StageInterest,
	domain.EventServiceView:     domain.StageInterest,
	domain.EventExitIntent:      domain.StageInterest,
	domain.EventPriceCheck:      domain.StageConsideration,
	domain.EventServiceCompare:  domain.StageConsideration,
	domain.EventFormFocus:       domain.StageConsideration,
	domain.EventFormAbandon:     domain.StageConsideration,
	domain.EventRageClick:       domain.StageInterest,
	domain.EventBookingStart:    domain.StageDecision,
	domain.EventBookingAbandon:  domain.StageDecision,
	domain.EventBookingComplete: domain.StageDecision,
}

// StageFor maps an event type to its journey stage. Events after a completed
// booking belong to retention, which the mapper handles positionally.
func StageFor(t domain.EventType) domain.JourneyStage {
	if stage, ok := stageByType[t]; ok {
		return stage
	}
	return domain.StageAwareness
}

// StageRankFor returns the funnel rank an event contributes, used to tag
// events at parse time so funnel aggregation stays a pure column query.
func StageRankFor(t domain.EventType) uint8 {
	return domain.StageOrder[StageFor(t)]
}

// Analyzer sequences events into journeys and computes population funnels.
type Analyzer struct {
	inactivityWindow time.Duration
}

func NewAnalyzer(inactivityWindow time.Duration) *Analyzer {
	if inactivityWindow <= 0 {
		inactivityWindow = 30 * 24 * time.Hour
	}
	return &Analyzer{inactivityWindow: inactivityWindow}
}

// MapJourney buckets one identity's events, in occurred_at order, into an
// ordered stage sequence. The journey drops off at the deepest stage reached
// if no terminal booking occurs within the inactivity window after the last
// event.
func (a *Analyzer) MapJourney(identityID string, events []*domain.Event, now time.Time) domain.Journey {
	j := domain.Journey{IdentityID: identityID}
	if len(events) == 0 {
		return j
	}

	var (
		current   domain.JourneyStage
		entered   int64
		completed bool
		deepest   uint8
		seq       int
	)

	for _, e := range events {
		stage := StageFor(e.Type)
		if completed {
			stage = domain.StageRetention
		}

		if rank := domain.StageOrder[stage]; rank > deepest {
			deepest = rank
		}

		if stage != current {
			if current != "" {
				j.Steps[len(j.Steps)-1].Duration = e.OccurredAt - entered
			}
			seq++
			j.Steps = append(j.Steps, domain.JourneyStep{
				Stage:          stage,
				SequenceNumber: seq,
				EnteredAt:      time.Unix(e.OccurredAt, 0).UTC(),
			})
			current = stage
			entered = e.OccurredAt
		}

		if e.Type == domain.EventBookingComplete {
			completed = true
		}
	}

	j.Completed = completed

	last := events[len(events)-1]
	// Close out the final step; time spent there runs to the last event seen.
	if len(j.Steps) > 0 {
		j.Steps[len(j.Steps)-1].Duration = last.OccurredAt - entered
	}
	if !completed && now.Sub(time.Unix(last.OccurredAt, 0)) > a.inactivityWindow {
		j.DropOff = true
		for stage, rank := range domain.StageOrder {
			if rank == deepest {
				j.DropOffStage = stage
			}
		}
	}

	return j
}
