package profile

import "github.com/ronaldopdias/behavior-analytics-service/internal/domain"

// Idle gaps above this are not counted toward session duration.
const maxSessionGapSec = 30 * 60

// Fold applies one event to a profile. Pure function of (prior, event): no
// I/O, no clock reads, so any profile is replayable from event history.
func Fold(p domain.BehaviorProfile, e *domain.Event) domain.BehaviorProfile {
	if p.IdentityID == "" {
		p.IdentityID = e.IdentityID
		p.FirstSeenAt = e.ReceivedAt
	}

	if e.SessionID != p.CurrentSessionID {
		if p.CurrentSessionID != "" && p.CurrentSessionViews <= 1 {
			p.BouncedSessions++
		}
		p.Counters.Sessions++
		p.CurrentSessionID = e.SessionID
		p.CurrentSessionViews = 0
	} else if p.LastEventAt > 0 {
		gap := e.OccurredAt - p.LastEventAt
		if gap > 0 && gap <= maxSessionGapSec {
			p.SessionSeconds += gap
		}
	}

	switch e.Type {
	case domain.EventPageView:
		p.Counters.PageViews++
		p.CurrentSessionViews++
	case domain.EventScrollMilestone:
		p.Counters.ScrollDepthHits++
	case domain.EventClick:
		p.Counters.Clicks++
	case domain.EventRageClick:
		p.Counters.RageClicks++
		p.Counters.NegativeSignals++
	case domain.EventFormFocus:
		p.Counters.FormFocuses++
	case domain.EventFormAbandon:
		p.Counters.FormAbandons++
		p.Counters.NegativeSignals++
	case domain.EventServiceView:
		p.Counters.ServiceViews++
	case domain.EventPriceCheck:
		p.Counters.PriceChecks++
	case domain.EventServiceCompare:
		p.Counters.Comparisons++
	case domain.EventBookingStart:
		p.Counters.BookingAttempts++
	case domain.EventBookingAbandon:
		p.Counters.BookingAttempts++
		p.Counters.BookingAbandons++
		p.Counters.NegativeSignals++
	case domain.EventBookingComplete:
		p.Counters.Bookings++
	case domain.EventExitIntent:
		p.Counters.ExitIntents++
	case domain.EventSearch:
		p.Counters.Searches++
	}

	if p.Counters.Sessions > 0 {
		bounced := p.BouncedSessions
		if p.CurrentSessionViews <= 1 {
			bounced++
		}
		p.BounceRate = float64(bounced) / float64(p.Counters.Sessions)
		p.ReturnVisitRate = float64(p.Counters.Sessions-1) / float64(p.Counters.Sessions)
		p.AvgSessionDuration = float64(p.SessionSeconds) / float64(p.Counters.Sessions)
	}

	p.LastEventAt = e.OccurredAt
	p.LastSeenAt = e.ReceivedAt
	p.LastUpdatedAt = e.ReceivedAt
	p.Anonymized = false

	return p
}
