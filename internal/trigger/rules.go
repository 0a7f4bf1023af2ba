package trigger

import (
	"fmt"
	"time"

	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
)

// Rule is one statically validated marketing-automation trigger: a pure
// predicate over a profile delta, a scheduling delay, a personalization
// generator and the minimum interval before it may re-fire for the same
// identity.
type Rule struct {
	Name         string
	Action       string
	Delay        time.Duration
	MaxFrequency time.Duration
	Predicate    func(u domain.ProfileUpdate) bool
	Personalize  func(u domain.ProfileUpdate) map[string]string
}

// Validate rejects malformed rules at startup, not at evaluation time.
func (r Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("trigger rule has no name")
	}
	if r.Action == "" {
		return fmt.Errorf("trigger rule %q has no action", r.Name)
	}
	if r.MaxFrequency <= 0 {
		return fmt.Errorf("trigger rule %q has no frequency cap", r.Name)
	}
	if r.Predicate == nil {
		return fmt.Errorf("trigger rule %q has no predicate", r.Name)
	}
	return nil
}

// DefaultRules returns the built-in trigger set.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:         "booking_abandoned",
			Action:       "send_recovery_email",
			Delay:        time.Hour,
			MaxFrequency: 24 * time.Hour,
			Predicate: func(u domain.ProfileUpdate) bool {
				return u.Curr.Counters.BookingAbandons > u.Prev.Counters.BookingAbandons
			},
			Personalize: func(u domain.ProfileUpdate) map[string]string {
				return map[string]string{
					"abandoned_count": fmt.Sprintf("%d", u.Curr.Counters.BookingAbandons),
					"lead_score":      fmt.Sprintf("%d", u.Curr.LeadScore),
				}
			},
		},
		{
			Name:         "high_intent_no_booking",
			Action:       "sales_outreach",
			Delay:        30 * time.Minute,
			MaxFrequency: 72 * time.Hour,
			Predicate: func(u domain.ProfileUpdate) bool {
				return u.Curr.LeadScore >= 70 && u.Curr.Counters.Bookings == 0 &&
					u.Prev.LeadScore < 70
			},
			Personalize: func(u domain.ProfileUpdate) map[string]string {
				return map[string]string{
					"lead_score":   fmt.Sprintf("%d", u.Curr.LeadScore),
					"price_checks": fmt.Sprintf("%d", u.Curr.Counters.PriceChecks),
				}
			},
		},
		{
			Name:         "churn_risk_critical",
			Action:       "winback_campaign",
			Delay:        0,
			MaxFrequency: 7 * 24 * time.Hour,
			Predicate: func(u domain.ProfileUpdate) bool {
				return u.Curr.ChurnBand == domain.ChurnCritical &&
					u.Prev.ChurnBand != domain.ChurnCritical &&
					u.Curr.Counters.Bookings >= 1
			},
			Personalize: func(u domain.ProfileUpdate) map[string]string {
				return map[string]string{
					"churn_band": string(u.Curr.ChurnBand),
				}
			},
		},
		{
			Name:         "exit_intent_offer",
			Action:       "show_retention_offer",
			Delay:        5 * time.Minute,
			MaxFrequency: 48 * time.Hour,
			Predicate: func(u domain.ProfileUpdate) bool {
				return u.Curr.Counters.ExitIntents > u.Prev.Counters.ExitIntents &&
					u.Curr.Counters.PriceChecks >= 1
			},
			Personalize: func(u domain.ProfileUpdate) map[string]string {
				return map[string]string{
					"price_checks": fmt.Sprintf("%d", u.Curr.Counters.PriceChecks),
				}
			},
		},
		{
			Name:         "welcome_series",
			Action:       "send_welcome_email",
			Delay:        10 * time.Minute,
			MaxFrequency: 30 * 24 * time.Hour,
			Predicate: func(u domain.ProfileUpdate) bool {
				return u.Prev.Counters.Sessions == 0 && u.Curr.Counters.Sessions >= 1
			},
			Personalize: func(u domain.ProfileUpdate) map[string]string {
				return map[string]string{}
			},
		},
	}
}
