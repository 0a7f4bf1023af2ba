package scoring

import "github.com/ronaldopdias/behavior-analytics-service/internal/domain"

// SegmentPredicate is one attribute-range check of a rule-set, with the
// weight it contributes to the rule's match confidence.
type SegmentPredicate struct {
	Weight float64
	Match  func(p domain.BehaviorProfile, churn float64) bool
}

// SegmentRule is a named conjunction of weighted predicates. Confidence is
// the satisfied share of total weight; candidates are ranked, never merged.
type SegmentRule struct {
	Name       domain.Segment
	Predicates []SegmentPredicate
}

// Confidence computes the satisfied weight fraction for one profile.
func (r SegmentRule) Confidence(p domain.BehaviorProfile, churn float64) float64 {
	total, satisfied := 0.0, 0.0
	for _, pred := range r.Predicates {
		total += pred.Weight
		if pred.Match(p, churn) {
			satisfied += pred.Weight
		}
	}
	if total == 0 {
		return 0
	}
	return satisfied / total
}

// DefaultSegmentRules returns the fixed segment rule-sets, most specific
// first. Order matters only for documentation; ranking picks the winner.
func DefaultSegmentRules() []SegmentRule {
	return []SegmentRule{
		{
			Name: domain.SegmentLoyalCustomers,
			Predicates: []SegmentPredicate{
				{2, func(p domain.BehaviorProfile, _ float64) bool { return p.Counters.Bookings >= 2 }},
				{1, func(p domain.BehaviorProfile, _ float64) bool { return p.Counters.Sessions >= 3 }},
			},
		},
		{
			Name: domain.SegmentAtRisk,
			Predicates: []SegmentPredicate{
				{2, func(p domain.BehaviorProfile, churn float64) bool { return churn >= 0.6 }},
				{2, func(p domain.BehaviorProfile, _ float64) bool { return p.Counters.Bookings >= 1 }},
			},
		},
		{
			Name: domain.SegmentHighIntent,
			Predicates: []SegmentPredicate{
				{3, func(p domain.BehaviorProfile, _ float64) bool { return p.Counters.BookingAttempts >= 1 }},
				{2, func(p domain.BehaviorProfile, _ float64) bool { return p.Counters.PriceChecks >= 2 }},
				{1, func(p domain.BehaviorProfile, _ float64) bool { return p.Counters.Bookings == 0 }},
			},
		},
		{
			Name: domain.SegmentPriceHunters,
			Predicates: []SegmentPredicate{
				{3, func(p domain.BehaviorProfile, _ float64) bool { return p.Counters.PriceChecks >= 5 }},
				{2, func(p domain.BehaviorProfile, _ float64) bool { return p.Counters.Comparisons >= 2 }},
				{1, func(p domain.BehaviorProfile, _ float64) bool { return p.Counters.Bookings == 0 }},
			},
		},
		{
			Name: domain.SegmentResearchers,
			Predicates: []SegmentPredicate{
				{2, func(p domain.BehaviorProfile, _ float64) bool { return p.Counters.ServiceViews >= 5 }},
				{2, func(p domain.BehaviorProfile, _ float64) bool { return p.Counters.Sessions >= 2 }},
				{1, func(p domain.BehaviorProfile, _ float64) bool { return p.Counters.Bookings == 0 }},
			},
		},
		{
			Name: domain.SegmentWindowShoppers,
			Predicates: []SegmentPredicate{
				{2, func(p domain.BehaviorProfile, _ float64) bool { return p.Counters.PageViews >= 1 }},
				{2, func(p domain.BehaviorProfile, _ float64) bool { return p.Counters.PriceChecks == 0 }},
				{1, func(p domain.BehaviorProfile, _ float64) bool { return p.Counters.Bookings == 0 }},
				{1, func(p domain.BehaviorProfile, _ float64) bool { return p.Counters.Sessions <= 2 }},
			},
		},
	}
}
