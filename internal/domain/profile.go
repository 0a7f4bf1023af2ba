package domain

import "time"

// Segment is a named behavioral cluster. The set is fixed at startup.
type Segment string

const (
	SegmentNone           Segment = "unsegmented"
	SegmentWindowShoppers Segment = "window_shoppers"
	SegmentResearchers    Segment = "researchers"
	SegmentPriceHunters   Segment = "price_hunters"
	SegmentHighIntent     Segment = "high_intent"
	SegmentLoyalCustomers Segment = "loyal_customers"
	SegmentAtRisk         Segment = "at_risk"
)

// ChurnBand buckets a churn risk score into a discrete level.
type ChurnBand string

const (
	ChurnVeryLow  ChurnBand = "very_low"
	ChurnLow      ChurnBand = "low"
	ChurnMedium   ChurnBand = "medium"
	ChurnHigh     ChurnBand = "high"
	ChurnCritical ChurnBand = "critical"
)

// Intervention identifies a canned retention strategy for automation to act
// on. Stable enum values, never free text.
type Intervention string

const (
	InterventionNone            Intervention = "none"
	InterventionEmailNudge      Intervention = "email_nudge"
	InterventionDiscountOffer   Intervention = "discount_offer"
	InterventionPersonalCall    Intervention = "personal_outreach"
	InterventionWinbackCampaign Intervention = "winback_campaign"
)

// ProfileCounters are the rolling counters folded from accepted events.
// Every update is a pure function of (prior counters, event), so a profile
// is always recomputable from event history.
type ProfileCounters struct {
	Sessions        uint64 `json:"sessions"`
	PageViews       uint64 `json:"page_views"`
	ScrollDepthHits uint64 `json:"scroll_depth_hits"`
	Clicks          uint64 `json:"clicks"`
	RageClicks      uint64 `json:"rage_clicks"`
	FormFocuses     uint64 `json:"form_focuses"`
	FormAbandons    uint64 `json:"form_abandons"`
	ServiceViews    uint64 `json:"service_views"`
	PriceChecks     uint64 `json:"price_checks"`
	Comparisons     uint64 `json:"comparisons"`
	BookingAttempts uint64 `json:"booking_attempts"`
	BookingAbandons uint64 `json:"booking_abandons"`
	Bookings        uint64 `json:"bookings"`
	ExitIntents     uint64 `json:"exit_intents"`
	Searches        uint64 `json:"searches"`
	NegativeSignals uint64 `json:"negative_signals"`
}

// BehaviorProfile is the mutable rolling aggregate for one identity.
// Exactly one writer owns a profile at a time; readers get copies.
type BehaviorProfile struct {
	IdentityID string          `json:"identity_id"`
	Counters   ProfileCounters `json:"counters"`

	// Derived rates.
	BounceRate         float64 `json:"bounce_rate"`
	ReturnVisitRate    float64 `json:"return_visit_rate"`
	AvgSessionDuration float64 `json:"avg_session_duration_sec"`

	// Scoring output, persisted back through the aggregator.
	LeadScore     int       `json:"lead_score"`
	ChurnRisk     float64   `json:"churn_risk"`
	ChurnBand     ChurnBand `json:"churn_band,omitempty"`
	Segment       Segment   `json:"segment,omitempty"`
	ScoredAt      time.Time `json:"scored_at,omitempty"`
	FirstSeenAt   time.Time `json:"first_seen_at"`
	LastSeenAt    time.Time `json:"last_seen_at"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
	Anonymized    bool      `json:"anonymized,omitempty"`

	// Session-tracking state for derived rates.
	CurrentSessionID    string `json:"-"`
	CurrentSessionViews uint64 `json:"-"`
	BouncedSessions     uint64 `json:"-"`
	LastEventAt         int64  `json:"-"`
	SessionSeconds      int64  `json:"-"`
}

// ProfileUpdate carries one identity's profile through the pipeline: the
// snapshot before and after a batch of events was folded in, plus the events
// that caused the change.
type ProfileUpdate struct {
	IdentityID string
	Prev       BehaviorProfile
	Curr       BehaviorProfile
	Events     []*Event
}

// MetricUpdate is one tuple on the dashboard stream.
type MetricUpdate struct {
	IdentityID string    `json:"identity_id,omitempty"`
	Metric     string    `json:"metric_name"`
	Value      float64   `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
	StaleSince time.Time `json:"stale_since,omitempty"`
}
