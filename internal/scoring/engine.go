package scoring

import (
	"math"
	"time"

	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
)

// Result is the scoring output for one profile snapshot. The engine never
// mutates the profile; callers persist the result back through the
// aggregator's store.
type Result struct {
	LeadScore         int
	ChurnRisk         float64
	ChurnBand         domain.ChurnBand
	Interventions     []domain.Intervention
	Segment           domain.Segment
	SegmentConfidence float64
}

// Weights hold the deterministic heuristic coefficients. Explicit and
// explainable on purpose: a model-based scorer can replace the engine behind
// the same Score contract without touching downstream consumers.
type Weights struct {
	// Behavioral engagement bucket, capped so volume alone cannot dominate.
	PageViewWeight     float64
	PageViewCap        float64
	SessionMinuteCap   float64
	PagesPerSessionCap float64
	ReturnVisitWeight  float64
	BehavioralCap      float64

	// Active engagement bucket. Rage clicks subtract.
	ClickWeight      float64
	ClickCap         float64
	FormFocusWeight  float64
	FormFocusCap     float64
	ScrollCap        float64
	RageClickPenalty float64
	RagePenaltyCap   float64
	ActiveCap        float64

	// Intent bucket, weighted highest.
	PriceCheckWeight     float64
	PriceCheckCap        float64
	CompareWeight        float64
	CompareCap           float64
	BookingAttemptWeight float64
	BookingAttemptCap    float64
	BookingWeight        float64
	BookingCap           float64
	IntentCap            float64

	// Churn factor weights, normalized thresholds.
	RecencyWeight      float64
	RecencyDays        float64
	FrequencyWeight    float64
	FrequencySessions  float64
	EngagementWeight   float64
	EngagementLeadNorm float64
	NegativeWeight     float64
	NegativeThreshold  float64
}

func DefaultWeights() Weights {
	return Weights{
		PageViewWeight:     2,
		PageViewCap:        10,
		SessionMinuteCap:   6,
		PagesPerSessionCap: 5,
		ReturnVisitWeight:  4,
		BehavioralCap:      25,

		ClickWeight:      2,
		ClickCap:         10,
		FormFocusWeight:  4,
		FormFocusCap:     12,
		ScrollCap:        5,
		RageClickPenalty: 3,
		RagePenaltyCap:   10,
		ActiveCap:        25,

		PriceCheckWeight:     9,
		PriceCheckCap:        36,
		CompareWeight:        8,
		CompareCap:           16,
		BookingAttemptWeight: 20,
		BookingAttemptCap:    40,
		BookingWeight:        25,
		BookingCap:           50,
		IntentCap:            75,

		RecencyWeight:      0.35,
		RecencyDays:        30,
		FrequencyWeight:    0.25,
		FrequencySessions:  10,
		EngagementWeight:   0.25,
		EngagementLeadNorm: 60,
		NegativeWeight:     0.15,
		NegativeThreshold:  5,
	}
}

// Engine computes lead score, churn risk and segment membership from a
// profile snapshot. All methods are pure over their inputs.
type Engine struct {
	weights  Weights
	segments []SegmentRule
	minConf  float64
}

func NewEngine(weights Weights, segments []SegmentRule, minSegmentConfidence float64) *Engine {
	return &Engine{weights: weights, segments: segments, minConf: minSegmentConfidence}
}

func NewDefaultEngine() *Engine {
	return NewEngine(DefaultWeights(), DefaultSegmentRules(), 0.7)
}

// Score computes the full result for one snapshot. Missing attributes
// contribute their neutral zero; scoring always produces a value.
func (e *Engine) Score(p domain.BehaviorProfile, now time.Time) Result {
	lead := e.leadScore(p)
	churn := e.churnRisk(p, lead, now)
	band := BandFor(churn)
	segment, conf := e.segment(p, churn)

	return Result{
		LeadScore:         lead,
		ChurnRisk:         churn,
		ChurnBand:         band,
		Interventions:     InterventionsFor(band),
		Segment:           segment,
		SegmentConfidence: conf,
	}
}

func (e *Engine) leadScore(p domain.BehaviorProfile) int {
	w := e.weights
	c := p.Counters

	pagesPerSession := 0.0
	if c.Sessions > 0 {
		pagesPerSession = float64(c.PageViews) / float64(c.Sessions)
	}

	behavioral := capped(float64(c.PageViews)*w.PageViewWeight, w.PageViewCap) +
		capped(p.AvgSessionDuration/60, w.SessionMinuteCap) +
		capped(pagesPerSession*1.5, w.PagesPerSessionCap) +
		p.ReturnVisitRate*w.ReturnVisitWeight
	behavioral = capped(behavioral, w.BehavioralCap)

	active := capped(float64(c.Clicks)*w.ClickWeight, w.ClickCap) +
		capped(float64(c.FormFocuses)*w.FormFocusWeight, w.FormFocusCap) +
		capped(float64(c.ScrollDepthHits), w.ScrollCap) -
		capped(float64(c.RageClicks)*w.RageClickPenalty, w.RagePenaltyCap)
	active = capped(math.Max(active, 0), w.ActiveCap)

	intent := capped(float64(c.PriceChecks)*w.PriceCheckWeight, w.PriceCheckCap) +
		capped(float64(c.Comparisons)*w.CompareWeight, w.CompareCap) +
		capped(float64(c.BookingAttempts)*w.BookingAttemptWeight, w.BookingAttemptCap) +
		capped(float64(c.Bookings)*w.BookingWeight, w.BookingCap)
	intent = capped(intent, w.IntentCap)

	return int(math.Round(clamp(behavioral+active+intent, 0, 100)))
}

func (e *Engine) churnRisk(p domain.BehaviorProfile, leadScore int, now time.Time) float64 {
	w := e.weights
	if p.LastSeenAt.IsZero() {
		return 0
	}

	daysSince := now.Sub(p.LastSeenAt).Hours() / 24
	recency := clamp(daysSince/w.RecencyDays, 0, 1)
	frequency := clamp(1-float64(p.Counters.Sessions)/w.FrequencySessions, 0, 1)
	engagement := clamp(1-float64(leadScore)/w.EngagementLeadNorm, 0, 1)
	negative := clamp(float64(p.Counters.NegativeSignals)/w.NegativeThreshold, 0, 1)

	risk := recency*w.RecencyWeight +
		frequency*w.FrequencyWeight +
		engagement*w.EngagementWeight +
		negative*w.NegativeWeight

	return clamp(risk, 0, 1)
}

func (e *Engine) segment(p domain.BehaviorProfile, churn float64) (domain.Segment, float64) {
	best := domain.SegmentNone
	bestConf := 0.0

	for _, rule := range e.segments {
		conf := rule.Confidence(p, churn)
		if conf > bestConf {
			best, bestConf = rule.Name, conf
		}
	}

	if bestConf < e.minConf {
		return domain.SegmentNone, 0
	}
	return best, bestConf
}

// BandFor buckets a churn risk score by fixed cutoffs.
func BandFor(risk float64) domain.ChurnBand {
	switch {
	case risk < 0.2:
		return domain.ChurnVeryLow
	case risk < 0.4:
		return domain.ChurnLow
	case risk < 0.6:
		return domain.ChurnMedium
	case risk < 0.8:
		return domain.ChurnHigh
	default:
		return domain.ChurnCritical
	}
}

// InterventionsFor maps a churn band to its canned strategy identifiers.
func InterventionsFor(band domain.ChurnBand) []domain.Intervention {
	switch band {
	case domain.ChurnVeryLow, domain.ChurnLow:
		return []domain.Intervention{domain.InterventionNone}
	case domain.ChurnMedium:
		return []domain.Intervention{domain.InterventionEmailNudge}
	case domain.ChurnHigh:
		return []domain.Intervention{domain.InterventionEmailNudge, domain.InterventionDiscountOffer}
	default:
		return []domain.Intervention{domain.InterventionPersonalCall, domain.InterventionWinbackCampaign}
	}
}

func capped(v, cap float64) float64 {
	if v > cap {
		return cap
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
