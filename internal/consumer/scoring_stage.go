package consumer

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
	"github.com/ronaldopdias/behavior-analytics-service/internal/metrics"
	"github.com/ronaldopdias/behavior-analytics-service/internal/scoring"
)

// ScoreSink persists scoring output back into the profile store.
type ScoreSink interface {
	SetScores(identityID string, leadScore int, churnRisk float64, band domain.ChurnBand, segment domain.Segment, at time.Time)
}

// StreamPublisher fans score changes out to dashboard subscribers.
type StreamPublisher interface {
	Publish(update domain.MetricUpdate)
}

// ScoringStage recomputes scores for every profile update. A result outside
// its bounds is discarded in favor of the last known-good value; scoring
// always leaves a usable score behind.
type ScoringStage struct {
	engine   *scoring.Engine
	profiles ScoreSink
	stream   StreamPublisher
	log      *zap.Logger
}

// NewScoringStage creates a new scoring stage
func NewScoringStage(engine *scoring.Engine, profiles ScoreSink, stream StreamPublisher, log *zap.Logger) *ScoringStage {
	return &ScoringStage{
		engine:   engine,
		profiles: profiles,
		stream:   stream,
		log:      log,
	}
}

// Start scores profile updates and forwards them enriched
func (s *ScoringStage) Start(ctx context.Context, in <-chan domain.ProfileUpdate, out chan<- domain.ProfileUpdate) {
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Scoring stage shutting down")
			return
		case u, ok := <-in:
			if !ok {
				s.log.Info("Scoring stage input channel closed")
				return
			}

			now := time.Now().UTC()
			result := s.engine.Score(u.Curr, now)

			if !scoreInBounds(result) {
				metrics.ScoreFallbacks.Inc()
				s.log.Warn("Scoring result out of bounds, keeping last known-good",
					zap.String("identity_id", u.IdentityID),
					zap.Int("lead_score", result.LeadScore),
					zap.Float64("churn_risk", result.ChurnRisk))
				result = scoring.Result{
					LeadScore: u.Prev.LeadScore,
					ChurnRisk: u.Prev.ChurnRisk,
					ChurnBand: u.Prev.ChurnBand,
					Segment:   u.Prev.Segment,
				}
			}

			s.profiles.SetScores(u.IdentityID, result.LeadScore, result.ChurnRisk, result.ChurnBand, result.Segment, now)

			u.Curr.LeadScore = result.LeadScore
			u.Curr.ChurnRisk = result.ChurnRisk
			u.Curr.ChurnBand = result.ChurnBand
			u.Curr.Segment = result.Segment
			u.Curr.ScoredAt = now

			s.publish(u, now)

			select {
			case <-ctx.Done():
				return
			case out <- u:
			}
		}
	}
}

func (s *ScoringStage) publish(u domain.ProfileUpdate, now time.Time) {
	s.stream.Publish(domain.MetricUpdate{
		IdentityID: u.IdentityID,
		Metric:     "lead_score",
		Value:      float64(u.Curr.LeadScore),
		Timestamp:  now,
	})
	s.stream.Publish(domain.MetricUpdate{
		IdentityID: u.IdentityID,
		Metric:     "churn_risk",
		Value:      u.Curr.ChurnRisk,
		Timestamp:  now,
	})
}

func scoreInBounds(r scoring.Result) bool {
	if r.LeadScore < 0 || r.LeadScore > 100 {
		return false
	}
	if math.IsNaN(r.ChurnRisk) || r.ChurnRisk < 0 || r.ChurnRisk > 1 {
		return false
	}
	return true
}
