package consumer

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/ronaldopdias/behavior-analytics-service/internal/config"
	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
	"github.com/ronaldopdias/behavior-analytics-service/internal/queue"
	"github.com/ronaldopdias/behavior-analytics-service/internal/repository"
	"github.com/ronaldopdias/behavior-analytics-service/internal/scoring"
)

// Deps bundles the pipeline's collaborators.
type Deps struct {
	QueueConsumer queue.QueueConsumer
	Repository    repository.EventRepository
	Gate          SignalChecker
	Resolver      IdentityResolver
	Profiles      ProfileStore
	Scorer        *scoring.Engine
	Stream        StreamPublisher
	Triggers      TriggerEvaluator
	Scheduler     JobScheduler
	DeadLetters   DeadLetterSink
}

// ProfileStore is the pipeline's full profile-store surface.
type ProfileStore interface {
	ProfileApplier
	ScoreSink
}

// Pipeline orchestrates the staged event flow: receive, parse, consent-gate,
// resolve, aggregate, score, trigger. Stages hand off over bounded channels,
// so a slow store backs pressure up to SQS instead of growing memory.
type Pipeline struct {
	receiver   *Receiver
	parser     *ParserStage
	gate       *GateStage
	resolver   *ResolveStage
	aggregator *Aggregator
	scoring    *ScoringStage
	trigger    *TriggerStage
}

// NewPipeline creates the consumer pipeline with all stages wired
func NewPipeline(cfg *config.Config, deps Deps, log *zap.Logger) *Pipeline {
	receiver := NewReceiver(deps.QueueConsumer, ReceiverConfig{
		MaxMessages:     10,
		WaitTimeSeconds: 20,
		BufferSize:      100,
	}, log)

	parser := NewParserStage(deps.QueueConsumer, NewJSONInboundParser(), deps.DeadLetters, log)
	gate := NewGateStage(deps.Gate, log)
	resolver := NewResolveStage(deps.Resolver, log)

	aggregator := NewAggregator(deps.Repository, deps.Profiles, deps.DeadLetters, AggregatorConfig{
		Workers:       cfg.Aggregator.Workers,
		MaxBatchSize:  cfg.Aggregator.BatchSizeMax,
		FlushTimeout:  cfg.Aggregator.BatchTimeout(),
		ChannelDepth:  cfg.Aggregator.ChannelDepth,
		InsertRetries: cfg.Aggregator.InsertRetries,
	}, log)

	scoringStage := NewScoringStage(deps.Scorer, deps.Profiles, deps.Stream, log)
	triggerStage := NewTriggerStage(deps.Triggers, deps.Scheduler, log)

	return &Pipeline{
		receiver:   receiver,
		parser:     parser,
		gate:       gate,
		resolver:   resolver,
		aggregator: aggregator,
		scoring:    scoringStage,
		trigger:    triggerStage,
	}
}

// Start runs all pipeline stages until the context is canceled
func (p *Pipeline) Start(ctx context.Context) error {
	messageChan := make(chan types.Message, 100)
	parsedChan := make(chan *Envelope, 100)
	gatedChan := make(chan *Envelope, 100)
	resolvedChan := make(chan *Envelope, 100)
	updateChan := make(chan domain.ProfileUpdate, 100)
	scoredChan := make(chan domain.ProfileUpdate, 100)

	var wg sync.WaitGroup
	wg.Add(7)

	go func() {
		defer wg.Done()
		p.receiver.Start(ctx, messageChan)
	}()

	go func() {
		defer wg.Done()
		p.parser.Start(ctx, messageChan, parsedChan)
	}()

	go func() {
		defer wg.Done()
		p.gate.Start(ctx, parsedChan, gatedChan)
	}()

	go func() {
		defer wg.Done()
		p.resolver.Start(ctx, gatedChan, resolvedChan)
	}()

	go func() {
		defer wg.Done()
		p.aggregator.Start(ctx, resolvedChan, updateChan)
	}()

	go func() {
		defer wg.Done()
		p.scoring.Start(ctx, updateChan, scoredChan)
	}()

	go func() {
		defer wg.Done()
		p.trigger.Start(ctx, scoredChan)
	}()

	wg.Wait()
	return nil
}
