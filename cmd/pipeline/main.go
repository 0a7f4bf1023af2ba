package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ronaldopdias/behavior-analytics-service/internal/broadcast"
	"github.com/ronaldopdias/behavior-analytics-service/internal/config"
	"github.com/ronaldopdias/behavior-analytics-service/internal/consent"
	"github.com/ronaldopdias/behavior-analytics-service/internal/consumer"
	"github.com/ronaldopdias/behavior-analytics-service/internal/handler"
	"github.com/ronaldopdias/behavior-analytics-service/internal/identity"
	"github.com/ronaldopdias/behavior-analytics-service/internal/journey"
	"github.com/ronaldopdias/behavior-analytics-service/internal/logger"
	"github.com/ronaldopdias/behavior-analytics-service/internal/profile"
	"github.com/ronaldopdias/behavior-analytics-service/internal/queue/sqs"
	"github.com/ronaldopdias/behavior-analytics-service/internal/repository/clickhouse"
	"github.com/ronaldopdias/behavior-analytics-service/internal/retention"
	"github.com/ronaldopdias/behavior-analytics-service/internal/scoring"
	"github.com/ronaldopdias/behavior-analytics-service/internal/store/postgres"
	"github.com/ronaldopdias/behavior-analytics-service/internal/store/valkey"
	"github.com/ronaldopdias/behavior-analytics-service/internal/trigger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log, err := logger.New(cfg.Service.Environment)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func(log *zap.Logger) {
		err := log.Sync()
		if err != nil {
			log.Error("Failed to sync logger", zap.Error(err))
		}
	}(log)

	log.Info("Starting pipeline service",
		zap.String("environment", cfg.Service.Environment))

	ctx := context.Background()

	// Initialize ClickHouse client
	chClient, err := clickhouse.NewClient(ctx, &cfg.ClickHouse, log)
	if err != nil {
		log.Fatal("Failed to create ClickHouse client", zap.Error(err))
	}
	defer func() {
		if err := chClient.Close(); err != nil {
			log.Error("Failed to close ClickHouse client", zap.Error(err))
		}
	}()

	// Initialize repository
	repo := clickhouse.NewRepository(chClient, log)

	// Initialize schema (create tables if not exist)
	if err := repo.InitSchema(ctx); err != nil {
		log.Fatal("Failed to initialize ClickHouse schema", zap.Error(err))
	}

	// Initialize Postgres (consent, identities, trigger jobs, dead letters)
	db, err := postgres.Open(cfg.Postgres.DSN, log)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close Postgres", zap.Error(err))
		}
	}()

	if err := postgres.InitSchema(ctx, db); err != nil {
		log.Fatal("Failed to initialize Postgres schema", zap.Error(err))
	}
	log.Info("Database schemas initialized")

	consentStore := postgres.NewConsentStore(db)
	identityStore := postgres.NewIdentityStore(db)
	triggerJobStore := postgres.NewTriggerJobStore(db)
	deadLetterStore := postgres.NewDeadLetterStore(db)

	// Initialize Valkey (dedupe, consent cache, frequency caps)
	valkeyClient, err := valkey.NewClient(ctx, cfg.Valkey, cfg.Gateway.DedupeWindow(), log)
	if err != nil {
		log.Fatal("Failed to create Valkey client", zap.Error(err))
	}
	defer func() {
		if err := valkeyClient.Close(); err != nil {
			log.Error("Failed to close Valkey client", zap.Error(err))
		}
	}()

	// Initialize profile store and identity resolver; merged identities carry
	// their counters over to the survivor
	profiles := profile.NewStore()
	resolver := identity.NewResolver(identityStore, log)
	resolver.OnMerge(profiles.Merge)
	if err := resolver.Warm(ctx); err != nil {
		log.Fatal("Failed to warm identity index", zap.Error(err))
	}

	// Initialize consent gate
	gate := consent.NewGate(consentStore, valkeyClient, resolver, consent.GateConfig{
		CheckTimeout: time.Duration(cfg.Gateway.ConsentTimeoutMsec) * time.Millisecond,
		AnonymizeSLA: time.Duration(cfg.Retention.AnonymizeSLASec) * time.Second,
	}, log)

	// Initialize scoring, broadcast and triggers
	scorer := scoring.NewDefaultEngine()
	hub := broadcast.NewHub(64, log)

	triggerEngine, err := trigger.NewEngine(trigger.DefaultRules(), valkeyClient, triggerJobStore, gate, log)
	if err != nil {
		log.Fatal("Invalid trigger rules", zap.Error(err))
	}

	executor := trigger.NewWebhookExecutor(cfg.Trigger.WebhookURL, log)
	scheduler := trigger.NewScheduler(executor, triggerJobStore, log)

	// Initialize retention worker
	retentionWorker := retention.NewWorker(consentStore, profiles, resolver, repo, retention.WorkerConfig{
		SweepInterval:  time.Duration(cfg.Retention.SweepIntervalSec) * time.Second,
		EventRetention: time.Duration(cfg.Retention.EventRetentionDay) * 24 * time.Hour,
	}, log)

	// Initialize SQS client
	sqsClient, err := sqs.NewClient(ctx, cfg.SQS, log)
	if err != nil {
		log.Fatal("Failed to create SQS client", zap.Error(err))
	}

	// Initialize the consumer pipeline
	pipeline := consumer.NewPipeline(cfg, consumer.Deps{
		QueueConsumer: sqsClient,
		Repository:    repo,
		Gate:          gate,
		Resolver:      resolver,
		Profiles:      profiles,
		Scorer:        scorer,
		Stream:        hub,
		Triggers:      triggerEngine,
		Scheduler:     scheduler,
		DeadLetters:   deadLetterStore,
	}, log)

	// Initialize the query API
	analyzer := journey.NewAnalyzer(time.Duration(cfg.Journey.InactivityWindowSec) * time.Second)
	queryHandler := handler.NewQueryHandler(profiles, repo, analyzer, triggerJobStore, gate, hub, log)

	pipelineCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		addr := ":" + cfg.Service.QueryPort
		log.Info("Query server starting", zap.String("address", addr))
		if err := http.ListenAndServe(addr, queryHandler); err != nil {
			log.Error("Query server error", zap.Error(err))
		}
	}()

	go scheduler.Run(pipelineCtx)
	go retentionWorker.Run(pipelineCtx)

	log.Info("Pipeline starting")

	go func() {
		if err := pipeline.Start(pipelineCtx); err != nil {
			log.Fatal("Pipeline error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down pipeline gracefully")
	cancel()
}
