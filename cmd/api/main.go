package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ronaldopdias/behavior-analytics-service/internal/config"
	"github.com/ronaldopdias/behavior-analytics-service/internal/consent"
	"github.com/ronaldopdias/behavior-analytics-service/internal/handler"
	"github.com/ronaldopdias/behavior-analytics-service/internal/identity"
	"github.com/ronaldopdias/behavior-analytics-service/internal/logger"
	"github.com/ronaldopdias/behavior-analytics-service/internal/queue/sqs"
	"github.com/ronaldopdias/behavior-analytics-service/internal/service"
	"github.com/ronaldopdias/behavior-analytics-service/internal/store/postgres"
	"github.com/ronaldopdias/behavior-analytics-service/internal/store/valkey"
)

func main() {
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

	log.Info("Starting API service",
		zap.String("environment", cfg.Service.Environment),
		zap.String("port", cfg.Service.APIPort))

	ctx := context.Background()

	// Initialize SQS client
	sqsClient, err := sqs.NewClient(ctx, cfg.SQS, log)
	if err != nil {
		log.Fatal("Failed to create SQS client", zap.Error(err))
	}

	// Initialize Postgres (consent + identity records)
	db, err := postgres.Open(cfg.Postgres.DSN, log)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close Postgres", zap.Error(err))
		}
	}()

	consentStore := postgres.NewConsentStore(db)
	identityStore := postgres.NewIdentityStore(db)

	// Initialize Valkey (dedupe window + consent cache)
	valkeyClient, err := valkey.NewClient(ctx, cfg.Valkey, cfg.Gateway.DedupeWindow(), log)
	if err != nil {
		log.Fatal("Failed to create Valkey client", zap.Error(err))
	}
	defer func() {
		if err := valkeyClient.Close(); err != nil {
			log.Error("Failed to close Valkey client", zap.Error(err))
		}
	}()

	// Initialize identity resolver (consent submissions may create identities)
	resolver := identity.NewResolver(identityStore, log)
	if err := resolver.Warm(ctx); err != nil {
		log.Fatal("Failed to warm identity index", zap.Error(err))
	}

	// Initialize consent gate
	gate := consent.NewGate(consentStore, valkeyClient, resolver, consent.GateConfig{
		CheckTimeout: time.Duration(cfg.Gateway.ConsentTimeoutMsec) * time.Millisecond,
		AnonymizeSLA: time.Duration(cfg.Retention.AnonymizeSLASec) * time.Second,
	}, log)

	// Initialize ingestion service
	ingestService := service.NewIngestService(sqsClient, valkeyClient, gate, service.IngestConfig{
		MaxInFlight:   cfg.Gateway.MaxInFlight,
		ShedRetrySec:  cfg.Gateway.ShedRetryAfterSec,
		FutureSkewSec: int64(cfg.Gateway.FutureSkewSec),
	}, log)

	// Initialize handler
	h := handler.NewHandler(ingestService, gate, log)

	addr := fmt.Sprintf(":%s", cfg.Service.APIPort)
	log.Info("API server starting", zap.String("address", addr))

	if err := http.ListenAndServe(addr, h); err != nil {
		log.Fatal("Failed to start API server", zap.Error(err))
	}
}
