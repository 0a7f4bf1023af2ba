package journey

import (
	"context"
	"fmt"
	"time"

	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
	"github.com/ronaldopdias/behavior-analytics-service/internal/repository"
)

// Funnel computes population-level conversion across the reporting window.
// Distinct from per-identity journey mapping; runs on query cadence, not on
// the ingestion path.
//
// Counts are cumulative over deepest-stage buckets: an identity that reached
// consideration also counts as having reached awareness and interest, which
// makes reached(N+1) <= reached(N) hold by construction.
func (a *Analyzer) Funnel(ctx context.Context, repo repository.EventRepository, from, to int64) (*domain.FunnelSnapshot, error) {
	reach, err := repo.StageReach(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stage reach: %w", err)
	}

	snapshot := &domain.FunnelSnapshot{
		From:       from,
		To:         to,
		ComputedAt: time.Now().UTC(),
	}

	var prev uint64
	for i, stage := range domain.FunnelStages {
		rank := domain.StageOrder[stage]

		var reached uint64
		for deepest, count := range reach {
			if deepest >= rank {
				reached += count
			}
		}

		conversion := 0.0
		if i > 0 && prev > 0 {
			conversion = float64(reached) / float64(prev)
		}

		snapshot.Stages = append(snapshot.Stages, domain.FunnelStageCount{
			Stage:      stage,
			Reached:    reached,
			Conversion: conversion,
		})
		prev = reached
	}

	return snapshot, nil
}
