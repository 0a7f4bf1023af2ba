package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
	"github.com/ronaldopdias/behavior-analytics-service/internal/dto"
	"github.com/ronaldopdias/behavior-analytics-service/internal/journey"
	"github.com/ronaldopdias/behavior-analytics-service/internal/repository"
)

// ProfileReader serves read-only profile snapshots.
type ProfileReader interface {
	Snapshot(identityID string) (domain.BehaviorProfile, bool)
}

// TriggerJobAPI records executor acknowledgments.
type TriggerJobAPI interface {
	UpdateStatus(ctx context.Context, jobID string, status domain.TriggerStatus, reason string) error
	Get(ctx context.Context, jobID string) (*domain.TriggerJob, error)
}

// Anonymizer schedules data-subject deletions.
type Anonymizer interface {
	ForceAnonymize(ctx context.Context, identityID string) error
}

// QueryHandler serves the pipeline process's read API: profiles, journeys,
// funnels, trigger acknowledgments and the dashboard stream. It lives in the
// pipeline binary because the rolling profiles and the broadcast hub do.
type QueryHandler struct {
	profiles   ProfileReader
	repository repository.EventRepository
	analyzer   *journey.Analyzer
	jobs       TriggerJobAPI
	anonymizer Anonymizer
	stream     StreamSource
	router     *gin.Engine
	log        *zap.Logger
}

func NewQueryHandler(
	profiles ProfileReader,
	repo repository.EventRepository,
	analyzer *journey.Analyzer,
	jobs TriggerJobAPI,
	anonymizer Anonymizer,
	stream StreamSource,
	log *zap.Logger,
) *QueryHandler {
	h := &QueryHandler{
		profiles:   profiles,
		repository: repo,
		analyzer:   analyzer,
		jobs:       jobs,
		anonymizer: anonymizer,
		stream:     stream,
		router:     gin.Default(),
		log:        log,
	}

	h.registerRoutes()

	return h
}

func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *QueryHandler) registerRoutes() {
	h.router.GET("/health", h.healthCheck)
	h.router.GET("/profiles/:identity_id", h.getProfile)
	h.router.GET("/journeys/:identity_id", h.getJourney)
	h.router.GET("/funnel", h.getFunnel)
	h.router.POST("/triggers/:job_id/ack", h.ackTrigger)
	h.router.POST("/identities/:identity_id/anonymize", h.anonymizeIdentity)
	h.router.GET("/stream", h.streamUpdates)
}

// healthCheck reports degraded when the event store is unreachable
func (h *QueryHandler) healthCheck(c *gin.Context) {
	if err := h.repository.Ping(c.Request.Context()); err != nil {
		h.log.Warn("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// getProfile handles GET /profiles/:identity_id. When the event store is
// unreachable the snapshot may lag behind accepted events, so the response
// carries how long it has been since the profile last moved.
func (h *QueryHandler) getProfile(c *gin.Context) {
	identityID := c.Param("identity_id")

	profile, ok := h.profiles.Snapshot(identityID)
	if !ok {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error:   "not_found",
			Message: "no profile for identity",
		})
		return
	}

	resp := dto.ProfileResponse{Profile: profile}
	if err := h.repository.Ping(c.Request.Context()); err != nil {
		resp.StaleForSec = int64(time.Since(profile.LastUpdatedAt).Seconds())
		h.log.Warn("Serving potentially stale profile",
			zap.String("identity_id", identityID),
			zap.Int64("stale_for_sec", resp.StaleForSec))
	}

	c.JSON(http.StatusOK, resp)
}

// getJourney handles GET /journeys/:identity_id
func (h *QueryHandler) getJourney(c *gin.Context) {
	identityID := c.Param("identity_id")

	var req dto.GetJourneyRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}
	if req.To == 0 {
		req.To = time.Now().Unix()
	}

	events, err := h.repository.EventsForIdentity(c.Request.Context(), identityID, req.From, req.To)
	if err != nil {
		h.log.Error("Failed to read identity events",
			zap.String("identity_id", identityID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
		return
	}

	j := h.analyzer.MapJourney(identityID, events, time.Now().UTC())
	c.JSON(http.StatusOK, dto.JourneyResponse{Journey: j})
}

// getFunnel handles GET /funnel
func (h *QueryHandler) getFunnel(c *gin.Context) {
	var req dto.GetFunnelRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	snapshot, err := h.analyzer.Funnel(c.Request.Context(), h.repository, req.From, req.To)
	if err != nil {
		h.log.Error("Failed to compute funnel", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, dto.FunnelResponse{Funnel: *snapshot})
}

// ackTrigger handles POST /triggers/:job_id/ack
func (h *QueryHandler) ackTrigger(c *gin.Context) {
	jobID := c.Param("job_id")

	var req dto.TriggerAckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	var status domain.TriggerStatus
	switch req.Outcome {
	case "executed":
		status = domain.TriggerExecuted
	case "failed":
		status = domain.TriggerFailed
	case "skipped":
		status = domain.TriggerSkipped
	}

	if err := h.jobs.UpdateStatus(c.Request.Context(), jobID, status, req.Reason); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{
				Error:   "not_found",
				Message: "no trigger job with that id",
			})
			return
		}
		h.log.Error("Failed to record trigger outcome",
			zap.String("job_id", jobID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, dto.TriggerAckResponse{
		JobID:  jobID,
		Status: string(status),
	})
}

// anonymizeIdentity handles POST /identities/:identity_id/anonymize
func (h *QueryHandler) anonymizeIdentity(c *gin.Context) {
	identityID := c.Param("identity_id")

	if err := h.anonymizer.ForceAnonymize(c.Request.Context(), identityID); err != nil {
		h.log.Error("Failed to schedule anonymization",
			zap.String("identity_id", identityID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, dto.AnonymizeResponse{
		IdentityID:  identityID,
		ScheduledAt: time.Now().UTC(),
	})
}
