package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ronaldopdias/behavior-analytics-service/internal/dto"
	"github.com/ronaldopdias/behavior-analytics-service/internal/service"
)

// ingestEvent handles POST /events
func (h *Handler) ingestEvent(c *gin.Context) {
	var req dto.IngestEventRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid event request", zap.Error(err))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	result := h.ingest.Ingest(c.Request.Context(), &req)

	c.JSON(statusCode(result), dto.IngestEventResponse{
		EventID:       req.EventID,
		Status:        result.Status,
		Reason:        result.Reason,
		RetryAfterSec: result.RetryAfterSec,
	})
}

// ingestEventsBulk handles POST /events/bulk. Events resolve independently;
// the response carries a per-event verdict.
func (h *Handler) ingestEventsBulk(c *gin.Context) {
	var req dto.IngestEventsBulkRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid bulk event request", zap.Error(err))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	results := h.ingest.IngestBulk(c.Request.Context(), req.Events)

	resp := dto.IngestBulkResponse{Results: make([]dto.IngestEventResponse, 0, len(results))}
	for i, r := range results {
		switch r.Status {
		case dto.StatusAccepted:
			resp.Accepted++
		case dto.StatusDeduplicated:
			resp.Deduplicated++
		case dto.StatusRejected:
			resp.Rejected++
		case dto.StatusShed:
			resp.Shed++
		}
		resp.Results = append(resp.Results, dto.IngestEventResponse{
			EventID:       req.Events[i].EventID,
			Status:        r.Status,
			Reason:        r.Reason,
			RetryAfterSec: r.RetryAfterSec,
		})
	}

	h.log.Info("Bulk events processed",
		zap.Int("accepted", resp.Accepted),
		zap.Int("deduplicated", resp.Deduplicated),
		zap.Int("rejected", resp.Rejected),
		zap.Int("shed", resp.Shed))

	c.JSON(http.StatusAccepted, resp)
}

// statusCode maps an ingest verdict to its HTTP status. Dedupe hits return
// the same 202 as acceptance: idempotent from the producer's point of view.
func statusCode(r service.IngestResult) int {
	switch r.Status {
	case dto.StatusAccepted, dto.StatusDeduplicated:
		return http.StatusAccepted
	case dto.StatusShed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}
