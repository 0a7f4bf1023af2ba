package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
	"github.com/ronaldopdias/behavior-analytics-service/internal/dto"
)

// recordConsent handles POST /consent
func (h *Handler) recordConsent(c *gin.Context) {
	var req dto.RecordConsentRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid consent request", zap.Error(err))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	signals := domain.IdentitySignals{
		Fingerprint: req.Signals.Fingerprint,
		FallbackID:  req.Signals.FallbackID,
		SessionID:   req.Signals.SessionID,
	}
	prefs := domain.ConsentPreferences{
		Necessary:       req.Preferences.Necessary,
		Analytics:       req.Preferences.Analytics,
		Marketing:       req.Preferences.Marketing,
		Personalization: req.Preferences.Personalization,
	}

	rec, err := h.consent.Record(c.Request.Context(), signals, prefs)
	if err != nil {
		h.log.Error("Failed to record consent", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, consentResponse(rec))
}

// getConsent handles GET /consent/:identity_id
func (h *Handler) getConsent(c *gin.Context) {
	identityID := c.Param("identity_id")

	rec, err := h.consent.Get(c.Request.Context(), identityID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{
				Error:   "not_found",
				Message: "no consent record for identity",
			})
			return
		}
		h.log.Error("Failed to read consent record",
			zap.String("identity_id", identityID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, consentResponse(rec))
}

// revokeConsent handles POST /consent/:identity_id/revoke
func (h *Handler) revokeConsent(c *gin.Context) {
	identityID := c.Param("identity_id")

	if err := h.consent.Revoke(c.Request.Context(), identityID); err != nil {
		h.log.Error("Failed to revoke consent",
			zap.String("identity_id", identityID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"identity_id": identityID,
		"status":      "revoked",
	})
}

func consentResponse(rec *domain.ConsentRecord) dto.ConsentResponse {
	return dto.ConsentResponse{
		IdentityID: rec.IdentityID,
		Preferences: dto.ConsentPreferencesRequest{
			Necessary:       rec.Preferences.Necessary,
			Analytics:       rec.Preferences.Analytics,
			Marketing:       rec.Preferences.Marketing,
			Personalization: rec.Preferences.Personalization,
		},
		Version:    rec.Version,
		RecordedAt: rec.RecordedAt,
		Revoked:    rec.Revoked,
	}
}
