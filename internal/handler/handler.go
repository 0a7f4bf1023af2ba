package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ronaldopdias/behavior-analytics-service/internal/domain"
	"github.com/ronaldopdias/behavior-analytics-service/internal/service"
)

// ConsentAPI is the consent gate surface the handler exposes over HTTP.
type ConsentAPI interface {
	Record(ctx context.Context, signals domain.IdentitySignals, prefs domain.ConsentPreferences) (*domain.ConsentRecord, error)
	Revoke(ctx context.Context, identityID string) error
	Get(ctx context.Context, identityID string) (*domain.ConsentRecord, error)
}

// Handler serves the ingestion and consent API.
type Handler struct {
	ingest  service.IngestServicer
	consent ConsentAPI
	router  *gin.Engine
	log     *zap.Logger
}

func NewHandler(ingest service.IngestServicer, consent ConsentAPI, log *zap.Logger) *Handler {
	h := &Handler{
		ingest:  ingest,
		consent: consent,
		router:  gin.Default(),
		log:     log,
	}

	h.registerRoutes()

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/health", h.healthCheck)
	h.router.POST("/events", h.ingestEvent)
	h.router.POST("/events/bulk", h.ingestEventsBulk)
	h.router.POST("/consent", h.recordConsent)
	h.router.GET("/consent/:identity_id", h.getConsent)
	h.router.POST("/consent/:identity_id/revoke", h.revokeConsent)
	h.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}
