package api

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthChecker is satisfied by *db.DB. The memory store has nothing to
// check and passes nil.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// SweepTrigger is satisfied by *campaign.Sweeper.
type SweepTrigger interface {
	SweepOnce(ctx context.Context) (int, error)
}

type OpsHandler struct {
	db     HealthChecker
	sweep  SweepTrigger
	logger *zap.Logger
}

func NewOpsHandler(db HealthChecker, sweep SweepTrigger, logger *zap.Logger) *OpsHandler {
	return &OpsHandler{db: db, sweep: sweep, logger: logger}
}

// Health handles GET /v1/health. Load balancers call it without a token.
func (h *OpsHandler) Health(c *gin.Context) {
	if h.db != nil {
		if err := h.db.Health(c.Request.Context()); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Sweep handles POST /internal/sweep, the on-demand form of the periodic
// scheduled-campaign sweep.
func (h *OpsHandler) Sweep(c *gin.Context) {
	n, err := h.sweep.SweepOnce(c.Request.Context())
	if err != nil {
		h.logger.Error("sweep failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sweep failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"started": n})
}

// internalOnly admits callers presenting the shared internal token.
func internalOnly(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader("X-Internal-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid internal token"})
			return
		}
		c.Next()
	}
}
