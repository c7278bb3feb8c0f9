package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalith-99/cdpcore/internal/models"
	"github.com/lalith-99/cdpcore/internal/service"
)

// TrackHandler serves the tracking snippet. These routes are public: the
// snippet identifies its company by id in the body.
type TrackHandler struct {
	identity *service.IdentityService
	logger   *zap.Logger
}

func NewTrackHandler(identity *service.IdentityService, logger *zap.Logger) *TrackHandler {
	return &TrackHandler{identity: identity, logger: logger}
}

type trackRequest struct {
	CompanyID uuid.UUID      `json:"company_id" binding:"required"`
	SessionID string         `json:"sessionId" binding:"required"`
	ListID    string         `json:"list_id"`
	Events    []models.Event `json:"events" binding:"required,min=1"`
}

// Events handles POST /v1/track/events.
func (h *TrackHandler) Events(c *gin.Context) {
	var req trackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := h.identity.Track(c.Request.Context(), service.TrackInput{
		CompanyID: req.CompanyID,
		SessionID: req.SessionID,
		ListID:    req.ListID,
		Events:    req.Events,
	})
	if err != nil {
		respondError(c, h.logger, err, "failed to record events")
		return
	}
	c.JSON(http.StatusCreated, rec)
}

type identifyRequest struct {
	CompanyID uuid.UUID `json:"company_id" binding:"required"`
	SessionID string    `json:"sessionId" binding:"required"`
	Name      string    `json:"name"`
	Email     string    `json:"email" binding:"required,email"`
	Phone     string    `json:"phone"`
	Source    string    `json:"source"`
	ListID    string    `json:"list_id"`
}

// Identify handles POST /v1/track/identify. 201 when a profile was
// created, 200 when an existing one was updated.
func (h *TrackHandler) Identify(c *gin.Context) {
	var req identifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.identity.Identify(c.Request.Context(), service.IdentifyInput{
		CompanyID: req.CompanyID,
		SessionID: req.SessionID,
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Source:    req.Source,
		ListID:    req.ListID,
	})
	if err != nil {
		respondError(c, h.logger, err, "failed to identify")
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}
