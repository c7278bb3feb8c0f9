package api

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lalith-99/cdpcore/internal/middleware"
	"github.com/lalith-99/cdpcore/internal/models"
	"github.com/lalith-99/cdpcore/internal/service"
)

const (
	statsPollInterval = time.Second
	statsWriteWait    = 10 * time.Second
)

type CampaignHandler struct {
	campaigns      *service.CampaignService
	allowedOrigins []string
	logger         *zap.Logger
}

func NewCampaignHandler(campaigns *service.CampaignService, allowedOrigins []string, logger *zap.Logger) *CampaignHandler {
	return &CampaignHandler{campaigns: campaigns, allowedOrigins: allowedOrigins, logger: logger}
}

type campaignRequest struct {
	ListID  uuid.UUID      `json:"list_id" binding:"required"`
	Name    string         `json:"name" binding:"required"`
	Content models.Content `json:"content"`
}

func (r campaignRequest) input() service.CampaignInput {
	return service.CampaignInput{ListID: r.ListID, Name: r.Name, Content: r.Content}
}

// Create handles POST /v1/campaigns.
func (h *CampaignHandler) Create(c *gin.Context) {
	var req campaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	camp, err := h.campaigns.Create(c.Request.Context(), middleware.GetCompanyID(c), middleware.GetOperatorID(c), req.input())
	if err != nil {
		respondError(c, h.logger, err, "failed to create campaign")
		return
	}
	c.JSON(http.StatusCreated, camp)
}

// List handles GET /v1/campaigns.
func (h *CampaignHandler) List(c *gin.Context) {
	camps, err := h.campaigns.List(c.Request.Context(), middleware.GetCompanyID(c))
	if err != nil {
		respondError(c, h.logger, err, "failed to list campaigns")
		return
	}
	c.JSON(http.StatusOK, camps)
}

// Get handles GET /v1/campaigns/:id.
func (h *CampaignHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	camp, err := h.campaigns.Get(c.Request.Context(), middleware.GetCompanyID(c), id)
	if err != nil {
		respondError(c, h.logger, err, "failed to get campaign")
		return
	}
	c.JSON(http.StatusOK, camp)
}

// Update handles PUT /v1/campaigns/:id. Only drafts are editable.
func (h *CampaignHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req campaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	camp, err := h.campaigns.Update(c.Request.Context(), middleware.GetCompanyID(c), id, req.input())
	if err != nil {
		respondError(c, h.logger, err, "failed to update campaign")
		return
	}
	c.JSON(http.StatusOK, camp)
}

// Delete handles DELETE /v1/campaigns/:id. Only drafts can be deleted.
func (h *CampaignHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.campaigns.Delete(c.Request.Context(), middleware.GetCompanyID(c), id); err != nil {
		respondError(c, h.logger, err, "failed to delete campaign")
		return
	}
	c.Status(http.StatusNoContent)
}

type sendRequest struct {
	// When is "now" or an RFC3339 time in the future.
	When string `json:"when" binding:"required"`
}

// Send handles POST /v1/campaigns/:id/send. The send itself runs in the
// background, so the answer is 202 with the campaign's new status.
func (h *CampaignHandler) Send(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	camp, err := h.campaigns.Send(c.Request.Context(), middleware.GetCompanyID(c), id, req.When)
	if err != nil {
		respondError(c, h.logger, err, "failed to send campaign")
		return
	}
	c.JSON(http.StatusAccepted, camp)
}

// Pause handles POST /v1/campaigns/:id/pause.
func (h *CampaignHandler) Pause(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	camp, err := h.campaigns.Pause(c.Request.Context(), middleware.GetCompanyID(c), id)
	if err != nil {
		respondError(c, h.logger, err, "failed to pause campaign")
		return
	}
	c.JSON(http.StatusOK, camp)
}

// Stats handles GET /v1/campaigns/:id/stats.
func (h *CampaignHandler) Stats(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	stats, err := h.campaigns.Stats(c.Request.Context(), middleware.GetCompanyID(c), id)
	if err != nil {
		respondError(c, h.logger, err, "failed to get campaign stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *CampaignHandler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(h.allowedOrigins) == 0 {
				return true
			}
			if slices.Contains(h.allowedOrigins, origin) {
				return true
			}
			h.logger.Warn("websocket origin rejected", zap.String("origin", origin))
			return false
		},
	}
}

// terminal reports whether no further stats changes can happen without an
// operator action.
func terminal(s models.CampaignStatus) bool {
	switch s {
	case models.CampaignSent, models.CampaignFailed, models.CampaignPaused, models.CampaignDraft:
		return true
	}
	return false
}

// StreamStats handles GET /v1/campaigns/:id/stats/ws. It pushes a stats
// frame every second until the campaign stops moving or the client leaves.
func (h *CampaignHandler) StreamStats(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	companyID := middleware.GetCompanyID(c)

	// Resolve before upgrading so a missing campaign is a plain 404.
	if _, err := h.campaigns.Stats(c.Request.Context(), companyID, id); err != nil {
		respondError(c, h.logger, err, "failed to get campaign stats")
		return
	}

	up := h.upgrader()
	ws, err := up.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()

	// The client never sends anything useful; reading only detects close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ctx := c.Request.Context()
	ticker := time.NewTicker(statsPollInterval)
	defer ticker.Stop()

	for {
		stats, err := h.campaigns.Stats(ctx, companyID, id)
		if err != nil {
			h.logger.Warn("stats stream lookup failed", zap.String("campaign_id", id.String()), zap.Error(err))
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "stats unavailable"),
				time.Now().Add(statsWriteWait))
			return
		}

		_ = ws.SetWriteDeadline(time.Now().Add(statsWriteWait))
		if err := ws.WriteJSON(stats); err != nil {
			h.logger.Debug("stats stream ended", zap.String("campaign_id", id.String()), zap.Error(err))
			return
		}
		if terminal(stats.Status) {
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(stats.Status)),
				time.Now().Add(statsWriteWait))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-gone:
			return
		case <-ticker.C:
		}
	}
}
