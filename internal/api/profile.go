package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalith-99/cdpcore/internal/middleware"
	"github.com/lalith-99/cdpcore/internal/models"
	"github.com/lalith-99/cdpcore/internal/service"
)

type ProfileHandler struct {
	identity *service.IdentityService
	tags     *service.TagService
	logger   *zap.Logger
}

func NewProfileHandler(identity *service.IdentityService, tags *service.TagService, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{identity: identity, tags: tags, logger: logger}
}

// List handles GET /v1/profiles?limit=50&skip=0.
func (h *ProfileHandler) List(c *gin.Context) {
	limit, skip, ok := page(c)
	if !ok {
		return
	}
	profiles, err := h.identity.ListProfiles(c.Request.Context(), middleware.GetCompanyID(c), limit, skip)
	if err != nil {
		respondError(c, h.logger, err, "failed to list profiles")
		return
	}
	c.JSON(http.StatusOK, profiles)
}

// Get handles GET /v1/profiles/:id.
func (h *ProfileHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	detail, err := h.identity.GetProfile(c.Request.Context(), middleware.GetCompanyID(c), id)
	if err != nil {
		respondError(c, h.logger, err, "failed to get profile")
		return
	}
	c.JSON(http.StatusOK, detail)
}

// Tags handles GET /v1/profiles/:id/tags.
func (h *ProfileHandler) Tags(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	tags, err := h.tags.TagsForProfile(c.Request.Context(), middleware.GetCompanyID(c), id)
	if err != nil {
		respondError(c, h.logger, err, "failed to list profile tags")
		return
	}
	c.JSON(http.StatusOK, tags)
}

type addTagRequest struct {
	TagID    uuid.UUID      `json:"tag_id" binding:"required"`
	AddedBy  models.AddedBy `json:"added_by"`
	Metadata map[string]any `json:"metadata"`
}

// AddTag handles POST /v1/profiles/:id/tags. Adding a tag the profile
// already has returns the existing association with 200.
func (h *ProfileHandler) AddTag(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req addTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	assoc, created, err := h.tags.AddTag(c.Request.Context(), middleware.GetCompanyID(c), id, req.TagID, req.AddedBy, req.Metadata)
	if err != nil {
		respondError(c, h.logger, err, "failed to add tag")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, assoc)
}

// RemoveTag handles DELETE /v1/profiles/:id/tags/:tagId.
func (h *ProfileHandler) RemoveTag(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	tagID, ok := pathID(c, "tagId")
	if !ok {
		return
	}
	if err := h.tags.RemoveTag(c.Request.Context(), middleware.GetCompanyID(c), id, tagID); err != nil {
		respondError(c, h.logger, err, "failed to remove tag")
		return
	}
	c.Status(http.StatusNoContent)
}
