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

type TagHandler struct {
	tags   *service.TagService
	logger *zap.Logger
}

func NewTagHandler(tags *service.TagService, logger *zap.Logger) *TagHandler {
	return &TagHandler{tags: tags, logger: logger}
}

type tagRequest struct {
	Name        string `json:"name" binding:"required"`
	Color       string `json:"color"`
	Description string `json:"description"`
}

func (r tagRequest) input() service.TagInput {
	return service.TagInput{Name: r.Name, Color: r.Color, Description: r.Description}
}

// Create handles POST /v1/tags.
func (h *TagHandler) Create(c *gin.Context) {
	var req tagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := h.tags.Create(c.Request.Context(), middleware.GetCompanyID(c), req.input())
	if err != nil {
		respondError(c, h.logger, err, "failed to create tag")
		return
	}
	c.JSON(http.StatusCreated, t)
}

// List handles GET /v1/tags.
func (h *TagHandler) List(c *gin.Context) {
	tags, err := h.tags.List(c.Request.Context(), middleware.GetCompanyID(c))
	if err != nil {
		respondError(c, h.logger, err, "failed to list tags")
		return
	}
	c.JSON(http.StatusOK, tags)
}

// Get handles GET /v1/tags/:id.
func (h *TagHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	t, err := h.tags.Get(c.Request.Context(), middleware.GetCompanyID(c), id)
	if err != nil {
		respondError(c, h.logger, err, "failed to get tag")
		return
	}
	c.JSON(http.StatusOK, t)
}

// Update handles PUT /v1/tags/:id.
func (h *TagHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req tagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := h.tags.Update(c.Request.Context(), middleware.GetCompanyID(c), id, req.input())
	if err != nil {
		respondError(c, h.logger, err, "failed to update tag")
		return
	}
	c.JSON(http.StatusOK, t)
}

// Delete handles DELETE /v1/tags/:id. Associations, rules and list
// references go with it.
func (h *TagHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.tags.Delete(c.Request.Context(), middleware.GetCompanyID(c), id); err != nil {
		respondError(c, h.logger, err, "failed to delete tag")
		return
	}
	c.Status(http.StatusNoContent)
}

// Profiles handles GET /v1/tags/:id/profiles?limit=50&skip=0.
func (h *TagHandler) Profiles(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	limit, skip, ok := page(c)
	if !ok {
		return
	}
	profiles, err := h.tags.ProfilesWithTag(c.Request.Context(), middleware.GetCompanyID(c), id, limit, skip)
	if err != nil {
		respondError(c, h.logger, err, "failed to list tagged profiles")
		return
	}
	c.JSON(http.StatusOK, profiles)
}

type bulkTagRequest struct {
	ProfileIDs []uuid.UUID    `json:"profile_ids" binding:"required,min=1"`
	TagIDs     []uuid.UUID    `json:"tag_ids" binding:"required,min=1"`
	AddedBy    models.AddedBy `json:"added_by"`
}

// Bulk handles POST /v1/tags/bulk.
func (h *TagHandler) Bulk(c *gin.Context) {
	var req bulkTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	added, err := h.tags.BulkAdd(c.Request.Context(), middleware.GetCompanyID(c), req.ProfileIDs, req.TagIDs, req.AddedBy)
	if err != nil {
		respondError(c, h.logger, err, "failed to bulk tag")
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": added})
}
