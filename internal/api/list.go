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

type ListHandler struct {
	lists  *service.ListService
	logger *zap.Logger
}

func NewListHandler(lists *service.ListService, logger *zap.Logger) *ListHandler {
	return &ListHandler{lists: lists, logger: logger}
}

type createListRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Tags        []uuid.UUID     `json:"tags"`
	TagLogic    models.TagLogic `json:"tag_logic"`
}

// Create handles POST /v1/lists.
func (h *ListHandler) Create(c *gin.Context) {
	var req createListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	l, err := h.lists.Create(c.Request.Context(), middleware.GetCompanyID(c), service.ListInput{
		Name:        req.Name,
		Description: req.Description,
		TagIDs:      req.Tags,
		TagLogic:    req.TagLogic,
	})
	if err != nil {
		respondError(c, h.logger, err, "failed to create list")
		return
	}
	c.JSON(http.StatusCreated, l)
}

// List handles GET /v1/lists.
func (h *ListHandler) List(c *gin.Context) {
	lists, err := h.lists.List(c.Request.Context(), middleware.GetCompanyID(c))
	if err != nil {
		respondError(c, h.logger, err, "failed to list lists")
		return
	}
	c.JSON(http.StatusOK, lists)
}

// Get handles GET /v1/lists/:id.
func (h *ListHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	l, err := h.lists.Get(c.Request.Context(), middleware.GetCompanyID(c), id)
	if err != nil {
		respondError(c, h.logger, err, "failed to get list")
		return
	}
	c.JSON(http.StatusOK, l)
}

// updateListRequest uses pointers so an omitted field is left alone.
type updateListRequest struct {
	Name        *string            `json:"name"`
	Description *string            `json:"description"`
	Tags        *[]uuid.UUID       `json:"tags"`
	TagLogic    *models.TagLogic   `json:"tag_logic"`
	Status      *models.ListStatus `json:"status"`
}

// Update handles PATCH /v1/lists/:id.
func (h *ListHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	patch := service.ListPatch{
		Name:        req.Name,
		Description: req.Description,
		TagLogic:    req.TagLogic,
		Status:      req.Status,
	}
	if req.Tags != nil {
		patch.TagIDs = *req.Tags
		patch.SetTags = true
	}

	l, err := h.lists.Update(c.Request.Context(), middleware.GetCompanyID(c), id, patch)
	if err != nil {
		respondError(c, h.logger, err, "failed to update list")
		return
	}
	c.JSON(http.StatusOK, l)
}

// Archive handles POST /v1/lists/:id/archive.
func (h *ListHandler) Archive(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	l, err := h.lists.Archive(c.Request.Context(), middleware.GetCompanyID(c), id)
	if err != nil {
		respondError(c, h.logger, err, "failed to archive list")
		return
	}
	c.JSON(http.StatusOK, l)
}

// Delete handles DELETE /v1/lists/:id.
func (h *ListHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.lists.Delete(c.Request.Context(), middleware.GetCompanyID(c), id); err != nil {
		respondError(c, h.logger, err, "failed to delete list")
		return
	}
	c.Status(http.StatusNoContent)
}

// Members handles GET /v1/lists/:id/members?limit=50&skip=0.
func (h *ListHandler) Members(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	limit, skip, ok := page(c)
	if !ok {
		return
	}
	members, err := h.lists.GetMembers(c.Request.Context(), middleware.GetCompanyID(c), id, limit, skip)
	if err != nil {
		respondError(c, h.logger, err, "failed to list members")
		return
	}
	c.JSON(http.StatusOK, members)
}

// Refresh handles POST /v1/lists/:id/refresh.
func (h *ListHandler) Refresh(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	count, err := h.lists.RefreshCount(c.Request.Context(), middleware.GetCompanyID(c), id)
	if err != nil {
		respondError(c, h.logger, err, "failed to refresh list")
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile_count": count})
}

// Sync handles POST /v1/lists/:id/sync. It tags every profile that still
// carries the list's short id marker.
func (h *ListHandler) Sync(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	res, err := h.lists.SyncListTags(c.Request.Context(), middleware.GetCompanyID(c), id)
	if err != nil {
		respondError(c, h.logger, err, "failed to sync list")
		return
	}
	c.JSON(http.StatusOK, res)
}
