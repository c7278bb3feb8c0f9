package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalith-99/cdpcore/internal/middleware"
	"github.com/lalith-99/cdpcore/internal/service"
)

type RuleHandler struct {
	rules  *service.RuleService
	logger *zap.Logger
}

func NewRuleHandler(rules *service.RuleService, logger *zap.Logger) *RuleHandler {
	return &RuleHandler{rules: rules, logger: logger}
}

type ruleRequest struct {
	TagID      uuid.UUID `json:"tag_id" binding:"required"`
	Name       string    `json:"name" binding:"required"`
	Expression string    `json:"expression" binding:"required"`
	Enabled    *bool     `json:"enabled"`
}

// Create handles POST /v1/rules. Rules are enabled unless the body says
// otherwise.
func (h *RuleHandler) Create(c *gin.Context) {
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	rule, err := h.rules.Create(c.Request.Context(), middleware.GetCompanyID(c), service.RuleInput{
		TagID:      req.TagID,
		Name:       req.Name,
		Expression: req.Expression,
		Enabled:    enabled,
	})
	if err != nil {
		respondError(c, h.logger, err, "failed to create rule")
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// List handles GET /v1/rules.
func (h *RuleHandler) List(c *gin.Context) {
	rules, err := h.rules.List(c.Request.Context(), middleware.GetCompanyID(c))
	if err != nil {
		respondError(c, h.logger, err, "failed to list rules")
		return
	}
	c.JSON(http.StatusOK, rules)
}

// Delete handles DELETE /v1/rules/:id.
func (h *RuleHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.rules.Delete(c.Request.Context(), middleware.GetCompanyID(c), id); err != nil {
		respondError(c, h.logger, err, "failed to delete rule")
		return
	}
	c.Status(http.StatusNoContent)
}
