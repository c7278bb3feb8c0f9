package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lalith-99/cdpcore/internal/middleware"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth      *AuthHandler
	Track     *TrackHandler
	Profiles  *ProfileHandler
	Tags      *TagHandler
	Lists     *ListHandler
	Campaigns *CampaignHandler
	Rules     *RuleHandler
	Ops       *OpsHandler
}

// RouterConfig holds the secrets the route groups need.
type RouterConfig struct {
	JWTSecret     string
	InternalToken string
}

// NewRouter mounts every route on r. Callers install logging and
// recovery middleware before calling it.
func NewRouter(r *gin.Engine, h Handlers, cfg RouterConfig) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/v1/health", h.Ops.Health)

	if cfg.InternalToken != "" {
		internal := r.Group("/internal", internalOnly(cfg.InternalToken))
		internal.POST("/sweep", h.Ops.Sweep)
	}

	// Public: the tracking snippet and operator sign-in.
	public := r.Group("/v1")
	public.POST("/track/events", h.Track.Events)
	public.POST("/track/identify", h.Track.Identify)
	public.POST("/auth/signup", h.Auth.Signup)
	public.POST("/auth/login", h.Auth.Login)

	v1 := r.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg.JWTSecret))

	v1.GET("/me", h.Auth.Me)

	v1.GET("/profiles", h.Profiles.List)
	v1.GET("/profiles/:id", h.Profiles.Get)
	v1.GET("/profiles/:id/tags", h.Profiles.Tags)
	v1.POST("/profiles/:id/tags", h.Profiles.AddTag)
	v1.DELETE("/profiles/:id/tags/:tagId", h.Profiles.RemoveTag)

	v1.POST("/tags", h.Tags.Create)
	v1.GET("/tags", h.Tags.List)
	v1.POST("/tags/bulk", h.Tags.Bulk)
	v1.GET("/tags/:id", h.Tags.Get)
	v1.PUT("/tags/:id", h.Tags.Update)
	v1.DELETE("/tags/:id", h.Tags.Delete)
	v1.GET("/tags/:id/profiles", h.Tags.Profiles)

	v1.POST("/lists", h.Lists.Create)
	v1.GET("/lists", h.Lists.List)
	v1.GET("/lists/:id", h.Lists.Get)
	v1.PATCH("/lists/:id", h.Lists.Update)
	v1.DELETE("/lists/:id", h.Lists.Delete)
	v1.GET("/lists/:id/members", h.Lists.Members)
	v1.POST("/lists/:id/refresh", h.Lists.Refresh)
	v1.POST("/lists/:id/sync", h.Lists.Sync)
	v1.POST("/lists/:id/archive", h.Lists.Archive)

	v1.POST("/campaigns", h.Campaigns.Create)
	v1.GET("/campaigns", h.Campaigns.List)
	v1.GET("/campaigns/:id", h.Campaigns.Get)
	v1.PUT("/campaigns/:id", h.Campaigns.Update)
	v1.DELETE("/campaigns/:id", h.Campaigns.Delete)
	v1.POST("/campaigns/:id/send", h.Campaigns.Send)
	v1.POST("/campaigns/:id/pause", h.Campaigns.Pause)
	v1.GET("/campaigns/:id/stats", h.Campaigns.Stats)
	v1.GET("/campaigns/:id/stats/ws", h.Campaigns.StreamStats)

	v1.POST("/rules", h.Rules.Create)
	v1.GET("/rules", h.Rules.List)
	v1.DELETE("/rules/:id", h.Rules.Delete)
}
