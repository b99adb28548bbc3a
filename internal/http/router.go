package http

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
	// LoopbackOnly rejects requests that do not come from this machine.
	LoopbackOnly bool `mapstructure:"loopbackOnly"`
}

func NewRouter(h *Handler, cfg RouterConfig, metrics prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	origins := normalizeOrigins(cfg.AllowedOrigins)
	if len(origins) == 0 {
		origins = DefaultAllowedOrigins
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Retry-After"},
	}))
	if cfg.LoopbackOnly {
		r.Use(loopbackOnly())
	}

	api := r.Group("/api")
	{
		api.GET("/health", h.Health)

		api.GET("/session", h.Session)
		api.POST("/session/connect", h.Connect)
		api.POST("/session/disconnect", h.Disconnect)

		api.GET("/roles/:address", h.Roles)
		api.POST("/roles/refresh", h.RefreshRoles)

		api.GET("/token", h.Token)
		api.GET("/balances/:address", h.Balance)
		api.GET("/transfers", h.Transfers)

		// Writes answer 202 with a ticket once submitted. A write of the same kind sent
		// before the previous ticket resolved is refused with 409 and Retry-After; it is not
		// queued, so the caller resubmits after polling /transactions/:id.
		api.POST("/admin/beneficiaries", h.AddBeneficiary)
		api.POST("/admin/vendors", h.AddVendor)
		api.POST("/admin/mint", h.Mint)
		api.POST("/transfers", h.Transfer)

		api.GET("/transactions/:id", h.Transaction)
	}

	if metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics, promhttp.HandlerOpts{})))
	}
	return r
}

func loopbackOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isLoopbackRequest(c.Request) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{JSONKeyError: HTTPErrorForbiddenText})
			return
		}
		c.Next()
	}
}
