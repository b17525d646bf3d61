package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the vault handlers, metrics and CORS onto a gin engine.
// An empty origins list allows any origin.
func NewRouter(h *Handler, gatherer prometheus.Gatherer, origins []string) *gin.Engine {
	r := gin.Default()

	cc := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
	}
	if len(origins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = origins
		cc.AllowCredentials = true
	}
	r.Use(cors.New(cc))

	r.GET("/healthz", h.Health)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	{
		api.GET("/strategies", h.ListStrategies)
		api.POST("/strategies", h.AddStrategy)
		api.GET("/strategies/:address", h.GetStrategy)

		s := api.Group("/sessions/:id")
		s.POST("/connect", h.Connect)
		s.POST("/disconnect", h.Disconnect)
		s.POST("/mode/toggle", h.ToggleMode)
		s.GET("/balance", h.Balance)
		s.POST("/deposit", h.Deposit)
		s.POST("/withdraw", h.Withdraw)
		s.GET("/withdraw/preview", h.PreviewWithdraw)
		s.GET("/transactions", h.Transactions)
		s.GET("/performance", h.Performance)
		s.GET("/ws", h.Stream)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}
