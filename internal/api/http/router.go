package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Authenticator interface {
	RequireIdentity() gin.HandlerFunc
}

type Controllers struct {
	Relay     *RelayController
	Directory *DirectoryController
	Alerts    *AlertController
}

func SetupRouter(allowOrigins []string, gate Authenticator, c Controllers) *gin.Engine {
	router := gin.Default()
	config := cors.DefaultConfig()
	config.AllowOrigins = allowOrigins
	config.AllowCredentials = true
	config.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"Origin",
		"Accept",
	}
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	router.Use(cors.New(config))
	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")

	if c.Directory != nil {
		api.POST("/principals", c.Directory.RegisterPrincipal)
		api.POST("/observers", c.Directory.LinkObserver)
		api.POST("/observers/link", gate.RequireIdentity(), c.Directory.Relink)
		api.GET("/me", gate.RequireIdentity(), c.Directory.Me)
	}

	if c.Alerts != nil {
		api.POST("/sos/alert", gate.RequireIdentity(), c.Alerts.TriggerAlert)
	}

	if c.Relay != nil {
		api.GET("/ws", gate.RequireIdentity(), c.Relay.Serve)
	}

	return router
}
