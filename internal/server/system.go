package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

func registerSystemRoutes(api *gin.RouterGroup, deps Dependencies) {
	app := deps.Config.App

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "success",
			"message":   "API is healthy",
			"uptime":    time.Since(deps.StartedAt).Round(time.Second).String(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	api.GET("/info", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "success",
			"data": gin.H{
				"name":        app.Name,
				"version":     app.Version,
				"environment": app.Env,
				"goVersion":   runtime.Version(),
				"platform":    runtime.GOOS + "/" + runtime.GOARCH,
				"uptime":      time.Since(deps.StartedAt).Round(time.Second).String(),
				"startedAt":   deps.StartedAt.UTC().Format(time.RFC3339),
			},
		})
	})

	api.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "success", "version": app.Version})
	})
}
