package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all API routes
func SetupRoutes(handlers *Handlers) *gin.Engine {
	router := gin.Default()

	// Add CORS middleware
	router.Use(corsMiddleware())

	api := router.Group("/api")
	{
		logs := api.Group("/logs")
		{
			logs.POST("/generate", handlers.GenerateLogHandler)
			logs.GET("/status/:taskId", handlers.GetTaskStatusHandler)
			logs.GET("/view", handlers.ViewLogHandler)
			logs.GET("/download", handlers.DownloadLogByDateHandler)
			logs.GET("/download/:taskId", handlers.DownloadTaskLogHandler)
			logs.GET("/tasks", handlers.ListTasksHandler)
			logs.GET("/watch/:taskId", handlers.WatchTaskHandler)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return router
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, Retry-After")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
