package dashboard

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// registerRoutes sets up every API route on the Gin router.
func registerRoutes(router *gin.Engine, d *deps) {
	api := router.Group("/api")
	api.GET("/health", handleHealth())
	api.GET("/events", handleSSE(d.db))

	s := api.Group("/settings")
	s.GET("", handleGetSettings(d))
	s.POST("", handleSaveSettings(d))
	s.POST("/test-ado", handleTestADO(d))

	a := api.Group("/ado")
	a.GET("/epics", handleEpics(d))
	a.GET("/work-items/recent", handleRecentWorkItems(d))
	a.POST("/work-items", handleCreateWorkItem(d))
	a.GET("/work-items/:id", handleWorkItem(d))
	a.PATCH("/work-items/:id/update", handleUpdateWorkItem(d))
	a.PATCH("/work-items/:id/move", handleMoveWorkItem(d))
	a.POST("/cache/refresh", handleCacheRefresh(d))
	a.GET("/cache/stats", handleCacheStats(d))
	a.POST("/search", handleSearch(d))
	a.GET("/backlog", handleBacklog(d))
	a.GET("/wiki/search", handleWikiSearch(d))
	a.GET("/feature/:id", handleFeatureDetail(d))

	api.GET("/roadmap/features", handleRoadmap(d))

	sg := api.Group("/stagegate")
	sg.GET("/features", handleStageGateFeatures(d))
	sg.GET("/feature/:id", handleStageGateFeature(d))
	sg.POST("/update-priorities", handleUpdatePriorities(d))

	fv := api.Group("/feature-visibility")
	fv.GET("", handleListVisibility(d))
	fv.POST("/update", handleUpdateVisibility(d))
	fv.POST("/bulk-update", handleBulkVisibility(d))

	in := api.Group("/innovation")
	in.GET("/items", handleListInnovation(d))
	in.POST("/items", handleCreateInnovation(d))
	in.GET("/items/:id", handleGetInnovation(d))
	in.PUT("/items/:id", handleUpdateInnovation(d))
	in.DELETE("/items/:id", handleDeleteInnovation(d))
	in.PATCH("/items/:id/stage", handleMoveInnovation(d))
	in.PATCH("/items/:id/order", handleReorderInnovation(d))
	in.GET("/stats", handleInnovationStats(d))
	in.GET("/stages", handleInnovationStages())

	ex := api.Group("/export")
	ex.GET("/roadmap-html", handleExportRoadmap(d))
	ex.GET("/stagegate-html", handleExportStageGate(d))
}

func handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
