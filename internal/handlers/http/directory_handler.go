package http

import (
	"net/http"

	"liveflow/internal/core/ports"
	"liveflow/internal/infrastructure/monitoring"

	"github.com/gin-gonic/gin"
)

// DirectoryHandler serves the read-only REST surface: the live stream
// directory, online statistics and health.
type DirectoryHandler struct {
	directory ports.Directory
	health    *monitoring.HealthChecker
}

func NewDirectoryHandler(directory ports.Directory, health *monitoring.HealthChecker) *DirectoryHandler {
	return &DirectoryHandler{
		directory: directory,
		health:    health,
	}
}

func (h *DirectoryHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/streams", h.ListStreams)
		api.GET("/stats", h.GetStats)
	}

	router.GET("/health", h.HealthCheck)
}

func (h *DirectoryHandler) ListStreams(c *gin.Context) {
	streams, err := h.directory.ListActive(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"streams": streams,
		"count":   len(streams),
	})
}

func (h *DirectoryHandler) GetStats(c *gin.Context) {
	streams, err := h.directory.ListActive(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"online_users":   h.directory.OnlineCount(),
		"active_streams": len(streams),
	})
}

func (h *DirectoryHandler) HealthCheck(c *gin.Context) {
	if h.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
		return
	}

	status := h.health.CheckAll(c.Request.Context())
	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}
