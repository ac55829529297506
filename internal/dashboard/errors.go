package dashboard

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/storyforge/internal/ado"
	"github.com/zulandar/storyforge/internal/innovation"
	"github.com/zulandar/storyforge/internal/settings"
)

const (
	msgNotConfigured = "Azure DevOps settings not configured"
	msgMissingFields = "Missing required fields: ado_org_url, ado_project, ado_pat"
)

// respondError maps a package error onto a status code and JSON body.
// Anything unrecognised is logged and reported as a 500.
func respondError(c *gin.Context, err error) {
	var verr *innovation.ValidationError
	var apiErr *ado.APIError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": verr.Message, "field": verr.Field})
	case errors.Is(err, innovation.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": innovation.ErrNotFound.Error()})
	case errors.Is(err, settings.ErrNotConfigured):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msgNotConfigured})
	case errors.Is(err, settings.ErrMissingFields):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msgMissingFields})
	case errors.As(err, &apiErr):
		status := http.StatusBadGateway
		if apiErr.Status == http.StatusNotFound {
			status = http.StatusNotFound
		}
		log.Printf("dashboard: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(status, gin.H{"success": false, "error": apiErr.Message, "status": apiErr.Status})
	default:
		log.Printf("dashboard: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// badRequest is the plain 400 used for malformed input.
func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
