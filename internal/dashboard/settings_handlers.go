package dashboard

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/storyforge/internal/ado"
	"github.com/zulandar/storyforge/internal/settings"
)

func handleGetSettings(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := d.settings.Sanitized()
		if errors.Is(err, settings.ErrNotConfigured) {
			c.JSON(http.StatusNotFound, gin.H{"configured": false, "message": "Settings not configured"})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"configured": true, "settings": s})
	}
}

func handleSaveSettings(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in settings.Input
		if err := c.ShouldBindJSON(&in); err != nil {
			badRequest(c, msgMissingFields)
			return
		}
		if _, err := d.settings.Save(in); err != nil {
			if errors.Is(err, settings.ErrMissingFields) {
				badRequest(c, msgMissingFields)
				return
			}
			respondError(c, err)
			return
		}
		s, err := d.settings.Sanitized()
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"message":  "Settings saved successfully",
			"settings": s,
		})
	}
}

// handleTestADO checks the stored connection and, when it works, records the
// project's work item types and inferred process template. Connection
// failures are reported in the body with a 200.
func handleTestADO(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		client, err := d.ado.Client()
		if err != nil {
			msg := err.Error()
			if errors.Is(err, settings.ErrNotConfigured) {
				msg = msgNotConfigured
			}
			c.JSON(http.StatusOK, gin.H{"success": false, "error": msg})
			return
		}

		ctx := c.Request.Context()
		project, err := client.TestConnection(ctx)
		if err != nil {
			log.Printf("dashboard: test ado connection: %v", err)
			body := gin.H{"success": false, "error": err.Error()}
			var apiErr *ado.APIError
			if errors.As(err, &apiErr) {
				body["error"] = apiErr.Message
				body["status"] = apiErr.Status
			}
			c.JSON(http.StatusOK, body)
			return
		}

		result := gin.H{
			"success": true,
			"message": "Successfully connected to Azure DevOps",
			"project": gin.H{
				"name":  project.Name,
				"id":    project.ID,
				"state": project.State,
				"url":   project.URL,
			},
		}

		types, err := client.WorkItemTypes(ctx)
		switch {
		case err != nil:
			log.Printf("dashboard: fetch work item types: %v", err)
			result["workItemTypesError"] = "Could not fetch work item types"
		case len(types) > 0:
			tmpl := ado.InferProcessTemplate(types)
			if err := d.settings.UpdateWorkItemTypes(types, tmpl); err != nil {
				log.Printf("dashboard: store work item types: %v", err)
			}
			result["workItemTypes"] = types
			result["processTemplate"] = tmpl
		}
		c.JSON(http.StatusOK, result)
	}
}
