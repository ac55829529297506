package dashboard

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/storyforge/internal/ado"
	"github.com/zulandar/storyforge/internal/settings"
	"github.com/zulandar/storyforge/internal/stagegate"
	"github.com/zulandar/storyforge/internal/visibility"
	"github.com/zulandar/storyforge/internal/workitem"
)

func handleStageGateFeatures(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		client, err := d.ado.Client()
		if err != nil {
			respondError(c, err)
			return
		}
		board, err := StageGateBoard(c.Request.Context(), d.db, client, orderByCreated)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"features": board.Features,
			"grouped":  board.Grouped,
			"counts":   board.Counts,
		})
	}
}

func handleStageGateFeature(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := workItemID(c)
		if !ok {
			return
		}
		client, err := d.ado.Client()
		if err != nil {
			respondError(c, err)
			return
		}
		item, err := client.WorkItem(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		f := stagegate.Annotate([]workitem.WorkItem{*item})[0]
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"feature": gin.H{
				"id":            f.ID,
				"title":         f.Title,
				"description":   f.Description,
				"state":         f.State,
				"stage":         f.Stage,
				"assignedTo":    f.AssignedTo,
				"createdDate":   f.CreatedDate,
				"changedDate":   f.ChangedDate,
				"createdBy":     f.CreatedBy,
				"parent":        f.ParentID,
				"workItemType":  f.Type,
				"areaPath":      f.AreaPath,
				"iterationPath": f.IterationPath,
				"adoUrl":        client.EditURL(f.ID),
			},
		})
	}
}

type priorityUpdate struct {
	ID       int `json:"id"`
	Priority int `json:"priority"`
}

type priorityResult struct {
	ID      int    `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// handleUpdatePriorities writes each priority separately. One failing item
// does not stop the others.
func handleUpdatePriorities(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Updates []priorityUpdate `json:"updates"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Updates == nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request: updates array required"})
			return
		}
		client, err := d.ado.Client()
		if err != nil {
			respondError(c, err)
			return
		}

		ctx := c.Request.Context()
		results := make([]priorityResult, 0, len(req.Updates))
		updated := 0
		for _, u := range req.Updates {
			ops := []workitem.PatchOperation{workitem.AddField(ado.FieldPriority, u.Priority)}
			if _, err := client.UpdateWorkItem(ctx, u.ID, ops); err != nil {
				log.Printf("dashboard: update priority #%d: %v", u.ID, err)
				results = append(results, priorityResult{ID: u.ID, Error: err.Error()})
				continue
			}
			updated++
			results = append(results, priorityResult{ID: u.ID, Success: true})
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"updated": updated,
			"total":   len(req.Updates),
			"results": results,
		})
	}
}

func handleRoadmap(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		client, err := d.ado.Client()
		if errors.Is(err, settings.ErrNotConfigured) {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgNotConfigured + ". Please configure in Settings."})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		rm, err := RoadmapFeatures(c.Request.Context(), d.db, client, true)
		if err != nil {
			log.Printf("dashboard: roadmap features: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Failed to fetch roadmap features",
				"message": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, rm)
	}
}

type visibilityRow struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	State     string `json:"state"`
	IsVisible bool   `json:"isVisible"`
}

func handleListVisibility(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		client, err := d.ado.Client()
		if err != nil {
			respondError(c, err)
			return
		}
		items, err := client.Features(c.Request.Context(), ado.FeatureQuery{
			ExcludeStates: []string{"Removed"},
			OrderBy:       orderByTitle,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		overrides, err := visibility.All(d.db)
		if err != nil {
			respondError(c, err)
			return
		}
		rows := make([]visibilityRow, 0, len(items))
		for _, it := range items {
			visible, set := overrides[it.ID]
			rows = append(rows, visibilityRow{
				ID:        it.ID,
				Title:     it.Title,
				State:     it.State,
				IsVisible: !set || visible,
			})
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "features": rows})
	}
}

func handleUpdateVisibility(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var u visibility.Update
		if err := c.ShouldBindJSON(&u); err != nil || u.FeatureID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "featureId is required"})
			return
		}
		if err := visibility.Set(d.db, u.FeatureID, u.IsVisible); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "featureId": u.FeatureID, "isVisible": u.IsVisible})
	}
}

func handleBulkVisibility(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Updates []visibility.Update `json:"updates"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Updates == nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "updates array is required"})
			return
		}
		for _, u := range req.Updates {
			if u.FeatureID <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "featureId is required"})
				return
			}
		}
		if err := visibility.BulkSet(d.db, req.Updates); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "updated": len(req.Updates)})
	}
}
