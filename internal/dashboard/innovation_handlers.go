package dashboard

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/storyforge/internal/innovation"
	"github.com/zulandar/storyforge/internal/models"
	"github.com/zulandar/storyforge/internal/notify"
)

// notifyTimeout bounds a single chat delivery.
const notifyTimeout = 10 * time.Second

func handleListInnovation(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := innovation.List(d.db, c.Query("stage"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "items": items})
	}
}

func handleGetInnovation(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := innovationID(c)
		if !ok {
			return
		}
		item, err := innovation.Get(d.db, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "item": item})
	}
}

func handleCreateInnovation(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var opts innovation.CreateOpts
		if err := c.ShouldBindJSON(&opts); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request body"})
			return
		}
		item, err := innovation.Create(d.db, opts)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"success": true, "item": item})
	}
}

func handleUpdateInnovation(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := innovationID(c)
		if !ok {
			return
		}
		var p innovation.Patch
		if err := c.ShouldBindJSON(&p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request body"})
			return
		}
		before, err := innovation.Get(d.db, id)
		if err != nil {
			respondError(c, err)
			return
		}
		item, err := innovation.Update(d.db, id, p)
		if err != nil {
			respondError(c, err)
			return
		}
		if item.Stage != before.Stage {
			d.announce(before.Stage, item)
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "item": item})
	}
}

func handleDeleteInnovation(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := innovationID(c)
		if !ok {
			return
		}
		if err := innovation.Delete(d.db, id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "deleted": id})
	}
}

type stageRequest struct {
	Stage           string `json:"stage"`
	RejectionReason string `json:"rejection_reason"`
}

func handleMoveInnovation(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := innovationID(c)
		if !ok {
			return
		}
		var req stageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request body"})
			return
		}
		before, err := innovation.Get(d.db, id)
		if err != nil {
			respondError(c, err)
			return
		}
		item, err := innovation.MoveStage(d.db, id, req.Stage, req.RejectionReason)
		if err != nil {
			respondError(c, err)
			return
		}
		if item.Stage != before.Stage {
			d.announce(before.Stage, item)
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "item": item})
	}
}

func handleReorderInnovation(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := innovationID(c)
		if !ok {
			return
		}
		var req struct {
			NewOrder interface{} `json:"newOrder"`
		}
		_ = c.ShouldBindJSON(&req)
		n, isNum := req.NewOrder.(float64)
		if !isNum || n != float64(int(n)) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "newOrder must be a number"})
			return
		}
		item, err := innovation.Reorder(d.db, id, int(n))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "item": item})
	}
}

func handleInnovationStats(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := innovation.GetStats(d.db)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
	}
}

func handleInnovationStages() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "stages": innovation.Stages()})
	}
}

// innovationID parses the :id path parameter. A non-numeric id cannot name
// an item, so it is reported as not found.
func innovationID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, innovation.ErrNotFound)
		return 0, false
	}
	return uint(id), true
}

// announce sends a stage change to the notifier in the background. Delivery
// failures are logged and never reach the caller.
func (d *deps) announce(from string, item *models.InnovationItem) {
	evt := innovationEvent(from, item)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := d.notifier.Notify(ctx, evt); err != nil {
			log.Printf("dashboard: notify stage change for item %d: %v", evt.ItemID, err)
		}
	}()
}

func innovationEvent(from string, item *models.InnovationItem) notify.Event {
	evt := notify.Event{
		ItemID:    item.ID,
		Title:     item.Title,
		FromStage: from,
		ToStage:   item.Stage,
		RiceScore: item.RiceScore,
		At:        item.StageChangedAt,
	}
	if item.Stage == innovation.StageRejected && item.RejectionReason != nil {
		evt.Reason = *item.RejectionReason
	}
	return evt
}
