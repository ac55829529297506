package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/storyforge/internal/cache"
	"github.com/zulandar/storyforge/internal/models"
	"gorm.io/gorm"
)

// SSE polling intervals.
var (
	ssePoll      = 3 * time.Second
	sseHeartbeat = 15 * time.Second
)

// funnelEvent tells clients the innovation board changed.
type funnelEvent struct {
	ItemID    uint      `json:"id"`
	Title     string    `json:"title"`
	Stage     string    `json:"stage"`
	UpdatedAt time.Time `json:"updated_at"`
}

// cacheEvent tells clients a snapshot refresh finished.
type cacheEvent struct {
	Total       int64      `json:"total"`
	LastRefresh *time.Time `json:"last_refresh"`
}

// handleSSE streams change notifications. It polls for innovation items
// edited since the last tick and for a newer cache snapshot.
func handleSSE(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		// Baselines are taken before "connected" so nothing written after
		// the client sees it is missed.
		var lastItem, lastRefresh time.Time
		if db != nil {
			lastItem = latestInnovationChange(db)
			if stats, err := cache.GetStats(db); err == nil && stats.LastRefresh != nil {
				lastRefresh = *stats.LastRefresh
			}
		}

		writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
		c.Writer.Flush()

		if db == nil {
			return
		}

		ctx := c.Request.Context()
		ticker := time.NewTicker(ssePoll)
		heartbeat := time.NewTicker(sseHeartbeat)
		defer ticker.Stop()
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case <-ticker.C:
				var changed []models.InnovationItem
				db.Where("updated_at > ?", lastItem).Order("updated_at ASC").Find(&changed)
				for _, it := range changed {
					writeSSE(c.Writer, "innovation", funnelEvent{
						ItemID:    it.ID,
						Title:     it.Title,
						Stage:     it.Stage,
						UpdatedAt: it.UpdatedAt,
					})
					lastItem = it.UpdatedAt
				}

				if stats, err := cache.GetStats(db); err == nil && stats.LastRefresh != nil && stats.LastRefresh.After(lastRefresh) {
					lastRefresh = *stats.LastRefresh
					writeSSE(c.Writer, "cache", cacheEvent{Total: stats.Total, LastRefresh: stats.LastRefresh})
				}
				c.Writer.Flush()
			}
		}
	}
}

// latestInnovationChange returns the newest updated_at, or the zero time.
func latestInnovationChange(db *gorm.DB) time.Time {
	var latest models.InnovationItem
	if err := db.Order("updated_at DESC").First(&latest).Error; err != nil {
		return time.Time{}
	}
	return latest.UpdatedAt
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
