// Package cache keeps a local snapshot of recent ADO work items for
// duplicate detection.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/zulandar/storyforge/internal/models"
	"github.com/zulandar/storyforge/internal/workitem"
	"gorm.io/gorm"
)

// Fetcher supplies the work items to snapshot.
type Fetcher interface {
	RecentWorkItems(ctx context.Context) ([]workitem.WorkItem, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) ([]workitem.WorkItem, error)

// RecentWorkItems calls f.
func (f FetcherFunc) RecentWorkItems(ctx context.Context) ([]workitem.WorkItem, error) {
	return f(ctx)
}

// Stats summarises the snapshot.
type Stats struct {
	Total       int64      `json:"total"`
	NewCount    int64      `json:"new_count"`
	ActiveCount int64      `json:"active_count"`
	LastRefresh *time.Time `json:"last_refresh"`
}

// Refresh replaces the snapshot with the fetcher's items and returns how many
// were stored. The delete and insert run in one transaction, so readers see
// either the old snapshot or the new one. When the fetcher returns no items
// the existing snapshot is left in place.
func Refresh(ctx context.Context, db *gorm.DB, f Fetcher) (int, error) {
	items, err := f.RecentWorkItems(ctx)
	if err != nil {
		return 0, fmt.Errorf("cache: fetch: %w", err)
	}
	if len(items) == 0 {
		log.Printf("cache: no work items to cache")
		return 0, nil
	}

	fetched := time.Now().UTC()
	rows := make([]models.CachedWorkItem, 0, len(items))
	seen := make(map[int]bool, len(items))
	for _, it := range items {
		if seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		rows = append(rows, toRow(it, fetched))
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.CachedWorkItem{}).Error; err != nil {
			return fmt.Errorf("clear: %w", err)
		}
		if err := tx.CreateInBatches(rows, 100).Error; err != nil {
			return fmt.Errorf("insert: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("cache: refresh: %w", err)
	}

	log.Printf("cache: cached %d work items", len(rows))
	return len(rows), nil
}

func toRow(it workitem.WorkItem, fetched time.Time) models.CachedWorkItem {
	row := models.CachedWorkItem{
		ID:          it.ID,
		Title:       it.Title,
		Type:        it.Type,
		State:       it.State,
		ParentID:    it.ParentID,
		CreatedDate: it.CreatedDate,
		Description: it.Description,
		LastFetched: fetched,
	}
	if it.AreaPath != "" {
		p := it.AreaPath
		row.AreaPath = &p
	}
	if it.IterationPath != "" {
		p := it.IterationPath
		row.IterationPath = &p
	}
	return row
}

// GetStats counts the snapshot and reports when it was last refreshed.
// LastRefresh is nil for an empty snapshot.
func GetStats(db *gorm.DB) (*Stats, error) {
	var s Stats
	base := db.Model(&models.CachedWorkItem{})
	if err := base.Count(&s.Total).Error; err != nil {
		return nil, fmt.Errorf("cache: stats: %w", err)
	}
	if err := db.Model(&models.CachedWorkItem{}).Where("state = ?", "New").Count(&s.NewCount).Error; err != nil {
		return nil, fmt.Errorf("cache: stats: %w", err)
	}
	if err := db.Model(&models.CachedWorkItem{}).Where("state = ?", "Active").Count(&s.ActiveCount).Error; err != nil {
		return nil, fmt.Errorf("cache: stats: %w", err)
	}

	var latest models.CachedWorkItem
	err := db.Order("last_fetched DESC").First(&latest).Error
	switch {
	case err == nil:
		t := latest.LastFetched
		s.LastRefresh = &t
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, fmt.Errorf("cache: stats: %w", err)
	}
	return &s, nil
}
