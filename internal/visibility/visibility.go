// Package visibility stores per-feature show/hide overrides for the roadmap
// and stage-gate views. A feature with no override is visible.
package visibility

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/storyforge/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Update is one override to apply.
type Update struct {
	FeatureID int  `json:"featureId"`
	IsVisible bool `json:"isVisible"`
}

// IsVisible reports whether a feature is shown. Unknown features are visible.
func IsVisible(db *gorm.DB, featureID int) (bool, error) {
	var row models.FeatureVisibility
	err := db.Where("feature_id = ?", featureID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("visibility: get %d: %w", featureID, err)
	}
	return row.IsVisible, nil
}

// HiddenIDs returns the set of features explicitly hidden.
func HiddenIDs(db *gorm.DB) (map[int]bool, error) {
	var ids []int
	if err := db.Model(&models.FeatureVisibility{}).Where("is_visible = ?", false).Pluck("feature_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("visibility: hidden ids: %w", err)
	}
	out := make(map[int]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// All returns every stored override.
func All(db *gorm.DB) (map[int]bool, error) {
	var rows []models.FeatureVisibility
	if err := db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("visibility: list: %w", err)
	}
	out := make(map[int]bool, len(rows))
	for _, r := range rows {
		out[r.FeatureID] = r.IsVisible
	}
	return out, nil
}

// Set stores an override, replacing any previous one.
func Set(db *gorm.DB, featureID int, visible bool) error {
	if featureID <= 0 {
		return fmt.Errorf("visibility: invalid feature id %d", featureID)
	}
	if err := upsert(db, []models.FeatureVisibility{{FeatureID: featureID, IsVisible: visible}}); err != nil {
		return fmt.Errorf("visibility: set %d: %w", featureID, err)
	}
	return nil
}

// BulkSet stores several overrides in one transaction. Either all are
// applied or none.
func BulkSet(db *gorm.DB, updates []Update) error {
	if len(updates) == 0 {
		return nil
	}
	rows := make([]models.FeatureVisibility, 0, len(updates))
	for _, u := range updates {
		if u.FeatureID <= 0 {
			return fmt.Errorf("visibility: invalid feature id %d", u.FeatureID)
		}
		rows = append(rows, models.FeatureVisibility{FeatureID: u.FeatureID, IsVisible: u.IsVisible})
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		for i := range rows {
			if err := upsert(tx, rows[i:i+1]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("visibility: bulk set: %w", err)
	}
	return nil
}

func upsert(db *gorm.DB, rows []models.FeatureVisibility) error {
	now := time.Now()
	for i := range rows {
		rows[i].UpdatedAt = now
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "feature_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_visible", "updated_at"}),
	}).Create(&rows).Error
}
