package models

import "time"

// FeatureVisibility is a sparse override: features without a row are visible.
type FeatureVisibility struct {
	FeatureID int  `gorm:"primaryKey;autoIncrement:false"`
	IsVisible bool `gorm:"not null"`
	UpdatedAt time.Time
}

// TableName keeps the singular table name.
func (FeatureVisibility) TableName() string { return "feature_visibility" }
