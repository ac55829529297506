package models

import (
	"time"

	"gorm.io/datatypes"
)

// StatusTemplate describes a status-report layout. Seeded, not used by the
// roadmap or funnel logic.
type StatusTemplate struct {
	ID          uint                        `gorm:"primaryKey;autoIncrement"`
	Name        string                      `gorm:"size:128;uniqueIndex;not null"`
	Description string                      `gorm:"type:text"`
	Sections    datatypes.JSONSlice[string] `gorm:"not null"`
	FormatStyle string                      `gorm:"size:16;default:bullets"`
	CreatedAt   time.Time
}
