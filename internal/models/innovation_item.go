package models

import (
	"time"

	"gorm.io/datatypes"
)

// InnovationItem is an idea moving through the innovation funnel. It is the
// only entity owned entirely by the local store.
type InnovationItem struct {
	ID              uint                        `gorm:"primaryKey;autoIncrement" json:"id"`
	Title           string                      `gorm:"type:text;not null" json:"title"`
	Description     *string                     `gorm:"type:text" json:"description"`
	Stage           string                      `gorm:"size:32;not null;index" json:"stage"`
	StageOrder      int                         `gorm:"not null" json:"stage_order"`
	AdoFeatureID    *int                        `gorm:"index" json:"ado_feature_id"`
	RiceReach       *float64                    `json:"rice_reach"`
	RiceImpact      *float64                    `json:"rice_impact"`
	RiceConfidence  *float64                    `json:"rice_confidence"`
	RiceEffort      *float64                    `json:"rice_effort"`
	RiceScore       *float64                    `json:"rice_score"`
	RoiEstimate     *string                     `gorm:"type:text" json:"roi_estimate"`
	RoiNotes        *string                     `gorm:"type:text" json:"roi_notes"`
	Owner           *string                     `gorm:"size:128" json:"owner"`
	Requestor       *string                     `gorm:"size:128" json:"requestor"`
	Category        *string                     `gorm:"size:128" json:"category"`
	Tags            datatypes.JSONSlice[string] `json:"tags"`
	StatusNotes     *string                     `gorm:"type:text" json:"status_notes"`
	RejectionReason *string                     `gorm:"type:text" json:"rejection_reason"`
	CreatedAt       time.Time                   `json:"created_at"`
	UpdatedAt       time.Time                   `json:"updated_at"`
	StageChangedAt  time.Time                   `json:"stage_changed_at"`
}
