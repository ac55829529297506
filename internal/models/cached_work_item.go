package models

import "time"

// CachedWorkItem is one row of the duplicate-detection snapshot. The whole
// table is replaced on every refresh; LastFetched is the same for all rows.
type CachedWorkItem struct {
	ID            int        `gorm:"primaryKey;autoIncrement:false"`
	Title         string     `gorm:"type:text;not null"`
	Type          string     `gorm:"size:64"`
	State         string     `gorm:"size:64;index"`
	ParentID      *int       `gorm:"index"`
	CreatedDate   *time.Time `gorm:"index"`
	Description   string     `gorm:"type:text"`
	AreaPath      *string    `gorm:"type:text"`
	IterationPath *string    `gorm:"type:text"`
	LastFetched   time.Time
}

// TableName keeps the snapshot table name stable across renames of the type.
func (CachedWorkItem) TableName() string { return "work_items_cache" }
