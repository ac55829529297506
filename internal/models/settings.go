package models

import (
	"time"

	"gorm.io/datatypes"
)

// SettingsID is the fixed primary key of the singleton settings row.
const SettingsID = 1

// Settings holds the Azure DevOps connection for this instance. There is only
// ever one row, keyed by SettingsID.
type Settings struct {
	ID                     uint                        `gorm:"primaryKey;autoIncrement:false"`
	AdoOrgURL              string                      `gorm:"column:ado_org_url;type:text"`
	AdoProject             string                      `gorm:"column:ado_project;size:255"`
	AdoPAT                 string                      `gorm:"column:ado_pat;type:text"`
	AreaPath               *string                     `gorm:"type:text"`
	IterationPath          *string                     `gorm:"type:text"`
	AvailableWorkItemTypes datatypes.JSONSlice[string] `gorm:"column:available_work_item_types"`
	ProcessTemplate        *string                     `gorm:"size:32"`
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// TableName pins the singular table name.
func (Settings) TableName() string { return "settings" }
