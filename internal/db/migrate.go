package db

import (
	"fmt"

	"github.com/zulandar/storyforge/internal/fieldmap"
	"github.com/zulandar/storyforge/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns every GORM model for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Settings{},
		&models.FieldMapping{},
		&models.CachedWorkItem{},
		&models.FeatureVisibility{},
		&models.InnovationItem{},
		&models.StatusTemplate{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// Init migrates the schema and seeds reference data. It is safe to run on
// every startup.
func Init(db *gorm.DB) error {
	if err := AutoMigrate(db); err != nil {
		return err
	}
	if _, err := SeedFieldMappings(db); err != nil {
		return err
	}
	if _, err := SeedStatusTemplates(db); err != nil {
		return err
	}
	return nil
}

// ResetTables drops every StoryForge table and re-runs Init.
func ResetTables(db *gorm.DB) error {
	if err := db.Migrator().DropTable(AllModels()...); err != nil {
		return fmt.Errorf("db: drop tables: %w", err)
	}
	return Init(db)
}

// SeedFieldMappings inserts the default field mappings, leaving existing rows
// untouched. It returns the number of rows inserted.
func SeedFieldMappings(db *gorm.DB) (int64, error) {
	defaults := fieldmap.Defaults()
	rows := make([]models.FieldMapping, len(defaults))
	for i, m := range defaults {
		rows[i] = models.FieldMapping{
			WorkItemType: m.WorkItemType,
			LogicalField: m.LogicalField,
			AdoFieldName: m.AdoFieldName,
		}
	}

	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "work_item_type"}, {Name: "logical_field"}},
		DoNothing: true,
	}).Create(&rows)
	if result.Error != nil {
		return 0, fmt.Errorf("db: seed field mappings: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// defaultStatusTemplates are the report layouts shipped with a fresh store.
var defaultStatusTemplates = []models.StatusTemplate{
	{
		Name:        "Default (Full Status)",
		Description: "Comprehensive status update with all sections",
		Sections:    []string{"accomplishments", "in_progress", "blockers", "next_steps", "risks", "metrics"},
		FormatStyle: "bullets",
	},
	{
		Name:        "Weekly Sprint Update",
		Description: "Standard weekly sprint status for agile teams",
		Sections:    []string{"accomplishments", "in_progress", "blockers", "next_steps"},
		FormatStyle: "bullets",
	},
	{
		Name:        "Executive Summary Only",
		Description: "Brief summary for leadership (no detailed sections)",
		Sections:    []string{"accomplishments", "risks"},
		FormatStyle: "paragraphs",
	},
	{
		Name:        "Risk-Focused Update",
		Description: "Emphasizes risks and blockers for escalation",
		Sections:    []string{"accomplishments", "blockers", "risks", "next_steps"},
		FormatStyle: "mixed",
	},
}

// SeedStatusTemplates inserts the default status templates by name, leaving
// existing rows untouched.
func SeedStatusTemplates(db *gorm.DB) (int64, error) {
	rows := make([]models.StatusTemplate, len(defaultStatusTemplates))
	copy(rows, defaultStatusTemplates)

	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&rows)
	if result.Error != nil {
		return 0, fmt.Errorf("db: seed status templates: %w", result.Error)
	}
	return result.RowsAffected, nil
}
