package db

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/zulandar/storyforge/internal/config"
	"github.com/zulandar/storyforge/internal/fieldmap"
	"github.com/zulandar/storyforge/internal/models"
	"gorm.io/gorm"
)

func memDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("DB(): %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { Close(db) })
	return db
}

func TestMySQLDSN(t *testing.T) {
	dsn := MySQLDSN(config.DatabaseConfig{
		Host: "10.0.0.5", Port: 3307, User: "sf", Password: "p@ss", Name: "storyforge",
	}, "storyforge")

	for _, want := range []string{"sf:p@ss@tcp(10.0.0.5:3307)/storyforge", "parseTime=true"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("dsn = %q, want to contain %q", dsn, want)
		}
	}
}

func TestMySQLDSN_NoDatabase(t *testing.T) {
	dsn := MySQLDSN(config.DatabaseConfig{Host: "127.0.0.1", Port: 3306, User: "root"}, "")
	if !strings.Contains(dsn, "root@tcp(127.0.0.1:3306)/") {
		t.Errorf("dsn = %q", dsn)
	}
	if strings.Contains(dsn, "/storyforge") {
		t.Errorf("admin dsn should not select a database: %q", dsn)
	}
}

func TestSQLiteDSN(t *testing.T) {
	if got := SQLiteDSN(":memory:"); got != ":memory:" {
		t.Errorf("SQLiteDSN(:memory:) = %q", got)
	}
	got := SQLiteDSN("./storage/storyforge.db")
	if !strings.HasPrefix(got, "./storage/storyforge.db?") || !strings.Contains(got, "_foreign_keys=on") {
		t.Errorf("SQLiteDSN = %q", got)
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle"})
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
	if !strings.Contains(err.Error(), "unsupported driver") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "sf.db")
	db, err := Open(config.DatabaseConfig{Driver: "sqlite", Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer Close(db)
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
}

func TestClose_Nil(t *testing.T) {
	if err := Close(nil); err != nil {
		t.Errorf("Close(nil) = %v, want nil", err)
	}
}

func TestAllModels(t *testing.T) {
	if got := len(AllModels()); got != 6 {
		t.Errorf("AllModels() = %d models, want 6", got)
	}
}

func TestInit_CreatesTablesAndSeeds(t *testing.T) {
	db := memDB(t)
	if err := Init(db); err != nil {
		t.Fatalf("Init: %v", err)
	}

	for _, table := range []string{"settings", "field_mappings", "work_items_cache", "feature_visibility", "innovation_items", "status_templates"} {
		if !db.Migrator().HasTable(table) {
			t.Errorf("table %s not created", table)
		}
	}

	var mappings int64
	db.Model(&models.FieldMapping{}).Count(&mappings)
	if mappings != int64(len(fieldmap.Defaults())) {
		t.Errorf("field mappings = %d, want %d", mappings, len(fieldmap.Defaults()))
	}

	var templates []models.StatusTemplate
	db.Order("id").Find(&templates)
	if len(templates) != 4 {
		t.Fatalf("status templates = %d, want 4", len(templates))
	}
	if templates[0].Name != "Default (Full Status)" || len(templates[0].Sections) != 6 {
		t.Errorf("first template = %+v", templates[0])
	}
	if templates[2].FormatStyle != "paragraphs" {
		t.Errorf("third template format = %q, want paragraphs", templates[2].FormatStyle)
	}
}

func TestInit_Idempotent(t *testing.T) {
	db := memDB(t)
	if err := Init(db); err != nil {
		t.Fatalf("first Init: %v", err)
	}
	if err := Init(db); err != nil {
		t.Fatalf("second Init: %v", err)
	}

	n, err := SeedFieldMappings(db)
	if err != nil {
		t.Fatalf("SeedFieldMappings: %v", err)
	}
	if n != 0 {
		t.Errorf("re-seed inserted %d rows, want 0", n)
	}

	var templates int64
	db.Model(&models.StatusTemplate{}).Count(&templates)
	if templates != 4 {
		t.Errorf("status templates = %d after re-init, want 4", templates)
	}
}

func TestSeedFieldMappings_KeepsEditedRows(t *testing.T) {
	db := memDB(t)
	if err := Init(db); err != nil {
		t.Fatalf("Init: %v", err)
	}
	db.Model(&models.FieldMapping{}).
		Where("work_item_type = ? AND logical_field = ?", "Bug", "title").
		Update("ado_field_name", "Custom.Title")

	if _, err := SeedFieldMappings(db); err != nil {
		t.Fatalf("SeedFieldMappings: %v", err)
	}

	var m models.FieldMapping
	db.Where("work_item_type = ? AND logical_field = ?", "Bug", "title").First(&m)
	if m.AdoFieldName != "Custom.Title" {
		t.Errorf("seed overwrote edited mapping: %q", m.AdoFieldName)
	}
}

func TestResetTables(t *testing.T) {
	db := memDB(t)
	if err := Init(db); err != nil {
		t.Fatalf("Init: %v", err)
	}
	title := "Idea"
	if err := db.Create(&models.InnovationItem{Title: title, Stage: "Intake"}).Error; err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := ResetTables(db); err != nil {
		t.Fatalf("ResetTables: %v", err)
	}

	var items int64
	db.Model(&models.InnovationItem{}).Count(&items)
	if items != 0 {
		t.Errorf("innovation items = %d after reset, want 0", items)
	}
	var templates int64
	db.Model(&models.StatusTemplate{}).Count(&templates)
	if templates != 4 {
		t.Errorf("status templates = %d after reset, want 4", templates)
	}
}
