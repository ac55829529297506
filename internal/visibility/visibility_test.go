package visibility

import (
	"testing"

	"github.com/zulandar/storyforge/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.FeatureVisibility{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func TestIsVisible_DefaultTrue(t *testing.T) {
	db := testDB(t)
	visible, err := IsVisible(db, 4242)
	if err != nil {
		t.Fatalf("IsVisible: %v", err)
	}
	if !visible {
		t.Error("feature with no override should be visible")
	}
}

func TestSet_HideThenShow(t *testing.T) {
	db := testDB(t)

	if err := Set(db, 10, false); err != nil {
		t.Fatalf("Set false: %v", err)
	}
	visible, _ := IsVisible(db, 10)
	if visible {
		t.Error("feature 10 should be hidden")
	}

	if err := Set(db, 10, true); err != nil {
		t.Fatalf("Set true: %v", err)
	}
	visible, _ = IsVisible(db, 10)
	if !visible {
		t.Error("feature 10 should be visible again")
	}

	var n int64
	db.Model(&models.FeatureVisibility{}).Count(&n)
	if n != 1 {
		t.Errorf("rows = %d, want 1 (upsert)", n)
	}
}

func TestSet_InvalidID(t *testing.T) {
	if err := Set(testDB(t), 0, false); err == nil {
		t.Error("expected error for feature id 0")
	}
}

func TestHiddenIDs(t *testing.T) {
	db := testDB(t)
	Set(db, 1, false)
	Set(db, 2, true)
	Set(db, 3, false)

	hidden, err := HiddenIDs(db)
	if err != nil {
		t.Fatalf("HiddenIDs: %v", err)
	}
	if len(hidden) != 2 || !hidden[1] || !hidden[3] {
		t.Errorf("hidden = %v, want {1, 3}", hidden)
	}
}

func TestBulkSet(t *testing.T) {
	db := testDB(t)
	Set(db, 1, true)

	err := BulkSet(db, []Update{
		{FeatureID: 1, IsVisible: false},
		{FeatureID: 2, IsVisible: false},
		{FeatureID: 3, IsVisible: true},
	})
	if err != nil {
		t.Fatalf("BulkSet: %v", err)
	}

	all, err := All(db)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	want := map[int]bool{1: false, 2: false, 3: true}
	if len(all) != len(want) {
		t.Fatalf("All = %v, want %v", all, want)
	}
	for id, v := range want {
		if all[id] != v {
			t.Errorf("feature %d visible = %v, want %v", id, all[id], v)
		}
	}
}

func TestBulkSet_InvalidRejectsAll(t *testing.T) {
	db := testDB(t)
	err := BulkSet(db, []Update{
		{FeatureID: 5, IsVisible: false},
		{FeatureID: -1, IsVisible: false},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	all, _ := All(db)
	if len(all) != 0 {
		t.Errorf("All = %v, want nothing written", all)
	}
}

func TestBulkSet_Empty(t *testing.T) {
	if err := BulkSet(testDB(t), nil); err != nil {
		t.Errorf("BulkSet(nil) = %v", err)
	}
}
