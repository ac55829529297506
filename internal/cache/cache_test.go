package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/storyforge/internal/models"
	"github.com/zulandar/storyforge/internal/workitem"
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
	if err := db.AutoMigrate(&models.CachedWorkItem{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func intp(v int) *int { return &v }

func static(items ...workitem.WorkItem) Fetcher {
	return FetcherFunc(func(context.Context) ([]workitem.WorkItem, error) {
		return items, nil
	})
}

func count(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&models.CachedWorkItem{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestRefresh_ReplacesSnapshot(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	n, err := Refresh(ctx, db, static(
		workitem.WorkItem{ID: 1, Title: "Old one", State: "New"},
		workitem.WorkItem{ID: 2, Title: "Old two", State: "Active"},
	))
	if err != nil || n != 2 {
		t.Fatalf("first refresh = %d, %v", n, err)
	}

	created := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	n, err = Refresh(ctx, db, static(
		workitem.WorkItem{
			ID: 3, Title: "New item", Type: "Bug", State: "Active",
			ParentID: intp(1), CreatedDate: &created, Description: "desc",
			AreaPath: "Proj\\Team",
		},
	))
	if err != nil || n != 1 {
		t.Fatalf("second refresh = %d, %v", n, err)
	}
	if got := count(t, db); got != 1 {
		t.Fatalf("rows = %d, want 1", got)
	}

	var row models.CachedWorkItem
	if err := db.First(&row, 3).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if row.Title != "New item" || row.Type != "Bug" || row.Description != "desc" {
		t.Errorf("row = %+v", row)
	}
	if row.ParentID == nil || *row.ParentID != 1 {
		t.Errorf("ParentID = %v, want 1", row.ParentID)
	}
	if row.AreaPath == nil || *row.AreaPath != "Proj\\Team" {
		t.Errorf("AreaPath = %v", row.AreaPath)
	}
	if row.IterationPath != nil {
		t.Errorf("IterationPath = %v, want nil", *row.IterationPath)
	}
	if row.LastFetched.IsZero() {
		t.Error("LastFetched not set")
	}
}

func TestRefresh_SingleHorizon(t *testing.T) {
	db := testDB(t)
	_, err := Refresh(context.Background(), db, static(
		workitem.WorkItem{ID: 1, Title: "a"},
		workitem.WorkItem{ID: 2, Title: "b"},
		workitem.WorkItem{ID: 3, Title: "c"},
	))
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	var distinct int64
	db.Model(&models.CachedWorkItem{}).Distinct("last_fetched").Count(&distinct)
	if distinct != 1 {
		t.Errorf("distinct last_fetched = %d, want 1", distinct)
	}
}

func TestRefresh_EmptyKeepsExisting(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	if _, err := Refresh(ctx, db, static(workitem.WorkItem{ID: 1, Title: "keep"})); err != nil {
		t.Fatalf("seed: %v", err)
	}

	n, err := Refresh(ctx, db, static())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if n != 0 {
		t.Errorf("n = %d, want 0", n)
	}
	if got := count(t, db); got != 1 {
		t.Errorf("rows = %d, want existing snapshot kept", got)
	}
}

func TestRefresh_FetchErrorKeepsExisting(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	if _, err := Refresh(ctx, db, static(workitem.WorkItem{ID: 1, Title: "keep"})); err != nil {
		t.Fatalf("seed: %v", err)
	}

	failing := FetcherFunc(func(context.Context) ([]workitem.WorkItem, error) {
		return nil, errors.New("ado unreachable")
	})
	_, err := Refresh(ctx, db, failing)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "ado unreachable") {
		t.Errorf("error = %q, want upstream message preserved", err.Error())
	}
	if got := count(t, db); got != 1 {
		t.Errorf("rows = %d, want 1", got)
	}
}

func TestRefresh_DuplicateIDsCollapsed(t *testing.T) {
	db := testDB(t)
	n, err := Refresh(context.Background(), db, static(
		workitem.WorkItem{ID: 1, Title: "first"},
		workitem.WorkItem{ID: 1, Title: "again"},
	))
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if n != 1 {
		t.Errorf("n = %d, want 1", n)
	}
}

func TestGetStats(t *testing.T) {
	db := testDB(t)

	s, err := GetStats(db)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if s.Total != 0 || s.LastRefresh != nil {
		t.Errorf("empty stats = %+v", s)
	}

	_, err = Refresh(context.Background(), db, static(
		workitem.WorkItem{ID: 1, Title: "a", State: "New"},
		workitem.WorkItem{ID: 2, Title: "b", State: "New"},
		workitem.WorkItem{ID: 3, Title: "c", State: "Active"},
		workitem.WorkItem{ID: 4, Title: "d", State: "Resolved"},
	))
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	s, err = GetStats(db)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if s.Total != 4 || s.NewCount != 2 || s.ActiveCount != 1 {
		t.Errorf("stats = %+v, want total 4, new 2, active 1", s)
	}
	if s.LastRefresh == nil {
		t.Error("LastRefresh should be set")
	}
}
