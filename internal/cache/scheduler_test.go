package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/storyforge/internal/workitem"
)

func TestNewScheduler_Validation(t *testing.T) {
	db := testDB(t)

	if _, err := NewScheduler(nil, static(), "", 0); err == nil {
		t.Error("expected error for nil db")
	}
	if _, err := NewScheduler(db, nil, "", 0); err == nil {
		t.Error("expected error for nil fetcher")
	}
	_, err := NewScheduler(db, static(), "not a cron expr", 0)
	if err == nil || !strings.Contains(err.Error(), "parse schedule") {
		t.Errorf("bad expression error = %v", err)
	}
}

func TestScheduler_DefaultIsHourly(t *testing.T) {
	s, err := NewScheduler(testDB(t), static(), "", time.Second)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	from := time.Date(2024, 6, 1, 10, 15, 0, 0, time.Local)
	want := time.Date(2024, 6, 1, 11, 0, 0, 0, time.Local)
	if got := s.Next(from); !got.Equal(want) {
		t.Errorf("Next(%v) = %v, want %v", from, got, want)
	}
}

func TestScheduler_WarmupRefresh(t *testing.T) {
	db := testDB(t)
	s, err := NewScheduler(db, static(workitem.WorkItem{ID: 1, Title: "x"}), "0 0 1 1 *", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	results := make(chan int, 1)
	s.done = func(n int, err error) { results <- n }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	select {
	case n := <-results:
		if n != 1 {
			t.Errorf("warm-up cached %d items, want 1", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("warm-up refresh did not run")
	}
	if got := count(t, db); got != 1 {
		t.Errorf("rows = %d, want 1", got)
	}
}

func TestScheduler_FailureDoesNotStop(t *testing.T) {
	db := testDB(t)
	failing := FetcherFunc(func(context.Context) ([]workitem.WorkItem, error) {
		return nil, errors.New("settings not configured")
	})
	s, err := NewScheduler(db, failing, "0 0 1 1 *", 0)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	errs := make(chan error, 1)
	s.done = func(n int, err error) { errs <- err }

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(stopped)
	}()

	select {
	case err := <-errs:
		if err == nil {
			t.Error("expected refresh error to be reported")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("refresh did not run")
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
