package dashboard

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/zulandar/storyforge/internal/ado"
	"github.com/zulandar/storyforge/internal/stagegate"
	"github.com/zulandar/storyforge/internal/visibility"
	"github.com/zulandar/storyforge/internal/workitem"
	"gorm.io/gorm"
)

// WIQL orderings used by the stage gate views.
const (
	orderByCreated  = "[System.CreatedDate] DESC"
	orderByTitle    = "[System.Title] ASC"
	orderByPriority = "[Microsoft.VSTS.Common.Priority] ASC, [System.CreatedDate] DESC"
)

// withoutHidden drops the features the user has hidden.
func withoutHidden(db *gorm.DB, items []workitem.WorkItem) ([]workitem.WorkItem, error) {
	hidden, err := visibility.HiddenIDs(db)
	if err != nil {
		return nil, err
	}
	out := make([]workitem.WorkItem, 0, len(items))
	for _, it := range items {
		if !hidden[it.ID] {
			out = append(out, it)
		}
	}
	return out, nil
}

// StageGateBoard loads the non-removed features in the configured area,
// drops hidden ones and groups the rest by stage.
func StageGateBoard(ctx context.Context, db *gorm.DB, client *ado.Client, orderBy string) (stagegate.Board, error) {
	items, err := client.Features(ctx, ado.FeatureQuery{
		ExcludeStates: []string{"Removed"},
		OrderBy:       orderBy,
	})
	if err != nil {
		return stagegate.Board{}, err
	}
	items, err = withoutHidden(db, items)
	if err != nil {
		return stagegate.Board{}, err
	}
	return stagegate.Group(stagegate.Annotate(items)), nil
}

// RoadmapFeatures loads the open features across every area, drops hidden
// ones and partitions them by epic and schedule. Each feature's progress is
// computed from its direct children; a failed child lookup counts as no
// progress.
func RoadmapFeatures(ctx context.Context, db *gorm.DB, client *ado.Client, withProgress bool) (workitem.Roadmap, error) {
	features, err := client.Features(ctx, ado.FeatureQuery{
		ExcludeStates: []string{"Closed", "Removed"},
		IgnoreArea:    true,
	})
	if err != nil {
		return workitem.Roadmap{}, err
	}
	features, err = withoutHidden(db, features)
	if err != nil {
		return workitem.Roadmap{}, err
	}
	workitem.SortByStartDate(features)

	epics, err := client.Epics(ctx, workitem.ParentIDs(features))
	if err != nil {
		return workitem.Roadmap{}, err
	}
	rm := workitem.BuildRoadmap(features, epics)

	if withProgress {
		rm.Progress = make(map[int]workitem.Progress, len(features))
		for _, f := range features {
			children, err := client.ChildWorkItems(ctx, f.ID)
			if err != nil {
				logDegraded("feature progress", f.ID, err)
				children = nil
			}
			rm.Progress[f.ID] = workitem.ShallowProgress(children)
		}
	}
	return rm, nil
}

// logDegraded records an optional enrichment that was skipped.
func logDegraded(what string, id int, err error) {
	log.Printf("dashboard: %s for #%d unavailable: %v", what, id, err)
}

// TimeAgo returns a short relative time like "3h ago", or "—" for a nil or
// zero time.
func TimeAgo(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "—"
	}
	d := time.Since(*t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
