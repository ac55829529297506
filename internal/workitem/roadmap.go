package workitem

import "sort"

// EpicGroup is an epic with the features that point at it.
type EpicGroup struct {
	Epic     WorkItem   `json:"epic"`
	Features []WorkItem `json:"features"`
}

// Roadmap is the timeline partition of a feature list.
type Roadmap struct {
	Scheduled         []EpicGroup      `json:"scheduled"`
	OrphanedScheduled []WorkItem       `json:"orphanedScheduled"`
	Unscheduled       []WorkItem       `json:"unscheduled"`
	Total             int              `json:"total"`
	Progress          map[int]Progress `json:"progress,omitempty"`
}

// SortByStartDate orders items by ascending start date. Items without a
// start date go to the end; ties keep their input order.
func SortByStartDate(items []WorkItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].StartDate, items[j].StartDate
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.Before(*b)
	})
}

// ParentIDs returns the distinct parent ids of items in first-seen order.
func ParentIDs(items []WorkItem) []int {
	seen := make(map[int]bool)
	var ids []int
	for _, it := range items {
		if it.ParentID == nil || seen[*it.ParentID] {
			continue
		}
		seen[*it.ParentID] = true
		ids = append(ids, *it.ParentID)
	}
	return ids
}

// BuildRoadmap groups features under their parent epics.
//
// Features are sorted by start date first. A feature whose parent is one of
// epics joins that epic's group; any other feature is orphaned. An epic group
// is scheduled when at least one of its features has both dates, and the
// whole group is returned, including its undated features. Orphans are split
// into orphanedScheduled and unscheduled. Undated features of an epic group
// that is not scheduled do not appear in any bucket.
func BuildRoadmap(features, epics []WorkItem) Roadmap {
	sorted := make([]WorkItem, len(features))
	copy(sorted, features)
	SortByStartDate(sorted)

	groups := make(map[int]*EpicGroup, len(epics))
	var epicOrder []int
	for _, e := range epics {
		if _, ok := groups[e.ID]; ok {
			continue
		}
		groups[e.ID] = &EpicGroup{Epic: e, Features: []WorkItem{}}
		epicOrder = append(epicOrder, e.ID)
	}
	sort.Ints(epicOrder)

	var orphans []WorkItem
	for _, f := range sorted {
		if f.ParentID != nil {
			if g, ok := groups[*f.ParentID]; ok {
				g.Features = append(g.Features, f)
				continue
			}
		}
		orphans = append(orphans, f)
	}

	rm := Roadmap{
		Scheduled:         []EpicGroup{},
		OrphanedScheduled: []WorkItem{},
		Unscheduled:       []WorkItem{},
		Total:             len(sorted),
	}
	for _, id := range epicOrder {
		g := groups[id]
		for _, f := range g.Features {
			if f.Scheduled() {
				rm.Scheduled = append(rm.Scheduled, *g)
				break
			}
		}
	}
	for _, f := range orphans {
		if f.Scheduled() {
			rm.OrphanedScheduled = append(rm.OrphanedScheduled, f)
		} else {
			rm.Unscheduled = append(rm.Unscheduled, f)
		}
	}
	return rm
}
