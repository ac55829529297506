package ado

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/zulandar/storyforge/internal/workitem"
)

// ADO field reference names read by ToWorkItem.
const (
	FieldID            = "System.Id"
	FieldTitle         = "System.Title"
	FieldType          = "System.WorkItemType"
	FieldState         = "System.State"
	FieldParent        = "System.Parent"
	FieldAssignedTo    = "System.AssignedTo"
	FieldCreatedBy     = "System.CreatedBy"
	FieldChangedBy     = "System.ChangedBy"
	FieldDescription   = "System.Description"
	FieldAreaPath      = "System.AreaPath"
	FieldIterationPath = "System.IterationPath"
	FieldTags          = "System.Tags"
	FieldCreatedDate   = "System.CreatedDate"
	FieldChangedDate   = "System.ChangedDate"
	FieldPriority      = "Microsoft.VSTS.Common.Priority"
	FieldStartDate     = "Microsoft.VSTS.Scheduling.StartDate"
	FieldTargetDate    = "Microsoft.VSTS.Scheduling.TargetDate"
	FieldStoryPoints   = "Microsoft.VSTS.Scheduling.StoryPoints"
	FieldEffort        = "Microsoft.VSTS.Scheduling.Effort"
)

// RawWorkItem is a work item as ADO returns it.
type RawWorkItem struct {
	ID     int                        `json:"id"`
	Rev    int                        `json:"rev,omitempty"`
	Fields map[string]json.RawMessage `json:"fields"`
	URL    string                     `json:"url,omitempty"`
}

type identity struct {
	DisplayName string `json:"displayName"`
	UniqueName  string `json:"uniqueName"`
}

// ToWorkItem translates a raw ADO item. Missing or malformed fields are left
// at their zero value; an unassigned item reports "Unassigned".
func ToWorkItem(raw RawWorkItem) workitem.WorkItem {
	f := raw.Fields
	w := workitem.WorkItem{
		ID:            raw.ID,
		Type:          str(f, FieldType),
		Title:         str(f, FieldTitle),
		State:         str(f, FieldState),
		ParentID:      intPtr(f, FieldParent),
		AssignedTo:    person(f, FieldAssignedTo),
		CreatedBy:     person(f, FieldCreatedBy),
		Description:   str(f, FieldDescription),
		AreaPath:      str(f, FieldAreaPath),
		IterationPath: str(f, FieldIterationPath),
		Tags:          str(f, FieldTags),
		Priority:      intPtr(f, FieldPriority),
		CreatedDate:   timePtr(f, FieldCreatedDate),
		ChangedDate:   timePtr(f, FieldChangedDate),
		StartDate:     timePtr(f, FieldStartDate),
		TargetDate:    timePtr(f, FieldTargetDate),
		StoryPoints:   floatPtr(f, FieldStoryPoints),
		Effort:        floatPtr(f, FieldEffort),
	}
	if w.AssignedTo == "" {
		w.AssignedTo = "Unassigned"
	}
	return w
}

// ToWorkItems translates a batch.
func ToWorkItems(raws []RawWorkItem) []workitem.WorkItem {
	out := make([]workitem.WorkItem, len(raws))
	for i, r := range raws {
		out[i] = ToWorkItem(r)
	}
	return out
}

func str(f map[string]json.RawMessage, key string) string {
	var s string
	if raw, ok := f[key]; ok && json.Unmarshal(raw, &s) == nil {
		return s
	}
	return ""
}

func person(f map[string]json.RawMessage, key string) string {
	raw, ok := f[key]
	if !ok {
		return ""
	}
	var id identity
	if json.Unmarshal(raw, &id) == nil {
		if id.DisplayName != "" {
			return id.DisplayName
		}
		return id.UniqueName
	}
	// Older API versions return "Name <email>" strings.
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return ""
}

func floatPtr(f map[string]json.RawMessage, key string) *float64 {
	raw, ok := f[key]
	if !ok {
		return nil
	}
	var v float64
	if json.Unmarshal(raw, &v) == nil {
		return &v
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if parsed, err := strconv.ParseFloat(s, 64); err == nil {
			return &parsed
		}
	}
	return nil
}

func intPtr(f map[string]json.RawMessage, key string) *int {
	v := floatPtr(f, key)
	if v == nil {
		return nil
	}
	i := int(*v)
	return &i
}

func timePtr(f map[string]json.RawMessage, key string) *time.Time {
	s := str(f, key)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

// Project is the subset of project metadata returned by TestConnection.
type Project struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
	URL   string `json:"url"`
}

// WorkItemType is one type defined in the project's process.
type WorkItemType struct {
	Name          string `json:"name"`
	ReferenceName string `json:"referenceName"`
	Description   string `json:"description"`
}

// Wiki is a project or code wiki.
type Wiki struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// WikiPage locates a page found by FindWikiPageByTitle.
type WikiPage struct {
	WikiName string `json:"wikiName"`
	PageID   int    `json:"pageId"`
	PagePath string `json:"pagePath"`
	URL      string `json:"url"`
}

type wikiPageNode struct {
	ID       int            `json:"id"`
	Path     string         `json:"path"`
	SubPages []wikiPageNode `json:"subPages"`
}

type listResponse[T any] struct {
	Count int `json:"count"`
	Value []T `json:"value"`
}

type wiqlRef struct {
	ID int `json:"id"`
}

type wiqlLink struct {
	Source *wiqlRef `json:"source"`
	Target *wiqlRef `json:"target"`
}

type wiqlResponse struct {
	WorkItems         []wiqlRef  `json:"workItems"`
	WorkItemRelations []wiqlLink `json:"workItemRelations"`
}

// ids returns the matched ids. Link queries list the root with a nil source
// followed by source→target pairs; the targets are the matches.
func (r wiqlResponse) ids() []int {
	if len(r.WorkItems) > 0 {
		out := make([]int, len(r.WorkItems))
		for i, w := range r.WorkItems {
			out[i] = w.ID
		}
		return out
	}
	var out []int
	seen := make(map[int]bool)
	for _, rel := range r.WorkItemRelations {
		if rel.Source == nil || rel.Target == nil || seen[rel.Target.ID] {
			continue
		}
		seen[rel.Target.ID] = true
		out = append(out, rel.Target.ID)
	}
	return out
}
