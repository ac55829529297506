// Package workitem holds the typed Azure DevOps work item record and the
// in-memory computations over it: hierarchy building, roadmap grouping and
// effort roll-ups. Nothing in here reads raw ADO field reference names; the
// ado package translates at the boundary.
package workitem

import "time"

// Work item type names used by the roadmap and backlog views.
const (
	TypeEpic      = "Epic"
	TypeFeature   = "Feature"
	TypeUserStory = "User Story"
	TypeTask      = "Task"
	TypeBug       = "Bug"
	TypeIssue     = "Issue"
)

// WorkItem is one ADO work item. Optional fields are pointers; a nil ParentID
// means the item has no parent.
type WorkItem struct {
	ID            int        `json:"id"`
	Type          string     `json:"workItemType"`
	Title         string     `json:"title"`
	State         string     `json:"state"`
	ParentID      *int       `json:"parentId"`
	AssignedTo    string     `json:"assignedTo"`
	CreatedBy     string     `json:"createdBy,omitempty"`
	Description   string     `json:"description"`
	AreaPath      string     `json:"areaPath,omitempty"`
	IterationPath string     `json:"iterationPath,omitempty"`
	Tags          string     `json:"tags,omitempty"`
	Priority      *int       `json:"priority,omitempty"`
	CreatedDate   *time.Time `json:"createdDate"`
	ChangedDate   *time.Time `json:"changedDate"`
	StartDate     *time.Time `json:"startDate"`
	TargetDate    *time.Time `json:"targetDate"`
	StoryPoints   *float64   `json:"storyPoints,omitempty"`
	Effort        *float64   `json:"effort,omitempty"`
}

// Scheduled reports whether the item carries both a start and a target date.
func (w WorkItem) Scheduled() bool {
	return w.StartDate != nil && w.TargetDate != nil
}

// HasParent reports whether the item points at a parent id.
func (w WorkItem) HasParent() bool {
	return w.ParentID != nil
}

// PatchOperation is one JSON-Patch entry sent to the ADO work item endpoints.
type PatchOperation struct {
	Op    string      `json:"op"`
	Path  string      `json:"path"`
	Value interface{} `json:"value,omitempty"`
}

// Relation is the value of a /relations/- patch entry.
type Relation struct {
	Rel        string            `json:"rel"`
	URL        string            `json:"url"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// FieldPath returns the JSON-Patch path for an ADO field reference name.
func FieldPath(adoField string) string {
	return "/fields/" + adoField
}

// AddField builds an "add" operation for a single field.
func AddField(adoField string, value interface{}) PatchOperation {
	return PatchOperation{Op: "add", Path: FieldPath(adoField), Value: value}
}
