// Package stagegate maps ADO work item states onto the five stage-gate
// columns.
package stagegate

import "github.com/zulandar/storyforge/internal/workitem"

// Stage names in board order.
const (
	Intake      = "Intake"
	Discovery   = "Discovery"
	Development = "Development"
	Testing     = "Testing"
	Complete    = "Complete"
)

var stages = []string{Intake, Discovery, Development, Testing, Complete}

// The table is fixed for every project. Covers the Basic, Agile and Scrum
// templates plus common custom states.
var stateToStage = map[string]string{
	"To Do": Intake,
	"Doing": Development,
	"Done":  Complete,

	"New":      Intake,
	"Active":   Discovery,
	"Resolved": Testing,
	"Closed":   Complete,
	"Removed":  Complete,

	"In Progress":       Development,
	"Design":            Discovery,
	"Ready for Dev":     Discovery,
	"In Testing":        Testing,
	"UAT":               Testing,
	"Ready for Release": Testing,
}

// StageForState returns the stage for an ADO state. Unknown states land in
// Intake.
func StageForState(state string) string {
	if s, ok := stateToStage[state]; ok {
		return s
	}
	return Intake
}

// Stages returns the stage names in board order.
func Stages() []string {
	out := make([]string, len(stages))
	copy(out, stages)
	return out
}

// Mapping returns a copy of the state to stage table.
func Mapping() map[string]string {
	out := make(map[string]string, len(stateToStage))
	for k, v := range stateToStage {
		out[k] = v
	}
	return out
}

// Feature is a work item annotated with its stage.
type Feature struct {
	workitem.WorkItem
	Stage string `json:"stage"`
}

// Annotate attaches a stage to each item. An empty state is treated as New.
func Annotate(items []workitem.WorkItem) []Feature {
	out := make([]Feature, 0, len(items))
	for _, it := range items {
		if it.State == "" {
			it.State = "New"
		}
		out = append(out, Feature{WorkItem: it, Stage: StageForState(it.State)})
	}
	return out
}

// Board is the stage-gate view: features grouped by stage with counts.
type Board struct {
	Features []Feature           `json:"features"`
	Grouped  map[string][]Feature `json:"grouped"`
	Counts   map[string]int       `json:"counts"`
}

// Group buckets features by stage. Every stage is present in Grouped and
// Counts, empty ones included.
func Group(features []Feature) Board {
	b := Board{
		Features: features,
		Grouped:  make(map[string][]Feature, len(stages)),
		Counts:   make(map[string]int, len(stages)),
	}
	if b.Features == nil {
		b.Features = []Feature{}
	}
	for _, s := range stages {
		b.Grouped[s] = []Feature{}
	}
	for _, f := range features {
		stage := f.Stage
		if _, ok := b.Grouped[stage]; !ok {
			stage = Intake
		}
		b.Grouped[stage] = append(b.Grouped[stage], f)
	}
	for _, s := range stages {
		b.Counts[s] = len(b.Grouped[s])
	}
	return b
}
