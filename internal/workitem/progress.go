package workitem

import "math"

// MaxDepth bounds how far DeepProgress and Walk descend below a node.
const MaxDepth = 64

// DoneStates are the states whose effort counts as completed.
var DoneStates = map[string]bool{
	"Done":     true,
	"Closed":   true,
	"Resolved": true,
}

// IsDone reports whether state is one of DoneStates.
func IsDone(state string) bool {
	return DoneStates[state]
}

// Progress is an effort roll-up.
type Progress struct {
	CompletedEffort float64 `json:"completedEffort"`
	TotalEffort     float64 `json:"totalEffort"`
	Percentage      int     `json:"percentage"`
}

// EffortOf returns story points when set, otherwise effort, otherwise 0.
func EffortOf(item WorkItem) float64 {
	if item.StoryPoints != nil {
		return *item.StoryPoints
	}
	if item.Effort != nil {
		return *item.Effort
	}
	return 0
}

func (p *Progress) add(item WorkItem) {
	e := EffortOf(item)
	p.TotalEffort += e
	if IsDone(item.State) {
		p.CompletedEffort += e
	}
}

func (p *Progress) finish() {
	if p.TotalEffort > 0 {
		p.Percentage = int(math.Round(100 * p.CompletedEffort / p.TotalEffort))
	} else {
		p.Percentage = 0
	}
}

// ShallowProgress sums the direct children of a feature.
func ShallowProgress(children []WorkItem) Progress {
	var p Progress
	for _, c := range children {
		p.add(c)
	}
	p.finish()
	return p
}

// DeepProgress sums every descendant of node, excluding node itself. The walk
// is iterative, skips nodes it has already counted and stops descending at
// MaxDepth, so a cyclic structure terminates.
func DeepProgress(node *Node) Progress {
	var p Progress
	if node == nil {
		p.finish()
		return p
	}

	type frame struct {
		node  *Node
		depth int
	}
	visited := map[*Node]bool{node: true}
	stack := []frame{{node, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.depth >= MaxDepth {
			continue
		}
		for _, child := range f.node.Children {
			if child == nil || visited[child] {
				continue
			}
			visited[child] = true
			p.add(child.WorkItem)
			stack = append(stack, frame{child, f.depth + 1})
		}
	}
	p.finish()
	return p
}
