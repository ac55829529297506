package workitem

// Node is a WorkItem placed in a hierarchy.
type Node struct {
	WorkItem
	Children []*Node  `json:"children"`
	Progress *Progress `json:"progress,omitempty"`
}

// BuildForest converts a flat list into a parent/child forest. The first pass
// indexes every item by id; the second attaches each item to its parent, or
// to the root set when it has no parent or the parent is not in the list.
// Every input item appears exactly once and input order is preserved among
// siblings and roots.
func BuildForest(items []WorkItem) []*Node {
	nodes := make(map[int]*Node, len(items))
	ordered := make([]*Node, 0, len(items))
	for _, item := range items {
		if _, dup := nodes[item.ID]; dup {
			continue
		}
		n := &Node{WorkItem: item, Children: []*Node{}}
		nodes[item.ID] = n
		ordered = append(ordered, n)
	}

	roots := make([]*Node, 0)
	for _, n := range ordered {
		if n.ParentID != nil && *n.ParentID != n.ID {
			if parent, ok := nodes[*n.ParentID]; ok {
				parent.Children = append(parent.Children, n)
				continue
			}
		}
		roots = append(roots, n)
	}
	return roots
}

// Walk visits every node reachable from roots in depth-first order. Each node
// is visited once even if the structure contains a cycle.
func Walk(roots []*Node, fn func(n *Node, depth int)) {
	type frame struct {
		node  *Node
		depth int
	}
	seen := make(map[*Node]bool)
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{roots[i], 0})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.node == nil || seen[f.node] {
			continue
		}
		seen[f.node] = true
		fn(f.node, f.depth)
		if f.depth >= MaxDepth {
			continue
		}
		for i := len(f.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{f.node.Children[i], f.depth + 1})
		}
	}
}

// Count returns the number of distinct nodes reachable from roots.
func Count(roots []*Node) int {
	n := 0
	Walk(roots, func(*Node, int) { n++ })
	return n
}

// AnnotateProgress sets the deep progress of every node in the forest.
func AnnotateProgress(roots []*Node) {
	Walk(roots, func(n *Node, _ int) {
		p := DeepProgress(n)
		n.Progress = &p
	})
}
