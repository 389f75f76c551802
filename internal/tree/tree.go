// Package tree builds an in-memory view of the node hierarchy for
// rendering. Nodes replicate independently, so a parent pointer can be
// stale or even cyclic mid-sync; every walk is bounded by a visited set.
package tree

import (
	"sort"

	"github.com/marcus/cardbox/internal/models"
)

// Summary is the arena entry for one node.
type Summary struct {
	ID       string
	ParentID string
	Name     string
	Subtitle string
	Deleted  bool
}

// Arena is a flat id-indexed view of all nodes.
type Arena struct {
	nodes    map[string]Summary
	children map[string][]string
}

// Build creates an arena from a node listing. Deleted nodes are kept in
// the arena so breadcrumbs through them still resolve, but they are not
// registered as children.
func Build(nodes []models.Node) *Arena {
	a := &Arena{
		nodes:    make(map[string]Summary, len(nodes)),
		children: make(map[string][]string),
	}
	for _, n := range nodes {
		a.nodes[n.ID] = Summary{
			ID:       n.ID,
			ParentID: n.ParentID,
			Name:     n.Name,
			Subtitle: n.Subtitle,
			Deleted:  n.Deleted(),
		}
		if !n.Deleted() {
			a.children[n.ParentID] = append(a.children[n.ParentID], n.ID)
		}
	}
	for _, ids := range a.children {
		sort.Strings(ids)
	}
	return a
}

// Get returns the summary for id and whether it exists.
func (a *Arena) Get(id string) (Summary, bool) {
	s, ok := a.nodes[id]
	return s, ok
}

// Children returns the ids of the live children of id, sorted.
func (a *Arena) Children(id string) []string {
	return a.children[id]
}

// Roots returns the ids of live nodes with no parent.
func (a *Arena) Roots() []string {
	return a.children[""]
}

// Ancestors walks parent pointers from id (exclusive) to the root,
// returning the chain root-first. cycle is true when the walk hit a node
// twice; the partial chain up to that point is still returned.
func (a *Arena) Ancestors(id string) (chain []Summary, cycle bool) {
	visited := map[string]bool{id: true}
	cur, ok := a.nodes[id]
	if !ok {
		return nil, false
	}
	for cur.ParentID != "" {
		if visited[cur.ParentID] {
			return reverse(chain), true
		}
		parent, ok := a.nodes[cur.ParentID]
		if !ok {
			// Parent not replicated yet; treat as root.
			break
		}
		visited[parent.ID] = true
		chain = append(chain, parent)
		cur = parent
	}
	return reverse(chain), false
}

// Walk visits the live subtree under id depth-first, calling fn with each
// summary and its depth (0 for id itself). Revisiting a node ends that
// branch, so a cyclic parent chain cannot loop the traversal.
func (a *Arena) Walk(id string, fn func(s Summary, depth int)) {
	visited := make(map[string]bool)
	var rec func(id string, depth int)
	rec = func(id string, depth int) {
		if visited[id] {
			return
		}
		visited[id] = true
		s, ok := a.nodes[id]
		if !ok {
			return
		}
		fn(s, depth)
		for _, child := range a.children[id] {
			rec(child, depth+1)
		}
	}
	rec(id, 0)
}

func reverse(s []Summary) []Summary {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
	return s
}
