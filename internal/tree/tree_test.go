package tree

import (
	"testing"

	"github.com/marcus/cardbox/internal/models"
)

func node(id, parent, name string) models.Node {
	return models.Node{ID: id, ParentID: parent, Name: name, UpdatedAt: 1}
}

func TestAncestorsChain(t *testing.T) {
	a := Build([]models.Node{
		node("nd-root", "", "root"),
		node("nd-mid", "nd-root", "mid"),
		node("nd-leaf", "nd-mid", "leaf"),
	})

	chain, cycle := a.Ancestors("nd-leaf")
	if cycle {
		t.Fatal("unexpected cycle")
	}
	if len(chain) != 2 || chain[0].ID != "nd-root" || chain[1].ID != "nd-mid" {
		t.Fatalf("chain = %+v, want root then mid", chain)
	}
}

func TestAncestorsDetectsCycle(t *testing.T) {
	// a -> b -> c -> a, as a mid-sync replica can transiently hold.
	a := Build([]models.Node{
		node("nd-a", "nd-c", "a"),
		node("nd-b", "nd-a", "b"),
		node("nd-c", "nd-b", "c"),
	})

	chain, cycle := a.Ancestors("nd-b")
	if !cycle {
		t.Fatal("cycle not detected")
	}
	if len(chain) == 0 {
		t.Error("partial chain not returned on cycle")
	}
}

func TestAncestorsMissingParentTreatedAsRoot(t *testing.T) {
	a := Build([]models.Node{
		node("nd-orphan", "nd-unreplicated", "orphan"),
	})

	chain, cycle := a.Ancestors("nd-orphan")
	if cycle || len(chain) != 0 {
		t.Fatalf("chain = %+v cycle = %v, want empty chain", chain, cycle)
	}
}

func TestWalkBoundedOnCycle(t *testing.T) {
	a := Build([]models.Node{
		node("nd-a", "nd-b", "a"),
		node("nd-b", "nd-a", "b"),
	})

	visits := 0
	a.Walk("nd-a", func(s Summary, depth int) {
		visits++
		if visits > 10 {
			t.Fatal("walk did not terminate")
		}
	})
	if visits == 0 {
		t.Error("walk visited nothing")
	}
}

func TestDeletedNodesExcludedFromChildren(t *testing.T) {
	deleted := int64(5)
	nodes := []models.Node{
		node("nd-root", "", "root"),
		node("nd-live", "nd-root", "live"),
		{ID: "nd-dead", ParentID: "nd-root", Name: "dead", UpdatedAt: 5, DeletedAt: &deleted},
	}
	a := Build(nodes)

	kids := a.Children("nd-root")
	if len(kids) != 1 || kids[0] != "nd-live" {
		t.Fatalf("children = %v, want only the live node", kids)
	}

	// Still resolvable for breadcrumbs.
	if _, ok := a.Get("nd-dead"); !ok {
		t.Error("deleted node missing from arena")
	}
}

func TestRootsSorted(t *testing.T) {
	a := Build([]models.Node{
		node("nd-bb", "", "b"),
		node("nd-aa", "", "a"),
	})
	roots := a.Roots()
	if len(roots) != 2 || roots[0] != "nd-aa" {
		t.Fatalf("roots = %v, want sorted", roots)
	}
}
