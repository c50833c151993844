package graph

import (
	"testing"

	"github.com/imaxisXD/ai-code-review-service-sub000/internal/types"
)

func TestAddEdge_DuplicatesMergeByWeight(t *testing.T) {
	g := New()
	x := NodeID("a.ts", "X")
	y := NodeID("a.ts", "Y")

	g.AddEdge(x, y, types.RelFunctionCall, 1)
	g.AddEdge(x, y, types.RelFunctionCall, 1)

	if g.EdgeCount() != 1 {
		t.Fatalf("expected exactly one edge, got %d", g.EdgeCount())
	}
	edges := g.OutgoingEdges(x)
	if len(edges) != 1 || edges[0].Weight != 2 {
		t.Errorf("expected single edge with weight 2, got %+v", edges)
	}
}

func TestAddEdge_DifferentTypesStaySeparate(t *testing.T) {
	g := New()
	x := NodeID("a.ts", "X")
	y := NodeID("a.ts", "Y")

	g.AddEdge(x, y, types.RelFunctionCall, 1)
	g.AddEdge(x, y, types.RelUsage, 1)

	if g.EdgeCount() != 2 {
		t.Errorf("expected 2 edges for distinct types, got %d", g.EdgeCount())
	}
}

func TestFindDependencies_ExcludesStartAndRespectsDepth(t *testing.T) {
	g := New()
	g.AddNode("f.ts", "A", "symbol")
	g.AddNode("f.ts", "B", "symbol")
	g.AddNode("f.ts", "C", "symbol")
	g.AddEdge(NodeID("f.ts", "A"), NodeID("f.ts", "B"), types.RelFunctionCall, 1)
	g.AddEdge(NodeID("f.ts", "B"), NodeID("f.ts", "C"), types.RelFunctionCall, 1)

	depth1 := g.FindDependencies("f.ts", "A", 1)
	if len(depth1) != 1 || depth1[0].SymbolName != "B" {
		t.Errorf("depth 1: expected [B], got %+v", depth1)
	}

	depth2 := g.FindDependencies("f.ts", "A", 2)
	if len(depth2) != 2 {
		t.Errorf("depth 2: expected [B C], got %+v", depth2)
	}
	for _, n := range depth2 {
		if n.SymbolName == "A" {
			t.Error("starting node must be excluded from results")
		}
	}
}

func TestFindDependents_FollowsIncomingEdges(t *testing.T) {
	g := New()
	g.AddNode("f.ts", "A", "symbol")
	g.AddNode("f.ts", "B", "symbol")
	g.AddEdge(NodeID("f.ts", "A"), NodeID("f.ts", "B"), types.RelFunctionCall, 1)

	dependents := g.FindDependents("f.ts", "B", 1)
	if len(dependents) != 1 || dependents[0].SymbolName != "A" {
		t.Errorf("expected [A], got %+v", dependents)
	}
}

func TestTraversal_TerminatesOnCycles(t *testing.T) {
	g := New()
	g.AddNode("f.ts", "A", "symbol")
	g.AddNode("f.ts", "B", "symbol")
	g.AddEdge(NodeID("f.ts", "A"), NodeID("f.ts", "B"), types.RelFunctionCall, 1)
	g.AddEdge(NodeID("f.ts", "B"), NodeID("f.ts", "A"), types.RelFunctionCall, 1)

	deps := g.FindDependencies("f.ts", "A", 100)
	if len(deps) != 1 {
		t.Errorf("cycle: expected exactly [B], got %+v", deps)
	}

	closure := g.TransitiveClosureDependents("f.ts", "A", 0)
	if len(closure) != 1 {
		t.Errorf("unbounded closure on cycle: expected [B], got %+v", closure)
	}
}

func TestAddRelationship_BuildsNodes(t *testing.T) {
	g := New()
	g.AddRelationship(types.CodeRelationship{
		Type:     types.RelFunctionCall,
		Source:   "caller",
		Target:   "callee",
		Location: types.SourceLocation{FilePath: "m.ts", StartLine: 3, EndLine: 3},
	})
	if g.NodeCount() != 2 {
		t.Errorf("expected 2 nodes, got %d", g.NodeCount())
	}
	if _, ok := g.GetNode("m.ts:caller"); !ok {
		t.Error("expected node m.ts:caller")
	}
}

func TestCache_PerRepositoryIsolation(t *testing.T) {
	c := NewCache()
	a := c.Get("repo-a")
	b := c.Get("repo-b")
	if a == b {
		t.Fatal("repositories must get distinct graphs")
	}
	a.AddNode("f.ts", "X", "symbol")
	if b.NodeCount() != 0 {
		t.Error("graphs must be isolated")
	}

	c.Clear("repo-a")
	if c.Get("repo-a").NodeCount() != 0 {
		t.Error("cleared repository must start empty")
	}
}
