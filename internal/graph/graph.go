// Package graph maintains the dependency graph built from extracted code
// relationships. Nodes are (filePath, symbol) pairs; edges are typed and
// weighted, with duplicate edges merging by weight summation.
package graph

import (
	"fmt"
	"sort"

	"github.com/imaxisXD/ai-code-review-service-sub000/internal/logging"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/types"
)

// Node is a vertex in the dependency graph.
type Node struct {
	ID         string
	FilePath   string
	SymbolName string
	Type       string
}

// Edge is a weighted, typed connection between two node IDs.
type Edge struct {
	SourceID string
	TargetID string
	Type     types.RelationshipType
	Weight   int
}

// edgeKey identifies an edge for weight merging.
type edgeKey struct {
	source string
	target string
	typ    types.RelationshipType
}

// Graph holds nodes plus outgoing and incoming adjacency. Not safe for
// concurrent mutation; the indexing orchestrator serializes writes per
// repository and callers receive read-only traversal results.
type Graph struct {
	nodes    map[string]*Node
	edges    map[edgeKey]*Edge
	outgoing map[string][]*Edge
	incoming map[string][]*Edge
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[string]*Node),
		edges:    make(map[edgeKey]*Edge),
		outgoing: make(map[string][]*Edge),
		incoming: make(map[string][]*Edge),
	}
}

// NodeID builds the canonical node key. An empty symbol denotes the file
// itself.
func NodeID(filePath, symbolName string) string {
	if symbolName == "" {
		symbolName = "file"
	}
	return fmt.Sprintf("%s:%s", filePath, symbolName)
}

// AddNode inserts a node if absent and returns it.
func (g *Graph) AddNode(filePath, symbolName, nodeType string) *Node {
	id := NodeID(filePath, symbolName)
	if n, ok := g.nodes[id]; ok {
		return n
	}
	n := &Node{ID: id, FilePath: filePath, SymbolName: symbolName, Type: nodeType}
	g.nodes[id] = n
	return n
}

// GetNode returns the node with the given id, if present.
func (g *Graph) GetNode(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of distinct (source, target, type) edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// AddEdge connects two existing-or-created nodes. A repeated
// (source, target, type) triple increments the stored edge's weight instead
// of adding a parallel edge, so insertion order cannot change the result.
func (g *Graph) AddEdge(sourceID, targetID string, relType types.RelationshipType, weight int) {
	if weight < 1 {
		weight = 1
	}
	if _, ok := g.nodes[sourceID]; !ok {
		g.nodes[sourceID] = &Node{ID: sourceID}
	}
	if _, ok := g.nodes[targetID]; !ok {
		g.nodes[targetID] = &Node{ID: targetID}
	}

	key := edgeKey{source: sourceID, target: targetID, typ: relType}
	if e, ok := g.edges[key]; ok {
		e.Weight += weight
		return
	}
	e := &Edge{SourceID: sourceID, TargetID: targetID, Type: relType, Weight: weight}
	g.edges[key] = e
	g.outgoing[sourceID] = append(g.outgoing[sourceID], e)
	g.incoming[targetID] = append(g.incoming[targetID], e)
}

// AddRelationship records an extracted relationship as an edge between the
// source and target symbols of the file it was observed in.
func (g *Graph) AddRelationship(rel types.CodeRelationship) {
	source := g.AddNode(rel.Location.FilePath, rel.Source, "symbol")
	target := g.AddNode(rel.Location.FilePath, rel.Target, "symbol")
	g.AddEdge(source.ID, target.ID, rel.Type, 1)
}

// direction selects which adjacency a traversal follows.
type direction int

const (
	followOutgoing direction = iota
	followIncoming
)

// FindDependencies returns nodes reachable by following outgoing edges from
// (filePath, symbol), up to depth edges away. The starting node is excluded.
func (g *Graph) FindDependencies(filePath, symbolName string, depth int) []*Node {
	return g.traverse(NodeID(filePath, symbolName), depth, followOutgoing)
}

// FindDependents returns nodes reachable by following incoming edges.
func (g *Graph) FindDependents(filePath, symbolName string, depth int) []*Node {
	return g.traverse(NodeID(filePath, symbolName), depth, followIncoming)
}

// TransitiveClosureDependents follows incoming edges until the visited set
// saturates. A non-positive depth means unbounded.
func (g *Graph) TransitiveClosureDependents(filePath, symbolName string, depth int) []*Node {
	if depth <= 0 {
		depth = len(g.nodes) + 1
	}
	return g.traverse(NodeID(filePath, symbolName), depth, followIncoming)
}

// traverse runs a depth-first walk. A per-call visited set guarantees
// termination on cycles.
func (g *Graph) traverse(startID string, depth int, dir direction) []*Node {
	timer := logging.StartTimer(logging.CategoryGraph, "traverse")
	defer timer.Stop()

	visited := map[string]bool{startID: true}
	var result []*Node

	var walk func(id string, remaining int)
	walk = func(id string, remaining int) {
		if remaining <= 0 {
			return
		}
		var edges []*Edge
		if dir == followOutgoing {
			edges = g.outgoing[id]
		} else {
			edges = g.incoming[id]
		}
		for _, e := range edges {
			next := e.TargetID
			if dir == followIncoming {
				next = e.SourceID
			}
			if visited[next] {
				continue
			}
			visited[next] = true
			if n, ok := g.nodes[next]; ok {
				result = append(result, n)
			}
			walk(next, remaining-1)
		}
	}
	walk(startID, depth)

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	logging.GraphDebug("traverse from %s depth=%d visited=%d returned=%d",
		startID, depth, len(visited), len(result))
	return result
}

// OutgoingEdges returns the edges leaving a node.
func (g *Graph) OutgoingEdges(id string) []*Edge { return g.outgoing[id] }

// IncomingEdges returns the edges arriving at a node.
func (g *Graph) IncomingEdges(id string) []*Edge { return g.incoming[id] }
