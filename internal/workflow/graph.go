// Package workflow compiles a user-authored canvas into an executable DAG
// and runs it under a phase/result state machine, mirroring the same
// pending/running/terminal shape internal/tasks uses for scheduled task
// executions.
package workflow

import (
	"fmt"

	"github.com/haasonsaas/nexus/pkg/models"
)

// Graph is a compiled Workflow: nodes indexed by id, outgoing/incoming edge
// adjacency, and a topological ordering. Build validates structure (unique
// ids, resolvable edge endpoints) and detects cycles the engine cannot
// execute.
type Graph struct {
	Workflow *models.Workflow
	nodes    map[string]*models.Node
	outEdges map[string][]models.Edge
	inEdges  map[string][]models.Edge
	order    []string
}

// Build compiles wf into a Graph, failing on duplicate node ids, edges
// referencing unknown nodes, or a cycle.
func Build(wf *models.Workflow) (*Graph, error) {
	g, err := buildAdjacency(wf)
	if err != nil {
		return nil, err
	}

	order, err := topoSort(g.nodes, g.outEdges)
	if err != nil {
		return nil, err
	}
	g.order = order

	return g, nil
}

// BuildLoose compiles wf's node/edge adjacency without requiring the result
// be acyclic. Order() is empty on the result; callers that need a
// topological order must use Build instead. Used by the validator's
// business-warning pass, which must tolerate (and merely flag) a cycle
// rather than refuse to inspect the graph at all.
func BuildLoose(wf *models.Workflow) (*Graph, error) {
	return buildAdjacency(wf)
}

func buildAdjacency(wf *models.Workflow) (*Graph, error) {
	g := &Graph{
		Workflow: wf,
		nodes:    make(map[string]*models.Node, len(wf.Nodes)),
		outEdges: make(map[string][]models.Edge),
		inEdges:  make(map[string][]models.Edge),
	}

	for i := range wf.Nodes {
		n := &wf.Nodes[i]
		if _, exists := g.nodes[n.ID]; exists {
			return nil, fmt.Errorf("duplicate node id %q", n.ID)
		}
		g.nodes[n.ID] = n
	}

	for _, e := range wf.Edges {
		if _, ok := g.nodes[e.Source]; !ok {
			return nil, fmt.Errorf("edge %q references unknown source node %q", e.ID, e.Source)
		}
		if _, ok := g.nodes[e.Target]; !ok {
			return nil, fmt.Errorf("edge %q references unknown target node %q", e.ID, e.Target)
		}
		g.outEdges[e.Source] = append(g.outEdges[e.Source], e)
		g.inEdges[e.Target] = append(g.inEdges[e.Target], e)
	}

	return g, nil
}

// Node returns the node with the given id, or nil if none exists.
func (g *Graph) Node(id string) *models.Node {
	return g.nodes[id]
}

// Nodes returns every node in the graph, in no particular order.
func (g *Graph) Nodes() []*models.Node {
	out := make([]*models.Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	return out
}

// Order returns the graph's nodes in a valid topological order: every
// node appears after all of its predecessors.
func (g *Graph) Order() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// OutEdges returns the edges leaving nodeID.
func (g *Graph) OutEdges(nodeID string) []models.Edge {
	return g.outEdges[nodeID]
}

// InEdges returns the edges entering nodeID.
func (g *Graph) InEdges(nodeID string) []models.Edge {
	return g.inEdges[nodeID]
}

// Roots returns every node with no incoming edges - the graph's entry
// points.
func (g *Graph) Roots() []string {
	var roots []string
	for id := range g.nodes {
		if len(g.inEdges[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Orphans returns every node that is neither a root nor reachable from one,
// i.e. has no incoming edges and no outgoing edges to anything that is
// itself reachable from a trigger. Used by the business-validation layer;
// the engine itself only needs Roots and Order.
func (g *Graph) Orphans() []string {
	reachable := g.reachableFromRoots()
	var orphans []string
	for id := range g.nodes {
		if !reachable[id] {
			orphans = append(orphans, id)
		}
	}
	return orphans
}

func (g *Graph) reachableFromRoots() map[string]bool {
	reachable := make(map[string]bool)
	var visit func(id string)
	visit = func(id string) {
		if reachable[id] {
			return
		}
		reachable[id] = true
		for _, e := range g.outEdges[id] {
			visit(e.Target)
		}
	}
	for _, r := range g.Roots() {
		visit(r)
	}
	return reachable
}

// topoSort performs Kahn's algorithm over the node/edge adjacency, failing
// with a cycle error if any node remains unvisited once every in-degree-zero
// node has been processed.
func topoSort(nodes map[string]*models.Node, outEdges map[string][]models.Edge) ([]string, error) {
	inDegree := make(map[string]int, len(nodes))
	for id := range nodes {
		inDegree[id] = 0
	}
	for _, edges := range outEdges {
		for _, e := range edges {
			inDegree[e.Target]++
		}
	}

	var queue []string
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, len(nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, e := range outEdges[id] {
			inDegree[e.Target]--
			if inDegree[e.Target] == 0 {
				queue = append(queue, e.Target)
			}
		}
	}

	if len(order) != len(nodes) {
		return nil, fmt.Errorf("workflow graph contains a cycle the engine cannot execute")
	}
	return order, nil
}

// HasCycle reports whether the node/edge set describes a cycle, without
// failing the whole Build - used by the validator's business-warning pass,
// which must tolerate cycles and merely flag them.
func HasCycle(wf *models.Workflow) bool {
	nodes := make(map[string]*models.Node, len(wf.Nodes))
	for i := range wf.Nodes {
		nodes[wf.Nodes[i].ID] = &wf.Nodes[i]
	}
	outEdges := make(map[string][]models.Edge)
	for _, e := range wf.Edges {
		outEdges[e.Source] = append(outEdges[e.Source], e)
	}
	_, err := topoSort(nodes, outEdges)
	return err != nil
}
