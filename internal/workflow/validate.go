package workflow

import (
	"fmt"

	"github.com/haasonsaas/nexus/pkg/models"
)

// Structural/business limits the validator enforces. Graphs larger than
// these are rejected outright rather than merely warned about, since the
// engine has no pagination story for a single execution's node set.
const (
	maxNodes = 500
	maxEdges = 2000
)

// Severity distinguishes a validation failure (the workflow cannot be
// saved/run) from a warning (it can, but something about it is probably a
// mistake).
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one structural, compile, or business finding against a Workflow.
type Issue struct {
	Severity Severity `json:"severity"`
	NodeID   string   `json:"node_id,omitempty"`
	EdgeID   string   `json:"edge_id,omitempty"`
	Message  string   `json:"message"`
}

// Result is the outcome of validating a Workflow: Valid is false if any
// Issue has SeverityError.
type Result struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues"`
}

func (r *Result) addError(nodeID, edgeID, format string, args ...any) {
	r.Valid = false
	r.Issues = append(r.Issues, Issue{Severity: SeverityError, NodeID: nodeID, EdgeID: edgeID, Message: fmt.Sprintf(format, args...)})
}

func (r *Result) addWarning(nodeID, edgeID, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Severity: SeverityWarning, NodeID: nodeID, EdgeID: edgeID, Message: fmt.Sprintf(format, args...)})
}

// Validate runs every layer in order: structural checks first (since a
// structurally broken graph can't be compiled at all), then the compile
// probe (topological sort / cycle detection over the structurally-valid
// graph), then business warnings. Warnings never flip Valid to false.
func Validate(wf *models.Workflow) *Result {
	r := &Result{Valid: true}

	structuralOK := validateStructure(wf, r)
	if !structuralOK {
		return r
	}

	g, err := BuildLoose(wf)
	if err != nil {
		r.addError("", "", "workflow graph does not compile: %v", err)
		return r
	}

	if HasCycle(wf) {
		if len(wf.Nodes) > maxNodes {
			r.addError("", "", "workflow graph contains a cycle, which is only tolerated below %d nodes", maxNodes)
			return r
		}
		r.addWarning("", "", "workflow graph contains a cycle; the engine will still execute it node-by-node but downstream tooling that assumes a strict topological order may misbehave")
	}

	validateBusiness(wf, g, r)
	return r
}

func validateStructure(wf *models.Workflow, r *Result) bool {
	ok := true

	if len(wf.Nodes) == 0 {
		r.addError("", "", "workflow has no nodes")
		ok = false
	}
	if len(wf.Nodes) > maxNodes {
		r.addError("", "", "workflow has %d nodes, exceeding the maximum of %d", len(wf.Nodes), maxNodes)
		ok = false
	}
	if len(wf.Edges) > maxEdges {
		r.addError("", "", "workflow has %d edges, exceeding the maximum of %d", len(wf.Edges), maxEdges)
		ok = false
	}

	seen := make(map[string]bool, len(wf.Nodes))
	for _, n := range wf.Nodes {
		if n.ID == "" {
			r.addError("", "", "a node has no id")
			ok = false
			continue
		}
		if seen[n.ID] {
			r.addError(n.ID, "", "duplicate node id %q", n.ID)
			ok = false
			continue
		}
		seen[n.ID] = true

		switch n.Type {
		case models.NodeTrigger, models.NodeTool, models.NodeAgent, models.NodeConditional:
		default:
			r.addError(n.ID, "", "node %q has unknown type %q", n.ID, n.Type)
			ok = false
			continue
		}

		if !validateNodeData(n, r) {
			ok = false
		}
	}

	for _, e := range wf.Edges {
		if e.Source == "" || e.Target == "" {
			r.addError("", e.ID, "edge %q is missing a source or target", e.ID)
			ok = false
			continue
		}
		if !seen[e.Source] {
			r.addError("", e.ID, "edge %q references unknown source node %q", e.ID, e.Source)
			ok = false
		}
		if !seen[e.Target] {
			r.addError("", e.ID, "edge %q references unknown target node %q", e.ID, e.Target)
			ok = false
		}
		if e.Branch != "" && e.Branch != "true" && e.Branch != "false" {
			r.addError("", e.ID, "edge %q has invalid branch %q, must be \"true\" or \"false\"", e.ID, e.Branch)
			ok = false
		}
	}

	return ok
}

// validateNodeData checks that each node type's required Data fields are
// present and well-typed, independent of graph shape.
func validateNodeData(n models.Node, r *Result) bool {
	ok := true
	switch n.Type {
	case models.NodeTool:
		name, _ := n.Data["tool_name"].(string)
		if name == "" {
			r.addError(n.ID, "", "tool node %q is missing tool_name", n.ID)
			ok = false
		}
	case models.NodeAgent:
		agentID, _ := n.Data["agent_id"].(string)
		if agentID == "" {
			r.addError(n.ID, "", "agent node %q is missing agent_id", n.ID)
			ok = false
		}
	case models.NodeConditional:
		condition, _ := n.Data["condition"].(string)
		if condition == "" {
			r.addError(n.ID, "", "conditional node %q is missing condition", n.ID)
			ok = false
		}
	case models.NodeTrigger:
		triggerType, _ := n.Data["trigger_type"].(string)
		if triggerType == "" {
			r.addError(n.ID, "", "trigger node %q is missing trigger_type", n.ID)
			ok = false
		}
	}
	return ok
}

// validateBusiness adds warnings for things that are legal but probably
// wrong: no trigger at all, and nodes unreachable from any trigger.
func validateBusiness(wf *models.Workflow, g *Graph, r *Result) {
	hasTrigger := false
	for _, n := range wf.Nodes {
		if n.Type == models.NodeTrigger {
			hasTrigger = true
			break
		}
	}
	if !hasTrigger {
		r.addWarning("", "", "workflow has no trigger node")
	}

	for _, id := range g.Orphans() {
		r.addWarning(id, "", "node %q is not reachable from any trigger", id)
	}
}
