// Package validation checks workflow graphs for structural problems before planning.
package validation

import (
	"fmt"
	"slices"

	"github.com/dukex/flowplan/pkg/graph"
	"github.com/dukex/flowplan/pkg/models"
)

// Result is the outcome of Validate. Errors are fatal and block planning;
// warnings (orphan nodes) do not.
type Result struct {
	Errors   []models.GraphError `json:"errors,omitempty"`
	Warnings []models.GraphError `json:"warnings,omitempty"`
}

// Valid reports whether the graph has no fatal errors. It may still carry warnings.
func (r Result) Valid() bool {
	return len(r.Errors) == 0
}

// Issues returns errors followed by warnings.
func (r Result) Issues() []models.GraphError {
	return append(slices.Clone(r.Errors), r.Warnings...)
}

// Orphans returns the ids of nodes reported as unreachable.
func (r Result) Orphans() []string {
	ids := make([]string, 0, len(r.Warnings))
	for _, w := range r.Warnings {
		if w.Kind == models.GraphErrorOrphanNode {
			ids = append(ids, w.NodeIDs...)
		}
	}

	return ids
}

// HasKind reports whether any error or warning has the given kind.
func (r Result) HasKind(kind models.GraphErrorKind) bool {
	return slices.ContainsFunc(r.Issues(), func(e models.GraphError) bool {
		return e.Kind == kind
	})
}

// Validate runs the structural checks in order: dangling references, cycles,
// arity and reachability. A class that reports errors stops the checks that
// follow it; problems within a class are accumulated.
func Validate(g *graph.Graph) Result {
	if errs := checkDanglingReferences(g); len(errs) > 0 {
		return Result{Errors: errs}
	}

	if errs := checkCycles(g); len(errs) > 0 {
		return Result{Errors: errs}
	}

	reachable := g.Reachable()

	if errs := checkArity(g, reachable); len(errs) > 0 {
		return Result{Errors: errs}
	}

	return Result{Warnings: checkReachability(g, reachable)}
}

func checkDanglingReferences(g *graph.Graph) []models.GraphError {
	var errs []models.GraphError

	for _, conn := range g.Connections() {
		missing := make([]string, 0, 2)

		if !g.HasNode(conn.From) {
			missing = append(missing, conn.From)
		}

		if conn.To != conn.From && !g.HasNode(conn.To) {
			missing = append(missing, conn.To)
		}

		if len(missing) == 0 {
			continue
		}

		errs = append(errs, models.GraphError{
			Kind:         models.GraphErrorDanglingReference,
			NodeIDs:      missing,
			ConnectionID: conn.ID,
			Message:      fmt.Sprintf("connection %s references unknown node(s) %v", conn.ID, missing),
		})
	}

	return errs
}

func checkCycles(g *graph.Graph) []models.GraphError {
	cycles := FindCycles(g.NodeIDs(), g.Successors)

	errs := make([]models.GraphError, 0, len(cycles))
	for _, cycle := range cycles {
		errs = append(errs, models.GraphError{
			Kind:    models.GraphErrorCycle,
			NodeIDs: cycle,
			Message: fmt.Sprintf("cycle detected: %v", cycle),
		})
	}

	return errs
}

// checkArity applies kind specific edge count rules. Non-trigger nodes outside
// the reachable set are skipped here; they are reported as orphans instead.
func checkArity(g *graph.Graph, reachable map[string]struct{}) []models.GraphError {
	var (
		errs       []models.GraphError
		hasTrigger bool
	)

	violation := func(node *models.Node, format string, args ...any) {
		errs = append(errs, models.GraphError{
			Kind:    models.GraphErrorArityViolation,
			NodeIDs: []string{node.ID},
			Message: fmt.Sprintf("%s node %s ", node.Kind, node.ID) + fmt.Sprintf(format, args...),
		})
	}

	for _, node := range g.Nodes() {
		in := len(g.Predecessors(node.ID))
		out := len(g.Successors(node.ID))

		if node.IsTrigger() {
			hasTrigger = true

			if in != 0 {
				violation(node, "must have no incoming edges, has %d", in)
			}

			if out == 0 {
				violation(node, "must have at least one outgoing edge")
			}

			continue
		}

		if _, ok := reachable[node.ID]; !ok {
			continue
		}

		switch node.Kind {
		case models.NodeKindOutput:
			if out != 0 {
				violation(node, "must have no outgoing edges, has %d", out)
			}
		case models.NodeKindAction, models.NodeKindCondition:
			if out == 0 && !node.Terminal {
				violation(node, "must have at least one outgoing edge unless marked terminal")
			}
		}
	}

	if !hasTrigger {
		errs = append(errs, models.GraphError{
			Kind:    models.GraphErrorNoTrigger,
			Message: "workflow must have at least one trigger node",
		})
	}

	return errs
}

func checkReachability(g *graph.Graph, reachable map[string]struct{}) []models.GraphError {
	var warnings []models.GraphError

	for _, id := range g.NodeIDs() {
		if _, ok := reachable[id]; ok {
			continue
		}

		warnings = append(warnings, models.GraphError{
			Kind:    models.GraphErrorOrphanNode,
			NodeIDs: []string{id},
			Message: fmt.Sprintf("node %s is not reachable from any trigger and will not be executed", id),
		})
	}

	return warnings
}
