// Package planner turns a validated graph into a stage grouped execution plan.
package planner

import (
	"fmt"
	"sort"

	"github.com/dukex/flowplan/pkg/flow"
	"github.com/dukex/flowplan/pkg/graph"
	"github.com/dukex/flowplan/pkg/models"
)

// Plan orders the nodes reachable from a trigger with Kahn's algorithm. Every
// iteration takes all nodes whose in-degree dropped to zero as the next stage,
// sorted by id, so identical graphs always yield identical plans.
//
// Orphan nodes are left out and reported as ExcludedOrphan. Nodes that can never
// reach in-degree zero mean a cycle got past validation; they are reported as
// InternalCycle and left out of the returned plan.
func Plan(g *graph.Graph, bindings flow.Bindings) (models.ExecutionPlan, []models.PlanError) {
	reachable := g.Reachable()

	var errs []models.PlanError

	for _, id := range g.NodeIDs() {
		if _, ok := reachable[id]; !ok {
			errs = append(errs, models.PlanError{
				Kind:    models.PlanErrorExcludedOrphan,
				NodeIDs: []string{id},
				Message: fmt.Sprintf("node %s is unreachable from any trigger and was excluded", id),
			})
		}
	}

	indegree := make(map[string]int, len(reachable))
	for id := range reachable {
		if !g.HasNode(id) {
			continue
		}

		indegree[id] = 0
	}

	for id := range indegree {
		for _, pred := range g.Predecessors(id) {
			if _, ok := indegree[pred]; ok {
				indegree[id]++
			}
		}
	}

	plan := models.ExecutionPlan{
		Visible: make(map[string][]models.VisibleVariable, len(indegree)),
	}

	for _, e := range errs {
		plan.Excluded = append(plan.Excluded, e.NodeIDs...)
	}

	remaining := len(indegree)

	for remaining > 0 {
		stage := make(models.Stage, 0)
		for id, d := range indegree {
			if d == 0 {
				stage = append(stage, id)
			}
		}

		if len(stage) == 0 {
			stuck := make([]string, 0, len(indegree))
			for id := range indegree {
				stuck = append(stuck, id)
			}

			sort.Strings(stuck)

			errs = append(errs, models.PlanError{
				Kind:    models.PlanErrorInternalCycle,
				NodeIDs: stuck,
				Message: fmt.Sprintf("nodes %v never reached in-degree zero; validation let a cycle through", stuck),
			})

			break
		}

		sort.Strings(stage)

		for _, id := range stage {
			delete(indegree, id)

			for _, succ := range g.Successors(id) {
				if _, ok := indegree[succ]; ok {
					indegree[succ]--
				}
			}

			if visible, ok := bindings[id]; ok {
				plan.Visible[id] = visible
			}
		}

		remaining -= len(stage)
		plan.Stages = append(plan.Stages, stage)
	}

	return plan, errs
}

// HasInternalCycle reports whether the planner found an invariant violation.
func HasInternalCycle(errs []models.PlanError) bool {
	for _, e := range errs {
		if e.Kind == models.PlanErrorInternalCycle {
			return true
		}
	}

	return false
}
