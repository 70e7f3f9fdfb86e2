// Package flow resolves which variables each node can read and checks the
// variable references in node parameters against them.
package flow

import (
	"fmt"
	"sort"

	"github.com/dukex/flowplan/pkg/graph"
	"github.com/dukex/flowplan/pkg/models"
	"github.com/dukex/flowplan/pkg/template"
)

// Bindings maps a node id to the variables visible to it.
type Bindings map[string][]models.VisibleVariable

// ResolveBindings computes the visible variable set of every node and reports
// unknown, ambiguous and mistyped references found in node parameters.
//
// A node sees the declared outputs of its ancestors that are reachable from a
// trigger, plus the workflow-level variables. Outputs of unreachable ancestors
// are never produced because the planner excludes those nodes. An output is marked shadowed when a closer producer on the same
// path declares the same name; outputs of unordered producers stay visible side
// by side and can only be told apart with a qualified reference.
func ResolveBindings(g *graph.Graph) (Bindings, []models.FlowError) {
	nodes := g.Nodes()
	globals := workflowVariables(g.Variables())
	reachable := g.Reachable()

	descendants := make(map[string]map[string]struct{}, len(nodes))
	for _, node := range nodes {
		descendants[node.ID] = g.Descendants(node.ID)
	}

	bindings := make(Bindings, len(nodes))

	var errs []models.FlowError

	for _, node := range nodes {
		visible, unplanned := visibleFor(g, node.ID, globals, reachable, descendants)
		bindings[node.ID] = visible
		errs = append(errs, checkReferences(node, visible, unplanned)...)
	}

	return bindings, errs
}

func workflowVariables(vars map[string]any) []models.VisibleVariable {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}

	sort.Strings(names)

	out := make([]models.VisibleVariable, 0, len(names))
	for _, name := range names {
		out = append(out, models.VisibleVariable{
			Name:       name,
			Type:       models.InferVariableType(vars[name]),
			ProducerID: models.WorkflowScope,
		})
	}

	return out
}

func visibleFor(
	g *graph.Graph,
	nodeID string,
	globals []models.VisibleVariable,
	reachable map[string]struct{},
	descendants map[string]map[string]struct{},
) ([]models.VisibleVariable, []models.VisibleVariable) {
	ancestors := g.Ancestors(nodeID)
	delete(ancestors, nodeID)

	producers := graph.SortedIDs(ancestors)

	// name -> producers declaring it
	declaring := make(map[string][]string)

	var produced, unplanned []models.VisibleVariable

	for _, producerID := range producers {
		producer, ok := g.Node(producerID)
		if !ok {
			continue
		}

		if _, ok := reachable[producerID]; !ok {
			for _, out := range producer.DeclaredOutputs {
				unplanned = append(unplanned, models.VisibleVariable{Name: out.Name, Type: out.Type, ProducerID: producerID})
			}

			continue
		}

		for _, out := range producer.DeclaredOutputs {
			declaring[out.Name] = append(declaring[out.Name], producerID)
			produced = append(produced, models.VisibleVariable{
				Name:       out.Name,
				Type:       out.Type,
				ProducerID: producerID,
			})
		}
	}

	for i := range produced {
		v := &produced[i]
		for _, other := range declaring[v.Name] {
			if other == v.ProducerID {
				continue
			}

			if _, closer := descendants[v.ProducerID][other]; closer {
				v.Shadowed = true

				break
			}
		}
	}

	visible := make([]models.VisibleVariable, 0, len(globals)+len(produced))
	for _, global := range globals {
		global.Shadowed = len(declaring[global.Name]) > 0
		visible = append(visible, global)
	}

	return append(visible, produced...), unplanned
}

// Lookup resolves a reference against a visible set. Qualified references match
// producer and name exactly, shadowed entries included; bare names match only
// entries that are not shadowed.
func Lookup(visible []models.VisibleVariable, ref template.Reference) []models.VisibleVariable {
	var matches []models.VisibleVariable

	for _, v := range visible {
		if v.Name != ref.Name {
			continue
		}

		if ref.Qualified {
			if v.ProducerID == ref.ProducerID {
				matches = append(matches, v)
			}

			continue
		}

		if !v.Shadowed {
			matches = append(matches, v)
		}
	}

	return matches
}

// checkReferences validates node's references against visible. unplanned holds
// outputs of ancestors that are not reachable from a trigger.
func checkReferences(node *models.Node, visible, unplanned []models.VisibleVariable) []models.FlowError {
	params := make([]string, 0, len(node.Parameters))
	for name := range node.Parameters {
		params = append(params, name)
	}

	sort.Strings(params)

	var errs []models.FlowError

	for _, param := range params {
		value := node.Parameters[param]

		expected, typed := models.ParameterVariableType(node.Kind, param)
		whole, isWhole := template.WholeReference(value)

		for _, ref := range template.References(value) {
			matches := Lookup(visible, ref)

			switch {
			case len(matches) == 0:
				message := fmt.Sprintf("variable %s is not produced by any ancestor of %s", ref.Key(), node.ID)
				if excluded := Lookup(unplanned, ref); len(excluded) > 0 {
					message = fmt.Sprintf("variable %s is produced only by %v, which no trigger reaches",
						ref.Key(), producerIDs(excluded))
				}

				errs = append(errs, models.FlowError{
					Kind:      models.FlowErrorUnknownVariable,
					NodeID:    node.ID,
					Parameter: param,
					Variable:  ref.Key(),
					Message:   message,
				})
			case len(matches) > 1:
				errs = append(errs, models.FlowError{
					Kind:      models.FlowErrorAmbiguousVariable,
					NodeID:    node.ID,
					Parameter: param,
					Variable:  ref.Key(),
					Message: fmt.Sprintf("variable %s is produced by independent branches %v; qualify it as {{producer:%s}}",
						ref.Key(), producerIDs(matches), ref.Name),
				})
			case typed && isWhole && whole.Raw == ref.Raw && matches[0].Type != expected:
				errs = append(errs, models.FlowError{
					Kind:      models.FlowErrorTypeMismatch,
					NodeID:    node.ID,
					Parameter: param,
					Variable:  ref.Key(),
					Expected:  expected,
					Actual:    matches[0].Type,
					Message: fmt.Sprintf("parameter %s expects %s but %s is %s",
						param, expected, ref.Key(), matches[0].Type),
				})
			}
		}
	}

	return errs
}

func producerIDs(vars []models.VisibleVariable) []string {
	ids := make([]string, 0, len(vars))
	for _, v := range vars {
		ids = append(ids, v.ProducerID)
	}

	return ids
}
