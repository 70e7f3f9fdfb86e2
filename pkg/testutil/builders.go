// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"strings"
	"testing"

	"github.com/dukex/flowplan/pkg/graph"
	"github.com/dukex/flowplan/pkg/models"
	"github.com/stretchr/testify/require"
)

// CreateTestNode creates a node of the given kind with default values that can be overridden.
// It panics when the resulting node is invalid.
func CreateTestNode(id string, kind models.NodeKind, overrides ...models.NodeOption) *models.Node {
	name := strings.ToUpper(id[:1]) + id[1:]

	node, err := models.NewNode(id, kind, name, overrides...)
	if err != nil {
		panic(err)
	}

	return node
}

// Trigger creates a test trigger node.
func Trigger(id string, overrides ...models.NodeOption) *models.Node {
	return CreateTestNode(id, models.NodeKindTrigger, overrides...)
}

// Action creates a test action node.
func Action(id string, overrides ...models.NodeOption) *models.Node {
	return CreateTestNode(id, models.NodeKindAction, overrides...)
}

// Condition creates a test condition node evaluating expression.
func Condition(id, expression string, overrides ...models.NodeOption) *models.Node {
	opts := append([]models.NodeOption{WithParam("expression", expression)}, overrides...)

	return CreateTestNode(id, models.NodeKindCondition, opts...)
}

// Output creates a test output node.
func Output(id string, overrides ...models.NodeOption) *models.Node {
	return CreateTestNode(id, models.NodeKindOutput, overrides...)
}

// WithParam sets a single parameter, keeping the others.
func WithParam(name string, value any) models.NodeOption {
	return func(n *models.Node) {
		if n.Parameters == nil {
			n.Parameters = map[string]any{}
		}

		n.Parameters[name] = value
	}
}

// WithEstimate sets the static estimate parameters of a node.
func WithEstimate(gas string, successRate float64) models.NodeOption {
	return func(n *models.Node) {
		WithParam("gasEstimate", gas)(n)
		WithParam("successRate", successRate)(n)
	}
}

// Out declares a typed output.
func Out(name string, typ models.VariableType) models.VariableDecl {
	return models.VariableDecl{Name: name, Type: typ}
}

// BuildGraph creates a graph from nodes and "from->to" edges. Edge ids are
// "from-to" so tests can refer to them.
func BuildGraph(t testing.TB, nodes []*models.Node, edges ...string) *graph.Graph {
	t.Helper()

	g := graph.New("wf-test", "Test Workflow")

	for _, node := range nodes {
		require.NoError(t, g.AddNode(node))
	}

	for _, edge := range edges {
		Connect(t, g, edge)
	}

	return g
}

// Connect adds a "from->to" edge to g.
func Connect(t testing.TB, g *graph.Graph, edge string) models.Connection {
	t.Helper()

	from, to, ok := strings.Cut(edge, "->")
	require.True(t, ok, "edge %q must be written as from->to", edge)

	from, to = strings.TrimSpace(from), strings.TrimSpace(to)

	conn, err := g.Connect(models.Connection{ID: from + "-" + to, From: from, To: to})
	require.NoError(t, err)

	return conn
}

// LinearWorkflow builds trigger1 -> action1 -> output1 where action1 costs
// 0.002 FLOW at a 0.985 success rate.
func LinearWorkflow(t testing.TB) *graph.Graph {
	t.Helper()

	return BuildGraph(t,
		[]*models.Node{
			Trigger("trigger1", WithParam("successRate", 1.0)),
			Action("action1",
				WithEstimate("0.002 FLOW", 0.985),
				WithParam("chain", "flow"),
				models.WithOutputs(Out("txId", models.VariableTypeString)),
			),
			Output("output1", WithParam("message", "sent {{txId}}")),
		},
		"trigger1->action1", "action1->output1",
	)
}

// FanOutWorkflow builds trigger1 -> {action1, action2} -> output1. The actions
// are added in reverse order to show stage order does not depend on insertion.
func FanOutWorkflow(t testing.TB, action1, action2 []models.NodeOption) *graph.Graph {
	t.Helper()

	return BuildGraph(t,
		[]*models.Node{
			Trigger("trigger1"),
			Action("action2", action2...),
			Action("action1", action1...),
			Output("output1"),
		},
		"trigger1->action2", "trigger1->action1", "action1->output1", "action2->output1",
	)
}
