package gateway

import (
	"fmt"
	"maps"
	"slices"

	"github.com/dukex/flowplan/pkg/graph"
	"github.com/dukex/flowplan/pkg/models"
	"github.com/dukex/flowplan/pkg/workflow"
)

// Encode renders a graph, its pipeline report and the latest run into a
// document. Timestamps are left for the caller to fill in.
func Encode(g *graph.Graph, report workflow.Report, lastRun *models.RunResult) *models.WorkflowDocument {
	statuses := map[string]models.StepStatus{}
	if lastRun != nil {
		statuses = lastRun.Statuses()
	}

	doc := &models.WorkflowDocument{
		ID:            g.ID(),
		Name:          g.Name(),
		Description:   g.Description(),
		Nodes:         make([]models.DocumentNode, 0),
		Connections:   g.Connections(),
		Variables:     g.Variables(),
		ExecutionPlan: []string{},
		Issues:        report.GraphErrors,
	}

	doc.Issues = append(slices.Clone(doc.Issues), report.Warnings...)

	for _, node := range g.Nodes() {
		status, ok := statuses[node.ID]
		if !ok {
			status = models.StepStatusIdle
		}

		doc.Nodes = append(doc.Nodes, models.DocumentNode{
			ID:          node.ID,
			Type:        node.Kind,
			Name:        node.Name,
			Description: node.Description,
			Parameters:  maps.Clone(node.Parameters),
			Outputs:     slices.Clone(node.DeclaredOutputs),
			Position:    node.Position,
			OnError:     node.OnError,
			TimeoutMs:   node.TimeoutMs,
			Terminal:    node.Terminal,
			Connections: append([]string{}, g.Successors(node.ID)...),
			Status:      status,
		})
	}

	if report.Valid && report.Plan != nil {
		doc.ExecutionPlan = report.Plan.Flatten()
		doc.Stages = report.Plan.StageIDs()
	}

	if report.Estimate != nil {
		doc.EstimatedGas = report.Estimate.GasSummary()
		doc.SuccessRate = report.Estimate.SuccessPercent()
	}

	return doc
}

// Decode rebuilds a graph from a document. Derived fields (plan, estimate,
// per-node adjacency and status) are ignored and recomputed by a session.
func Decode(doc *models.WorkflowDocument) (*graph.Graph, error) {
	g := graph.New(doc.ID, doc.Name)
	if doc.Description != "" {
		g.Describe(doc.Description)
	}

	for _, dn := range doc.Nodes {
		opts := []models.NodeOption{
			models.WithDescription(dn.Description),
			models.WithOutputs(dn.Outputs...),
			models.WithPosition(dn.Position.X, dn.Position.Y),
			models.WithOnError(dn.OnError),
			models.WithTimeout(dn.TimeoutMs),
		}

		if dn.Parameters != nil {
			opts = append(opts, models.WithParameters(maps.Clone(dn.Parameters)))
		}

		if dn.Terminal {
			opts = append(opts, models.AsTerminal())
		}

		node, err := models.NewNode(dn.ID, dn.Type, dn.Name, opts...)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", dn.ID, err)
		}

		if err := g.AddNode(node); err != nil {
			return nil, err
		}
	}

	for _, conn := range doc.Connections {
		if _, err := g.Connect(conn); err != nil {
			return nil, fmt.Errorf("connection %s: %w", conn.ID, err)
		}
	}

	for name, value := range doc.Variables {
		g.SetVariable(name, value)
	}

	return g, nil
}
