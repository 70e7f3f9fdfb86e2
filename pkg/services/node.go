package services

import (
	"context"

	"github.com/dukex/flowplan/pkg/models"
	"github.com/dukex/flowplan/pkg/workflow"
	"github.com/google/uuid"
)

// NodeRequest describes a node to add or replace.
type NodeRequest struct {
	ID          string                `json:"id,omitempty"`
	Type        models.NodeKind       `json:"type"                  validate:"required,oneof=trigger action condition output"`
	Name        string                `json:"name"                  validate:"required,min=1"`
	Description string                `json:"description,omitempty"`
	Parameters  map[string]any        `json:"parameters,omitempty"`
	Outputs     []models.VariableDecl `json:"outputs,omitempty"     validate:"dive"`
	Position    models.Position       `json:"position"`
	OnError     models.OnErrorPolicy  `json:"onError,omitempty"     validate:"omitempty,oneof=abort skip-downstream continue"`
	TimeoutMs   int64                 `json:"timeoutMs,omitempty"   validate:"min=0"`
	Terminal    bool                  `json:"terminal,omitempty"`
}

// ConnectionRequest describes an edge to add.
type ConnectionRequest struct {
	ID   string `json:"id,omitempty"`
	From string `json:"from"         validate:"required"`
	To   string `json:"to"           validate:"required,nefield=From"`
}

// ChangeResult is returned by every graph edit: the saved document and the
// pipeline report of the new graph version.
type ChangeResult struct {
	Workflow   *models.WorkflowDocument `json:"workflow"`
	Report     workflow.Report          `json:"report"`
	Connection *models.Connection       `json:"connection,omitempty"`
}

// Node handles node and connection edits of a workflow.
type Node struct {
	workflows *Workflow
}

// NewNode creates a new node service sharing the workflow service's sessions.
func NewNode(workflows *Workflow) *Node {
	return &Node{
		workflows: workflows,
	}
}

func (n *Node) build(op string, req NodeRequest) (*models.Node, error) {
	if err := n.workflows.validate.Struct(req); err != nil {
		return nil, NewValidationError(op, "invalid_node", err.Error(), ErrInvalidRequest)
	}

	if req.ID == "" {
		req.ID = string(req.Type) + "-" + uuid.New().String()[:8]
	}

	opts := []models.NodeOption{
		models.WithDescription(req.Description),
		models.WithOutputs(req.Outputs...),
		models.WithPosition(req.Position.X, req.Position.Y),
		models.WithOnError(req.OnError),
		models.WithTimeout(req.TimeoutMs),
	}

	if req.Parameters != nil {
		opts = append(opts, models.WithParameters(req.Parameters))
	}

	if req.Terminal {
		opts = append(opts, models.AsTerminal())
	}

	return models.NewNode(req.ID, req.Type, req.Name, opts...)
}

// AddNode adds a node to a workflow.
func (n *Node) AddNode(ctx context.Context, workflowID string, req NodeRequest) (*ChangeResult, error) {
	node, err := n.build("AddNode", req)
	if err != nil {
		return nil, err
	}

	return n.change(ctx, workflowID, func(session *workflow.Session) (workflow.Report, error) {
		return session.AddNode(ctx, node)
	})
}

// UpdateNode replaces the definition of an existing node. Its edges are kept.
func (n *Node) UpdateNode(ctx context.Context, workflowID, nodeID string, req NodeRequest) (*ChangeResult, error) {
	req.ID = nodeID

	node, err := n.build("UpdateNode", req)
	if err != nil {
		return nil, err
	}

	return n.change(ctx, workflowID, func(session *workflow.Session) (workflow.Report, error) {
		return session.UpdateNode(ctx, node)
	})
}

// RemoveNode deletes a node and its edges.
func (n *Node) RemoveNode(ctx context.Context, workflowID, nodeID string) (*ChangeResult, error) {
	return n.change(ctx, workflowID, func(session *workflow.Session) (workflow.Report, error) {
		return session.RemoveNode(ctx, nodeID)
	})
}

// Connect adds an edge between two nodes.
func (n *Node) Connect(ctx context.Context, workflowID string, req ConnectionRequest) (*ChangeResult, error) {
	if err := n.workflows.validate.Struct(req); err != nil {
		return nil, NewValidationError("Connect", "invalid_connection", err.Error(), ErrInvalidRequest)
	}

	var created models.Connection

	result, err := n.change(ctx, workflowID, func(session *workflow.Session) (workflow.Report, error) {
		var (
			report workflow.Report
			err    error
		)

		created, report, err = session.Connect(ctx, models.Connection{ID: req.ID, From: req.From, To: req.To})

		return report, err
	})
	if err != nil {
		return nil, err
	}

	result.Connection = &created

	return result, nil
}

// Disconnect removes an edge.
func (n *Node) Disconnect(ctx context.Context, workflowID, connectionID string) (*ChangeResult, error) {
	return n.change(ctx, workflowID, func(session *workflow.Session) (workflow.Report, error) {
		return session.Disconnect(ctx, connectionID)
	})
}

func (n *Node) change(
	ctx context.Context,
	workflowID string,
	apply func(*workflow.Session) (workflow.Report, error),
) (*ChangeResult, error) {
	var report workflow.Report

	doc, err := n.workflows.mutate(ctx, workflowID, func(session *workflow.Session) error {
		var err error

		report, err = apply(session)

		return err
	})
	if err != nil {
		return nil, err
	}

	return &ChangeResult{Workflow: doc, Report: report}, nil
}
