package models

import "time"

// Connection is a directed edge between two nodes.
type Connection struct {
	ID   string `json:"id"   validate:"required"`
	From string `json:"from" validate:"required"`
	To   string `json:"to"   validate:"required"`
}

// WorkflowDocument is the persisted workflow, exchanged with storage and sharing features.
type WorkflowDocument struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"          validate:"required,min=3"`
	Description   string         `json:"description"`
	Nodes         []DocumentNode `json:"nodes"`
	Connections   []Connection   `json:"connections"`
	Variables     map[string]any `json:"variables"`
	ExecutionPlan []string       `json:"executionPlan"`
	Stages        [][]string     `json:"stages,omitempty"`
	EstimatedGas  string         `json:"estimatedGas"`
	SuccessRate   float64        `json:"successRate"`
	Issues        []GraphError   `json:"issues,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// DocumentNode is the persisted form of a node. Connections is a derived adjacency
// view kept for readers of the document; the canonical edges are WorkflowDocument.Connections.
type DocumentNode struct {
	ID          string         `json:"id"`
	Type        NodeKind       `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	Outputs     []VariableDecl `json:"outputs,omitempty"`
	Position    Position       `json:"position"`
	OnError     OnErrorPolicy  `json:"onError,omitempty"`
	TimeoutMs   int64          `json:"timeoutMs,omitempty"`
	Terminal    bool           `json:"terminal,omitempty"`
	Connections []string       `json:"connections"`
	// Status is the status from the latest run. It is never read back into the node definition.
	Status StepStatus `json:"status"`
}
