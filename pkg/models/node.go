// Package models defines the core domain models for composing and planning workflows.
package models

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// NodeKind is the closed set of workflow step kinds.
type NodeKind string

const (
	NodeKindTrigger   NodeKind = "trigger"
	NodeKindAction    NodeKind = "action"
	NodeKindCondition NodeKind = "condition"
	NodeKindOutput    NodeKind = "output"
)

// NodeKinds lists every kind in declaration order.
var NodeKinds = []NodeKind{NodeKindTrigger, NodeKindAction, NodeKindCondition, NodeKindOutput}

// Valid reports whether k is one of the known kinds.
func (k NodeKind) Valid() bool {
	return slices.Contains(NodeKinds, k)
}

// OnErrorPolicy controls what happens to the rest of a run when a node fails.
type OnErrorPolicy string

const (
	OnErrorAbort          OnErrorPolicy = "abort"
	OnErrorSkipDownstream OnErrorPolicy = "skip-downstream"
	OnErrorContinue       OnErrorPolicy = "continue"
)

var (
	ErrInvalidNode          = errors.New("invalid node")
	ErrInvalidNodeKind      = errors.New("invalid node kind")
	ErrInvalidOnErrorPolicy = errors.New("invalid on_error policy")
	ErrDuplicateOutput      = errors.New("duplicate declared output")
	ErrInvalidParameters    = errors.New("invalid node parameters")
	ErrInvalidSchedule      = errors.New("invalid trigger schedule")
)

// Position is the layout position of a node on the canvas. It has no semantic meaning.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one workflow step.
type Node struct {
	ID              string         `json:"id"                   validate:"required"`
	Kind            NodeKind       `json:"type"                 validate:"required"`
	Name            string         `json:"name"                 validate:"required,min=1"`
	Description     string         `json:"description,omitempty"`
	Parameters      map[string]any `json:"parameters,omitempty"`
	DeclaredOutputs []VariableDecl `json:"outputs,omitempty"    validate:"dive"`
	Position        Position       `json:"position"`
	OnError         OnErrorPolicy  `json:"on_error,omitempty"`
	TimeoutMs       int64          `json:"timeout_ms,omitempty" validate:"min=0"`
	Terminal        bool           `json:"terminal,omitempty"`
}

// NodeOption customizes a node before it is validated by NewNode.
type NodeOption func(*Node)

// WithDescription sets the node description.
func WithDescription(description string) NodeOption {
	return func(n *Node) {
		n.Description = description
	}
}

// WithParameters sets the node parameters.
func WithParameters(params map[string]any) NodeOption {
	return func(n *Node) {
		n.Parameters = params
	}
}

// WithOutputs sets the ordered list of variables the node produces.
func WithOutputs(outputs ...VariableDecl) NodeOption {
	return func(n *Node) {
		n.DeclaredOutputs = outputs
	}
}

// WithPosition sets the canvas position.
func WithPosition(x, y float64) NodeOption {
	return func(n *Node) {
		n.Position = Position{X: x, Y: y}
	}
}

// WithOnError sets the failure policy.
func WithOnError(policy OnErrorPolicy) NodeOption {
	return func(n *Node) {
		n.OnError = policy
	}
}

// WithTimeout sets the per-node execution timeout in milliseconds.
func WithTimeout(ms int64) NodeOption {
	return func(n *Node) {
		n.TimeoutMs = ms
	}
}

// AsTerminal marks an action or condition node as allowed to have no outgoing edges.
func AsTerminal() NodeOption {
	return func(n *Node) {
		n.Terminal = true
	}
}

var nodeValidator = validator.New(validator.WithRequiredStructEnabled())

// NewNode builds a node and validates it against the schema of its kind.
func NewNode(id string, kind NodeKind, name string, opts ...NodeOption) (*Node, error) {
	node := &Node{
		ID:         id,
		Kind:       kind,
		Name:       name,
		Parameters: map[string]any{},
	}

	for _, opt := range opts {
		opt(node)
	}

	if err := node.Validate(); err != nil {
		return nil, err
	}

	return node, nil
}

// Validate checks struct constraints, the kind's parameter schema and kind specific rules.
func (n *Node) Validate() error {
	if err := nodeValidator.Struct(n); err != nil {
		return fmt.Errorf("node %s: %w: %w", n.ID, ErrInvalidNode, err)
	}

	if !n.Kind.Valid() {
		return fmt.Errorf("node %s: %w: %q", n.ID, ErrInvalidNodeKind, n.Kind)
	}

	switch n.OnError {
	case "", OnErrorAbort, OnErrorSkipDownstream, OnErrorContinue:
	default:
		return fmt.Errorf("node %s: %w: %q", n.ID, ErrInvalidOnErrorPolicy, n.OnError)
	}

	seen := make(map[string]struct{}, len(n.DeclaredOutputs))
	for _, out := range n.DeclaredOutputs {
		if _, ok := seen[out.Name]; ok {
			return fmt.Errorf("node %s: %w: %s", n.ID, ErrDuplicateOutput, out.Name)
		}

		seen[out.Name] = struct{}{}
	}

	if err := ValidateParameters(n.Kind, n.Parameters); err != nil {
		return fmt.Errorf("node %s: %w", n.ID, err)
	}

	if n.Kind == NodeKindTrigger {
		if schedule, ok := n.Parameters["schedule"].(string); ok && schedule != "" {
			if _, err := cron.ParseStandard(schedule); err != nil {
				return fmt.Errorf("node %s: %w: %w", n.ID, ErrInvalidSchedule, err)
			}
		}
	}

	return nil
}

// Policy returns the effective failure policy, defaulting to abort.
func (n *Node) Policy() OnErrorPolicy {
	if n.OnError == "" {
		return OnErrorAbort
	}

	return n.OnError
}

// Chain returns the target chain parameter, if any.
func (n *Node) Chain() string {
	chain, _ := n.Parameters["chain"].(string)

	return chain
}

// Output returns the declared output with the given name.
func (n *Node) Output(name string) (VariableDecl, bool) {
	for _, out := range n.DeclaredOutputs {
		if out.Name == name {
			return out, true
		}
	}

	return VariableDecl{}, false
}

// Clone returns a deep copy of the node definition.
func (n *Node) Clone() *Node {
	clone := *n
	clone.Parameters = maps.Clone(n.Parameters)
	clone.DeclaredOutputs = slices.Clone(n.DeclaredOutputs)

	return &clone
}

// Helper methods for kind checking.
func (n *Node) IsTrigger() bool {
	return n.Kind == NodeKindTrigger
}

func (n *Node) IsOutput() bool {
	return n.Kind == NodeKindOutput
}

func (n *Node) IsCondition() bool {
	return n.Kind == NodeKindCondition
}
