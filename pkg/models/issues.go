package models

import (
	"fmt"
	"strings"
)

// GraphErrorKind classifies structural problems found by validation.
type GraphErrorKind string

const (
	GraphErrorDanglingReference GraphErrorKind = "dangling_reference"
	GraphErrorCycle             GraphErrorKind = "cycle"
	GraphErrorArityViolation    GraphErrorKind = "arity_violation"
	GraphErrorNoTrigger         GraphErrorKind = "no_trigger"
	GraphErrorOrphanNode        GraphErrorKind = "orphan_node"
)

// Fatal reports whether the kind blocks planning.
func (k GraphErrorKind) Fatal() bool {
	return k != GraphErrorOrphanNode
}

// GraphError is a structural validation problem, carrying ids so the editor can highlight them.
type GraphError struct {
	Kind         GraphErrorKind `json:"kind"`
	NodeIDs      []string       `json:"node_ids,omitempty"`
	ConnectionID string         `json:"connection_id,omitempty"`
	Message      string         `json:"message"`
}

func (e GraphError) String() string {
	return fmt.Sprintf("%s [%s]: %s", e.Kind, strings.Join(e.NodeIDs, ","), e.Message)
}

// FlowErrorKind classifies variable flow problems.
type FlowErrorKind string

const (
	FlowErrorUnknownVariable   FlowErrorKind = "unknown_variable"
	FlowErrorTypeMismatch      FlowErrorKind = "type_mismatch"
	FlowErrorAmbiguousVariable FlowErrorKind = "ambiguous_variable"
)

// FlowError is a variable flow problem localized to one node parameter.
type FlowError struct {
	Kind      FlowErrorKind `json:"kind"`
	NodeID    string        `json:"node_id"`
	Parameter string        `json:"parameter"`
	Variable  string        `json:"variable"`
	Expected  VariableType  `json:"expected,omitempty"`
	Actual    VariableType  `json:"actual,omitempty"`
	Message   string        `json:"message"`
}

func (e FlowError) String() string {
	return fmt.Sprintf("%s [%s.%s]: %s", e.Kind, e.NodeID, e.Parameter, e.Message)
}

// PlanErrorKind classifies planner findings.
type PlanErrorKind string

const (
	// PlanErrorExcludedOrphan is informational.
	PlanErrorExcludedOrphan PlanErrorKind = "excluded_orphan"
	// PlanErrorInternalCycle means validation let a cycle through; it is a defect.
	PlanErrorInternalCycle PlanErrorKind = "internal_cycle"
)

// PlanError is a planner finding.
type PlanError struct {
	Kind    PlanErrorKind `json:"kind"`
	NodeIDs []string      `json:"node_ids,omitempty"`
	Message string        `json:"message"`
}

func (e PlanError) String() string {
	return fmt.Sprintf("%s [%s]: %s", e.Kind, strings.Join(e.NodeIDs, ","), e.Message)
}
