package models

import (
	"regexp"
	"time"
)

// VariableType is the declared type of a workflow variable. Compatibility is exact match only.
type VariableType string

const (
	VariableTypeNumeric  VariableType = "numeric"
	VariableTypeString   VariableType = "string"
	VariableTypeAddress  VariableType = "address"
	VariableTypeDuration VariableType = "duration"
	VariableTypeBool     VariableType = "bool"
)

// VariableDecl is a named, typed variable a node produces once executed.
type VariableDecl struct {
	Name string       `json:"name" validate:"required"`
	Type VariableType `json:"type" validate:"required,oneof=numeric string address duration bool"`
}

// WorkflowScope is the producer id of workflow-level variables.
const WorkflowScope = ""

// VisibleVariable is a variable readable by a node, annotated with its producer.
type VisibleVariable struct {
	Name       string       `json:"name"`
	Type       VariableType `json:"type"`
	ProducerID string       `json:"producer_id"`
	// Shadowed is set when a closer producer on the same path declares the same name.
	Shadowed bool `json:"shadowed,omitempty"`
}

// Key returns the qualified "{producer}:{name}" reference of the variable.
func (v VisibleVariable) Key() string {
	return MakeVariableRef(v.ProducerID, v.Name)
}

// VariableBinding is a variable value in the runtime binding table.
type VariableBinding struct {
	Name       string       `json:"name"`
	ProducerID string       `json:"producer_id"`
	Type       VariableType `json:"type"`
	Value      any          `json:"value,omitempty"`
	Set        bool         `json:"set"`
}

// ParseVariableRef parses a reference in format "{producer}:{name}" or "{name}".
// The boolean result reports whether the reference was qualified by a producer.
func ParseVariableRef(ref string) (string, string, bool) {
	for i := range len(ref) {
		if ref[i] == ':' {
			return ref[:i], ref[i+1:], true
		}
	}

	return "", ref, false
}

// MakeVariableRef creates a qualified reference from producer id and variable name.
func MakeVariableRef(producerID, name string) string {
	return producerID + ":" + name
}

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{16,40}$`)

// InferVariableType infers the type of a workflow-level variable value.
func InferVariableType(value any) VariableType {
	switch v := value.(type) {
	case bool:
		return VariableTypeBool
	case int, int32, int64, float32, float64, uint, uint32, uint64:
		return VariableTypeNumeric
	case string:
		if addressPattern.MatchString(v) {
			return VariableTypeAddress
		}

		if _, err := time.ParseDuration(v); err == nil {
			return VariableTypeDuration
		}

		return VariableTypeString
	default:
		return VariableTypeString
	}
}
