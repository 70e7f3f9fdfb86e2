package models

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// JSONSchema represents a JSON Schema for node parameter validation.
type JSONSchema struct {
	Type        string               `json:"type"`
	Properties  map[string]*Property `json:"properties,omitempty"`
	Required    []string             `json:"required,omitempty"`
	Title       string               `json:"title,omitempty"`
	Description string               `json:"description,omitempty"`
}

// Property represents a JSON Schema property.
type Property struct {
	Type        string    `json:"type,omitempty"`
	Description string    `json:"description,omitempty"`
	Enum        []any     `json:"enum,omitempty"`
	Default     any       `json:"default,omitempty"`
	Format      string    `json:"format,omitempty"`
	MinLength   *int      `json:"minLength,omitempty"`
	Minimum     *float64  `json:"minimum,omitempty"`
	Maximum     *float64  `json:"maximum,omitempty"`
	Pattern     string    `json:"pattern,omitempty"`
	Items       *Property `json:"items,omitempty"`
	// VariableType is the variable type a whole-value reference in this parameter must have.
	VariableType VariableType `json:"x-variable-type,omitempty"`
}

func ptr[T any](v T) *T {
	return &v
}

// Shared action parameters understood by estimators and executors.
var estimateProperties = map[string]*Property{
	"chain": {
		Type:        "string",
		Description: "Target chain for fees, e.g. flow or ethereum. Empty for off-chain jobs.",
	},
	"executor": {
		Type:        "string",
		Description: "Name of the registered step executor handling this node.",
	},
	"gasEstimate": {
		Description: "Static gas estimate, e.g. \"0.002 FLOW\".",
	},
	"successRate": {
		Type:        "number",
		Description: "Static success probability between 0 and 1.",
		Minimum:     ptr(0.0),
		Maximum:     ptr(1.0),
	},
	"estimatedDurationMs": {
		Type:        "integer",
		Description: "Static duration estimate in milliseconds.",
		Minimum:     ptr(0.0),
	},
}

var kindSchemas = map[NodeKind]*JSONSchema{
	NodeKindTrigger: {
		Type:  "object",
		Title: "Trigger",
		Properties: merge(estimateProperties, map[string]*Property{
			"schedule": {Type: "string", Description: "Standard 5-field cron expression."},
			"event":    {Type: "string", Description: "Event name that starts the workflow."},
		}),
	},
	NodeKindAction: {
		Type:  "object",
		Title: "Action",
		Properties: merge(estimateProperties, map[string]*Property{
			"amount":    {Description: "Amount to transfer or stake.", VariableType: VariableTypeNumeric},
			"recipient": {Description: "Recipient account address.", VariableType: VariableTypeAddress},
			"delay":     {Description: "Delay before the action runs.", VariableType: VariableTypeDuration},
			"message":   {Description: "Free text message.", VariableType: VariableTypeString},
			"url":       {Type: "string", Description: "Endpoint for off-chain HTTP jobs."},
			"method":    {Type: "string", Enum: []any{"GET", "POST", "PUT", "PATCH", "DELETE"}},
		}),
	},
	NodeKindCondition: {
		Type:  "object",
		Title: "Condition",
		Properties: merge(estimateProperties, map[string]*Property{
			"expression": {Type: "string", Description: "Boolean expression; may reference variables.", MinLength: ptr(1)},
		}),
		Required: []string{"expression"},
	},
	NodeKindOutput: {
		Type:  "object",
		Title: "Output",
		Properties: merge(estimateProperties, map[string]*Property{
			"destination": {Type: "string", Description: "Where results are delivered."},
			"message":     {Description: "Message rendered with the output.", VariableType: VariableTypeString},
		}),
	},
}

func merge(base, extra map[string]*Property) map[string]*Property {
	out := make(map[string]*Property, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}

	for k, v := range extra {
		out[k] = v
	}

	return out
}

// SchemaFor returns the parameter schema of a node kind.
func SchemaFor(kind NodeKind) (*JSONSchema, bool) {
	schema, ok := kindSchemas[kind]

	return schema, ok
}

// ParameterVariableType returns the declared variable type for a parameter of a kind.
func ParameterVariableType(kind NodeKind, parameter string) (VariableType, bool) {
	schema, ok := kindSchemas[kind]
	if !ok {
		return "", false
	}

	prop, ok := schema.Properties[parameter]
	if !ok || prop.VariableType == "" {
		return "", false
	}

	return prop.VariableType, true
}

// ValidateParameters validates parameters against the kind's JSON schema.
func ValidateParameters(kind NodeKind, params map[string]any) error {
	schema, ok := kindSchemas[kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidNodeKind, kind)
	}

	if params == nil {
		params = map[string]any{}
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(params))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParameters, err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidParameters, strings.Join(messages, "; "))
	}

	return nil
}
