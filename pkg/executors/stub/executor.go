// Package stub provides the deterministic executor used for dry runs.
package stub

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/dukex/flowplan/pkg/estimate"
	"github.com/dukex/flowplan/pkg/models"
	"github.com/dukex/flowplan/pkg/protocol"
)

const (
	// ConditionResultKey is the output a Condition node reports its outcome under.
	ConditionResultKey = "result"

	// MockOutputsParam overrides generated outputs with fixed values.
	MockOutputsParam = "mockOutputs"
	// MockErrorParam makes the step fail with the given message.
	MockErrorParam = "mockError"
)

var ErrMockFailure = errors.New("mock failure")

// Executor returns deterministic mock outputs instead of calling real chains.
// Estimates come from the node's static estimate parameters.
type Executor struct {
	estimate.Static
}

func New() *Executor {
	return &Executor{}
}

func (e *Executor) Execute(ctx context.Context, node *models.Node, _ map[string]any) (*protocol.StepOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if msg, ok := node.Parameters[MockErrorParam].(string); ok && msg != "" {
		return nil, fmt.Errorf("%w: %s", ErrMockFailure, msg)
	}

	values := make(map[string]any, len(node.DeclaredOutputs)+1)
	for _, out := range node.DeclaredOutputs {
		values[out.Name] = MockValue(node.ID, out)
	}

	if mocks, ok := node.Parameters[MockOutputsParam].(map[string]any); ok {
		for name, value := range mocks {
			values[name] = value
		}
	}

	if node.IsCondition() {
		passed, err := Evaluate(node)
		if err != nil {
			return nil, err
		}

		values[ConditionResultKey] = passed
	}

	gas, err := e.EstimateCost(ctx, node)
	if err != nil {
		return nil, err
	}

	output := &protocol.StepOutput{Values: values}
	if !gas.IsZero() {
		output.GasUsed = &gas
	}

	return output, nil
}

// Evaluate evaluates a condition node's rendered expression with the
// interpreter named by its "language" parameter.
func Evaluate(node *models.Node) (bool, error) {
	language, _ := node.Parameters["language"].(string)

	interpreter := models.GetConditional(language)
	if interpreter == nil {
		return false, fmt.Errorf("unsupported condition language %q", language)
	}

	passed, err := interpreter.Evaluate(node.Parameters["expression"])
	if err != nil {
		return false, fmt.Errorf("failed to evaluate condition %s: %w", node.ID, err)
	}

	return passed, nil
}

// MockValue returns a stable value of the declared type for a node output.
func MockValue(nodeID string, decl models.VariableDecl) any {
	sum := sha256.Sum256([]byte(nodeID + ":" + decl.Name))

	switch decl.Type {
	case models.VariableTypeNumeric:
		return float64(sum[0]) + 1
	case models.VariableTypeAddress:
		return "0x" + hex.EncodeToString(sum[:8])
	case models.VariableTypeDuration:
		return "1s"
	case models.VariableTypeBool:
		return true
	default:
		return "mock-" + nodeID + "-" + decl.Name
	}
}
