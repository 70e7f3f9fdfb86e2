package estimate

import (
	"context"
	"fmt"
	"math"

	"github.com/dukex/flowplan/pkg/models"
	"github.com/shopspring/decimal"
)

// Static reads estimates from node parameters: gasEstimate ("0.002 FLOW" or a
// number), successRate (0-1, default 1) and estimatedDurationMs (default 0).
type Static struct{}

func (Static) EstimateCost(_ context.Context, node *models.Node) (models.GasAmount, error) {
	switch v := node.Parameters["gasEstimate"].(type) {
	case nil:
		return models.GasAmount{}, nil
	case string:
		return models.ParseGasAmount(v)
	case float64:
		return models.GasAmount{Amount: decimal.NewFromFloat(v)}, nil
	case int:
		return models.GasAmount{Amount: decimal.NewFromInt(int64(v))}, nil
	default:
		return models.GasAmount{}, fmt.Errorf("%w: unsupported gasEstimate type %T", models.ErrInvalidGasAmount, v)
	}
}

func (Static) EstimateSuccessRate(_ context.Context, node *models.Node) (float64, error) {
	v, ok := node.Parameters["successRate"]
	if !ok {
		return 1.0, nil
	}

	rate, ok := toFloat(v)
	if !ok || rate < 0 || rate > 1 {
		return 0, fmt.Errorf("invalid successRate %v on node %s", v, node.ID)
	}

	return rate, nil
}

func (Static) EstimateDurationMs(_ context.Context, node *models.Node) (int64, error) {
	v, ok := node.Parameters["estimatedDurationMs"]
	if !ok {
		return 0, nil
	}

	ms, ok := toFloat(v)
	if !ok || ms < 0 {
		return 0, fmt.Errorf("invalid estimatedDurationMs %v on node %s", v, node.ID)
	}

	return int64(math.Round(ms)), nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
