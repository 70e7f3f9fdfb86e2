package estimate

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/flowplan/pkg/graph"
	"github.com/dukex/flowplan/pkg/models"
	"github.com/dukex/flowplan/pkg/protocol"
)

var ErrMixedGasUnits = errors.New("mixed gas units on one chain")

// Collect asks the estimator for every planned node's cost, success rate and,
// when supported, duration. Gas estimates on one chain must share a unit.
func Collect(
	ctx context.Context,
	g *graph.Graph,
	plan models.ExecutionPlan,
	estimator protocol.Estimator,
) (map[string]models.NodeEstimate, error) {
	estimates := make(map[string]models.NodeEstimate, plan.Len())
	durations, _ := estimator.(protocol.DurationEstimator)
	units := make(map[string]string)

	for _, id := range plan.Flatten() {
		node, ok := g.Node(id)
		if !ok {
			return nil, fmt.Errorf("planned node %s not found in graph", id)
		}

		gas, err := estimator.EstimateCost(ctx, node)
		if err != nil {
			return nil, fmt.Errorf("failed to estimate cost of node %s: %w", id, err)
		}

		rate, err := estimator.EstimateSuccessRate(ctx, node)
		if err != nil {
			return nil, fmt.Errorf("failed to estimate success rate of node %s: %w", id, err)
		}

		if rate < 0 || rate > 1 {
			return nil, fmt.Errorf("success rate %v of node %s is outside [0, 1]", rate, id)
		}

		est := models.NodeEstimate{
			Chain:       node.Chain(),
			Gas:         gas,
			SuccessRate: rate,
		}

		if !gas.IsZero() && gas.Unit != "" {
			chain := chainKey(est)
			if unit, ok := units[chain]; ok && unit != gas.Unit {
				return nil, fmt.Errorf("%w: node %s reports %s on chain %s, expected %s",
					ErrMixedGasUnits, id, gas.Unit, chain, unit)
			}

			units[chain] = gas.Unit
		}

		if durations != nil {
			est.DurationMs, err = durations.EstimateDurationMs(ctx, node)
			if err != nil {
				return nil, fmt.Errorf("failed to estimate duration of node %s: %w", id, err)
			}
		}

		estimates[id] = est
	}

	return estimates, nil
}
