// Package estimate aggregates per-node gas, success and duration estimates over a plan.
package estimate

import (
	"strings"

	"github.com/dukex/flowplan/pkg/models"
)

// OffChain is the bucket for gas reported by nodes with neither a chain nor a unit.
const OffChain = "offchain"

// Aggregate sums gas per chain, multiplies success probabilities and sums the
// per-stage maximum durations.
//
// Per-node success rates are treated as independent. Nodes without an estimate
// count as free, certain and instant.
func Aggregate(plan models.ExecutionPlan, estimates map[string]models.NodeEstimate) models.PlanEstimate {
	result := models.PlanEstimate{
		TotalGasByChain:     make(map[string]models.GasAmount),
		CombinedSuccessRate: 1.0,
		StageDurationsMs:    make([]int64, 0, len(plan.Stages)),
	}

	for _, stage := range plan.Stages {
		var stageDuration int64

		for _, id := range stage {
			est, ok := estimates[id]
			if !ok {
				continue
			}

			result.CombinedSuccessRate *= est.SuccessRate
			stageDuration = max(stageDuration, est.DurationMs)

			if est.Gas.IsZero() {
				continue
			}

			chain := chainKey(est)
			result.TotalGasByChain[chain] = result.TotalGasByChain[chain].Add(est.Gas)
		}

		result.StageDurationsMs = append(result.StageDurationsMs, stageDuration)
		result.EstimatedDurationMs += stageDuration
	}

	return result
}

func chainKey(est models.NodeEstimate) string {
	if est.Chain != "" {
		return est.Chain
	}

	if est.Gas.Unit != "" {
		return strings.ToLower(est.Gas.Unit)
	}

	return OffChain
}
