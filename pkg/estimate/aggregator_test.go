package estimate_test

import (
	"testing"

	"github.com/dukex/flowplan/pkg/estimate"
	"github.com/dukex/flowplan/pkg/flow"
	"github.com/dukex/flowplan/pkg/models"
	"github.com/dukex/flowplan/pkg/planner"
	"github.com/dukex/flowplan/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate_LinearWorkflow(t *testing.T) {
	g := testutil.LinearWorkflow(t)

	bindings, flowErrs := flow.ResolveBindings(g)
	require.Empty(t, flowErrs)

	plan, planErrs := planner.Plan(g, bindings)
	require.Empty(t, planErrs)
	require.Len(t, plan.Stages, 3)

	estimates, err := estimate.Collect(t.Context(), g, plan, estimate.Static{})
	require.NoError(t, err)

	result := estimate.Aggregate(plan, estimates)

	require.Contains(t, result.TotalGasByChain, "flow")
	assert.Equal(t, "0.002 FLOW", result.TotalGasByChain["flow"].String())
	assert.Equal(t, "0.002 FLOW", result.GasSummary())
	assert.InDelta(t, 0.985, result.CombinedSuccessRate, 1e-9)
	assert.InDelta(t, 98.5, result.SuccessPercent(), 1e-9)
}

func TestAggregate_StageDurationIsMaxOfStage(t *testing.T) {
	plan := models.ExecutionPlan{
		Stages: []models.Stage{{"t"}, {"a", "b"}, {"o"}},
	}

	estimates := map[string]models.NodeEstimate{
		"t": {SuccessRate: 1, DurationMs: 5},
		"a": {SuccessRate: 0.9, DurationMs: 100},
		"b": {SuccessRate: 0.5, DurationMs: 300},
		"o": {SuccessRate: 1, DurationMs: 10},
	}

	result := estimate.Aggregate(plan, estimates)

	assert.Equal(t, []int64{5, 300, 10}, result.StageDurationsMs)
	assert.Equal(t, int64(315), result.EstimatedDurationMs)
	assert.InDelta(t, 0.45, result.CombinedSuccessRate, 1e-9)
}

func TestAggregate_GasGroupedByChain(t *testing.T) {
	plan := models.ExecutionPlan{
		Stages: []models.Stage{{"a", "b", "c", "d", "e"}},
	}

	estimates := map[string]models.NodeEstimate{
		"a": {Chain: "flow", Gas: models.MustParseGasAmount("0.001 FLOW"), SuccessRate: 1},
		"b": {Chain: "flow", Gas: models.MustParseGasAmount("0.002 FLOW"), SuccessRate: 1},
		"c": {Gas: models.MustParseGasAmount("0.0004 ETH"), SuccessRate: 1},
		"d": {Gas: models.MustParseGasAmount("3"), SuccessRate: 1},
		"e": {Chain: "flow", SuccessRate: 1},
	}

	result := estimate.Aggregate(plan, estimates)

	require.Len(t, result.TotalGasByChain, 3)
	assert.Equal(t, "0.003 FLOW", result.TotalGasByChain["flow"].String())
	assert.Equal(t, "0.0004 ETH", result.TotalGasByChain["eth"].String())
	assert.Equal(t, "3", result.TotalGasByChain[estimate.OffChain].String())
	assert.Equal(t, "0.0004 ETH + 0.003 FLOW + 3", result.GasSummary())
}

func TestAggregate_MissingEstimates(t *testing.T) {
	plan := models.ExecutionPlan{Stages: []models.Stage{{"a"}, {"b"}}}

	result := estimate.Aggregate(plan, map[string]models.NodeEstimate{
		"b": {SuccessRate: 0.8, DurationMs: 20},
	})

	assert.InDelta(t, 0.8, result.CombinedSuccessRate, 1e-9)
	assert.Equal(t, []int64{0, 20}, result.StageDurationsMs)
	assert.Empty(t, result.TotalGasByChain)
}

func TestAggregate_EmptyPlan(t *testing.T) {
	result := estimate.Aggregate(models.ExecutionPlan{}, nil)

	assert.InDelta(t, 1.0, result.CombinedSuccessRate, 1e-9)
	assert.Zero(t, result.EstimatedDurationMs)
	assert.Empty(t, result.GasSummary())
}
