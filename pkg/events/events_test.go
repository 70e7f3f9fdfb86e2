package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dukex/flowplan/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypes(t *testing.T) {
	assert.Equal(t, PlanCompiledEvent, PlanCompiled{}.GetType())
	assert.Equal(t, PlanRejectedEvent, PlanRejected{}.GetType())
	assert.Equal(t, RunStartedEvent, RunStarted{}.GetType())
	assert.Equal(t, StepCompletedEvent, StepCompleted{}.GetType())
	assert.Equal(t, RunCompletedEvent, RunCompleted{}.GetType())
}

func TestNewBaseEvent(t *testing.T) {
	event := NewBaseEvent(PlanCompiledEvent, "wf-1")

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, PlanCompiledEvent, event.Type)
	assert.Equal(t, "wf-1", event.WorkflowID)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, time.Second)
	assert.NotNil(t, event.Metadata)
}

func TestPlanCompiled_JSONSerialization(t *testing.T) {
	original := &PlanCompiled{
		BaseEvent:    NewBaseEvent(PlanCompiledEvent, "wf-1"),
		GraphVersion: 7,
		Stages:       [][]string{{"trigger1"}, {"action1", "action2"}},
		Estimate: models.PlanEstimate{
			TotalGasByChain:     map[string]models.GasAmount{"flow": models.MustParseGasAmount("0.002 FLOW")},
			CombinedSuccessRate: 0.985,
		},
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"plan.compiled"`)
	assert.Contains(t, string(data), `"flow":"0.002 FLOW"`)

	var decoded PlanCompiled
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original.Stages, decoded.Stages)
	assert.Equal(t, uint64(7), decoded.GraphVersion)
	assert.Equal(t, "0.002 FLOW", decoded.Estimate.TotalGasByChain["flow"].String())
}

func TestNewRunCompleted(t *testing.T) {
	started := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	result := models.RunResult{
		ID:            "run-1",
		WorkflowID:    "wf-1",
		Mode:          models.RunModeDryRun,
		OverallStatus: models.StepStatusFailed,
		StartedAt:     started,
		FinishedAt:    started.Add(1500 * time.Millisecond),
		Results: []models.StepResult{
			{NodeID: "trigger1", Status: models.StepStatusSucceeded},
			{NodeID: "action1", Status: models.StepStatusFailed},
			{NodeID: "action2", Status: models.StepStatusSkipped},
			{NodeID: "output1", Status: models.StepStatusSkipped},
		},
	}

	event := NewRunCompleted(result)

	assert.Equal(t, RunCompletedEvent, event.Type)
	assert.Equal(t, "wf-1", event.WorkflowID)
	assert.Equal(t, "run-1", event.RunID)
	assert.Equal(t, int64(1500), event.DurationMs)
	assert.Equal(t, []string{"action1"}, event.Failed)
	assert.Equal(t, []string{"action2", "output1"}, event.Skipped)
}
