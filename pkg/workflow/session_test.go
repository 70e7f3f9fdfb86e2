package workflow

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukex/flowplan/pkg/cmd"
	"github.com/dukex/flowplan/pkg/eventbus"
	"github.com/dukex/flowplan/pkg/events"
	"github.com/dukex/flowplan/pkg/mocks"
	"github.com/dukex/flowplan/pkg/models"
	"github.com/dukex/flowplan/pkg/protocol"
	"github.com/dukex/flowplan/pkg/registry"
	"github.com/dukex/flowplan/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingBus captures published event types in order.
func recordingBus() (*mocks.MockEventBus, func() []events.EventType) {
	var (
		mu    sync.Mutex
		types []events.EventType
	)

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, "wf-test", mock.Anything).
		Run(func(args mock.Arguments) {
			mu.Lock()
			defer mu.Unlock()

			types = append(types, args.Get(2).(eventbus.Event).GetType())
		}).
		Return(nil)

	return bus, func() []events.EventType {
		mu.Lock()
		defer mu.Unlock()

		return append([]events.EventType(nil), types...)
	}
}

func TestNewSession_CompilesPlanAndEstimate(t *testing.T) {
	session := NewSession(context.Background(), testutil.LinearWorkflow(t), discardLogger())

	report := session.Report()
	require.True(t, report.Valid)
	require.NotNil(t, report.Plan)
	require.NotNil(t, report.Estimate)

	assert.Equal(t, [][]string{{"trigger1"}, {"action1"}, {"output1"}}, report.Plan.StageIDs())
	assert.Equal(t, "0.002 FLOW", report.Estimate.GasSummary())
	assert.InDelta(t, 0.985, report.Estimate.CombinedSuccessRate, 1e-9)

	lastValid, ok := session.LastValid()
	require.True(t, ok)
	assert.Equal(t, report.GraphVersion, lastValid.GraphVersion)
}

func TestSession_CycleKeepsLastValidPlan(t *testing.T) {
	ctx := context.Background()
	session := NewSession(ctx, testutil.LinearWorkflow(t), discardLogger())
	before := session.Report()

	_, report, err := session.Connect(ctx, models.Connection{From: "output1", To: "action1"})
	require.NoError(t, err)

	assert.False(t, report.Valid)
	assert.Nil(t, report.Plan)
	assert.Greater(t, report.GraphVersion, before.GraphVersion)

	kinds := make([]models.GraphErrorKind, 0, len(report.GraphErrors))
	for _, e := range report.GraphErrors {
		kinds = append(kinds, e.Kind)
	}

	assert.Contains(t, kinds, models.GraphErrorCycle)

	lastValid, ok := session.LastValid()
	require.True(t, ok)
	assert.Equal(t, before.GraphVersion, lastValid.GraphVersion)
	assert.Equal(t, before.Plan.StageIDs(), lastValid.Plan.StageIDs())
}

func TestSession_FlowErrorsBlockPlanning(t *testing.T) {
	ctx := context.Background()
	session := NewSession(ctx, testutil.LinearWorkflow(t), discardLogger())

	_, err := session.AddNode(ctx, testutil.Output("output2", testutil.WithParam("message", "{{missing}}")))
	require.NoError(t, err)

	// Unconnected, so only an orphan warning.
	report := session.Report()
	assert.True(t, report.Valid)
	assert.Empty(t, report.FlowErrors)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, models.GraphErrorOrphanNode, report.Warnings[0].Kind)
	assert.Equal(t, []string{"output2"}, report.Plan.Excluded)

	_, report, err = session.Connect(ctx, models.Connection{From: "action1", To: "output2"})
	require.NoError(t, err)

	assert.False(t, report.Valid)
	require.Len(t, report.FlowErrors, 1)
	assert.Equal(t, models.FlowErrorUnknownVariable, report.FlowErrors[0].Kind)
	assert.Equal(t, "output2", report.FlowErrors[0].NodeID)
	assert.Equal(t, "message", report.FlowErrors[0].Parameter)
}

func TestSession_MutationErrorLeavesReportUnchanged(t *testing.T) {
	ctx := context.Background()
	session := NewSession(ctx, testutil.LinearWorkflow(t), discardLogger())
	before := session.Report()

	_, err := session.RemoveNode(ctx, "does-not-exist")
	require.Error(t, err)

	assert.Equal(t, before.GraphVersion, session.Report().GraphVersion)
}

func TestSession_SetVariableReplans(t *testing.T) {
	ctx := context.Background()
	g := testutil.BuildGraph(t,
		[]*models.Node{
			testutil.Trigger("trigger1"),
			testutil.Action("action1", testutil.WithParam("amount", "{{limit}}"), models.AsTerminal()),
		},
		"trigger1->action1",
	)

	session := NewSession(ctx, g, discardLogger())
	assert.False(t, session.Report().Valid)

	report, err := session.SetVariable(ctx, "limit", 10)
	require.NoError(t, err)
	assert.True(t, report.Valid)

	report, err = session.SetVariable(ctx, "limit", "ten")
	require.NoError(t, err)
	require.Len(t, report.FlowErrors, 1)
	assert.Equal(t, models.FlowErrorTypeMismatch, report.FlowErrors[0].Kind)
}

func TestSession_RenameDescribes(t *testing.T) {
	ctx := context.Background()
	session := NewSession(ctx, testutil.LinearWorkflow(t), discardLogger())

	_, err := session.Rename(ctx, "Payroll", "Monthly payroll")
	require.NoError(t, err)

	g := session.Graph()
	assert.Equal(t, "Payroll", g.Name())
	assert.Equal(t, "Monthly payroll", g.Description())
}

func TestSession_SimulateDryRunPublishesEvents(t *testing.T) {
	ctx := context.Background()
	bus, published := recordingBus()

	session := NewSession(ctx, testutil.LinearWorkflow(t), discardLogger(), WithPublisher(bus))

	result, err := session.Simulate(ctx, models.RunModeDryRun)
	require.NoError(t, err)

	assert.Equal(t, models.StepStatusSucceeded, result.OverallStatus)
	assert.Len(t, result.Results, 3)

	lastRun, ok := session.LastRun()
	require.True(t, ok)
	assert.Equal(t, result.ID, lastRun.ID)

	assert.Equal(t, []events.EventType{
		events.PlanCompiledEvent,
		events.RunStartedEvent,
		events.StepCompletedEvent,
		events.StepCompletedEvent,
		events.StepCompletedEvent,
		events.RunCompletedEvent,
	}, published())
}

func TestSession_SimulateWithoutValidPlan(t *testing.T) {
	ctx := context.Background()
	g := testutil.BuildGraph(t, []*models.Node{testutil.Action("action1")})

	session := NewSession(ctx, g, discardLogger())

	_, err := session.Simulate(ctx, models.RunModeDryRun)
	require.ErrorIs(t, err, ErrNoValidPlan)

	_, ok := session.LastRun()
	assert.False(t, ok)
}

func TestSession_LiveRunUsesExecutor(t *testing.T) {
	ctx := context.Background()

	executor := &mocks.MockStepExecutor{}
	executor.On("EstimateCost", mock.Anything, mock.Anything).Return(models.MustParseGasAmount("0.001 FLOW"), nil)
	executor.On("EstimateSuccessRate", mock.Anything, mock.Anything).Return(0.9, nil)
	executor.On("Execute", mock.Anything, mock.MatchedBy(func(n *models.Node) bool { return n.ID == "action1" }), mock.Anything).
		Return(&protocol.StepOutput{Values: map[string]any{"txId": "0xabc"}}, nil)
	executor.On("Execute", mock.Anything, mock.MatchedBy(func(n *models.Node) bool { return n.ID != "action1" }), mock.Anything).
		Return(&protocol.StepOutput{}, nil)

	session := NewSession(ctx, testutil.LinearWorkflow(t), discardLogger(), WithExecutor(executor))

	report := session.Report()
	require.NotNil(t, report.Estimate)
	assert.Equal(t, "0.003 FLOW", report.Estimate.GasSummary())
	assert.InDelta(t, 0.729, report.Estimate.CombinedSuccessRate, 1e-9)

	result, err := session.Simulate(ctx, models.RunModeLive)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusSucceeded, result.OverallStatus)

	executor.AssertCalled(t, "Execute", mock.Anything,
		mock.MatchedBy(func(n *models.Node) bool {
			return n.ID == "output1" && n.Parameters["message"] == "sent 0xabc"
		}),
		mock.Anything,
	)
}

func TestSession_DryRunIgnoresConfiguredExecutor(t *testing.T) {
	ctx := context.Background()

	dispatcher, err := cmd.NewDispatcher(registry.NewWithBuiltins(discardLogger()), "log", nil)
	require.NoError(t, err)

	g := testutil.LinearWorkflow(t)
	require.NoError(t, g.UpdateNode(testutil.Action("action1",
		testutil.WithEstimate("0.002 FLOW", 0.985),
		testutil.WithParam("chain", "flow"),
		testutil.WithParam("mockOutputs", map[string]any{"txId": "0xfeed"}),
		models.WithOutputs(testutil.Out("txId", models.VariableTypeString)),
	)))

	session := NewSession(ctx, g, discardLogger(), WithExecutor(dispatcher))

	result, err := session.Simulate(ctx, models.RunModeDryRun)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusSucceeded, result.OverallStatus)

	action, ok := result.Result("action1")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"txId": "0xfeed"}, action.Outputs)

	output, ok := result.Result("output1")
	require.True(t, ok)
	assert.Equal(t, models.StepStatusSucceeded, output.Status, output.Error)
}

func TestSession_PublishesAfterReleasingLock(t *testing.T) {
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, "wf-test", mock.MatchedBy(func(e eventbus.Event) bool {
		return e.GetType() == events.PlanRejectedEvent
	})).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(nil)
	bus.On("Publish", mock.Anything, "wf-test", mock.Anything).Return(nil)

	session := NewSession(ctx, testutil.LinearWorkflow(t), discardLogger(), WithPublisher(bus))

	done := make(chan struct{})

	go func() {
		defer close(done)

		_, err := session.UpdateNode(ctx, testutil.Output("output1", testutil.WithParam("message", "sent {{missing}}")))
		assert.NoError(t, err)
	}()

	<-entered

	read := make(chan Report)

	go func() {
		read <- session.Report()
	}()

	select {
	case report := <-read:
		assert.False(t, report.Valid)
	case <-time.After(2 * time.Second):
		t.Fatal("Report blocked while an event was being published")
	}

	close(release)
	<-done
}
