package mocks

import (
	"context"

	"github.com/dukex/flowplan/pkg/models"
	"github.com/dukex/flowplan/pkg/protocol"
	"github.com/stretchr/testify/mock"
)

// MockStepExecutor is a mock implementation of protocol.StepExecutor interface.
type MockStepExecutor struct {
	mock.Mock
}

func (m *MockStepExecutor) Execute(ctx context.Context, node *models.Node, inputs map[string]any) (*protocol.StepOutput, error) {
	args := m.Called(ctx, node, inputs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*protocol.StepOutput), args.Error(1)
}

func (m *MockStepExecutor) EstimateCost(ctx context.Context, node *models.Node) (models.GasAmount, error) {
	args := m.Called(ctx, node)

	return args.Get(0).(models.GasAmount), args.Error(1)
}

func (m *MockStepExecutor) EstimateSuccessRate(ctx context.Context, node *models.Node) (float64, error) {
	args := m.Called(ctx, node)

	return args.Get(0).(float64), args.Error(1)
}
