// Package events defines the plan and run lifecycle notifications published by workflow sessions.
package events

import (
	"time"

	"github.com/dukex/flowplan/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every lifecycle event; consumers filter by the event type metadata.
const Topic = "flowplan.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Planning events.
	PlanCompiledEvent EventType = "plan.compiled"
	PlanRejectedEvent EventType = "plan.rejected"

	// Run events.
	RunStartedEvent    EventType = "run.started"
	StepCompletedEvent EventType = "step.completed"
	RunCompletedEvent  EventType = "run.completed"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}

// PlanCompiled is published after a mutation produced a valid plan.
type PlanCompiled struct {
	BaseEvent

	GraphVersion uint64              `json:"graph_version"`
	Stages       [][]string          `json:"stages"`
	Excluded     []string            `json:"excluded,omitempty"`
	Estimate     models.PlanEstimate `json:"estimate"`
	Warnings     []models.GraphError `json:"warnings,omitempty"`
}

func (e PlanCompiled) GetType() EventType {
	return PlanCompiledEvent
}

// PlanRejected is published when validation or flow resolution blocks planning.
type PlanRejected struct {
	BaseEvent

	GraphVersion uint64              `json:"graph_version"`
	GraphErrors  []models.GraphError `json:"graph_errors,omitempty"`
	FlowErrors   []models.FlowError  `json:"flow_errors,omitempty"`
}

func (e PlanRejected) GetType() EventType {
	return PlanRejectedEvent
}

type RunStarted struct {
	BaseEvent

	RunID  string         `json:"run_id"`
	Mode   models.RunMode `json:"mode"`
	Stages [][]string     `json:"stages"`
}

func (e RunStarted) GetType() EventType {
	return RunStartedEvent
}

type StepCompleted struct {
	BaseEvent

	RunID  string            `json:"run_id"`
	Result models.StepResult `json:"result"`
}

func (e StepCompleted) GetType() EventType {
	return StepCompletedEvent
}

type RunCompleted struct {
	BaseEvent

	RunID         string            `json:"run_id"`
	Mode          models.RunMode    `json:"mode"`
	OverallStatus models.StepStatus `json:"overall_status"`
	DurationMs    int64             `json:"duration_ms"`
	Failed        []string          `json:"failed,omitempty"`
	Skipped       []string          `json:"skipped,omitempty"`
}

func (e RunCompleted) GetType() EventType {
	return RunCompletedEvent
}

// NewRunCompleted summarizes a finished run.
func NewRunCompleted(result models.RunResult) *RunCompleted {
	event := &RunCompleted{
		BaseEvent:     NewBaseEvent(RunCompletedEvent, result.WorkflowID),
		RunID:         result.ID,
		Mode:          result.Mode,
		OverallStatus: result.OverallStatus,
		DurationMs:    result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
	}

	for _, res := range result.Results {
		switch res.Status {
		case models.StepStatusFailed:
			event.Failed = append(event.Failed, res.NodeID)
		case models.StepStatusSkipped:
			event.Skipped = append(event.Skipped, res.NodeID)
		}
	}

	return event
}
