package models

import "time"

// StepStatus is the outcome of one node in a run.
type StepStatus string

const (
	StepStatusSucceeded StepStatus = "succeeded"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"

	// StepStatusIdle is only used in documents for nodes without a recorded run.
	StepStatusIdle StepStatus = "idle"
)

// RunMode selects between a side-effect free simulation and a live execution.
type RunMode string

const (
	RunModeDryRun RunMode = "dry-run"
	RunModeLive   RunMode = "live"
)

// StepResult is produced per node during a run and is immutable once recorded.
type StepResult struct {
	NodeID     string         `json:"node_id"`
	Stage      int            `json:"stage"`
	Status     StepStatus     `json:"status"`
	Outputs    map[string]any `json:"outputs,omitempty"`
	Error      string         `json:"error,omitempty"`
	GasUsed    *GasAmount     `json:"gas_used,omitempty"`
	DurationMs int64          `json:"duration_ms"`
	// Abandoned marks a step whose Execute call had not returned when it was
	// cancelled; it may still be running in the background and its late result is discarded.
	Abandoned bool `json:"abandoned,omitempty"`
}

// RunResult is the outcome of one simulation or execution pass over a plan.
type RunResult struct {
	ID            string       `json:"id"`
	WorkflowID    string       `json:"workflow_id,omitempty"`
	Mode          RunMode      `json:"mode"`
	Results       []StepResult `json:"results"`
	OverallStatus StepStatus   `json:"overall_status"`
	StartedAt     time.Time    `json:"started_at"`
	FinishedAt    time.Time    `json:"finished_at"`
}

// Result returns the step result for a node.
func (r RunResult) Result(nodeID string) (StepResult, bool) {
	for _, res := range r.Results {
		if res.NodeID == nodeID {
			return res, true
		}
	}

	return StepResult{}, false
}

// Statuses returns a node id to status map.
func (r RunResult) Statuses() map[string]StepStatus {
	out := make(map[string]StepStatus, len(r.Results))
	for _, res := range r.Results {
		out[res.NodeID] = res.Status
	}

	return out
}
