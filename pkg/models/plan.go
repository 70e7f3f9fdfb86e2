package models

// Stage is a set of node ids that may execute concurrently, sorted by id.
type Stage []string

// ExecutionPlan is the dependency-ordered, stage grouped plan derived from a graph.
type ExecutionPlan struct {
	Stages []Stage `json:"stages"`
	// Visible holds the variables each planned node may read, keyed by node id.
	Visible map[string][]VisibleVariable `json:"visible,omitempty"`
	// Excluded lists orphan node ids left out of the plan.
	Excluded []string `json:"excluded,omitempty"`
}

// Flatten returns the plan's node ids in stage order.
func (p ExecutionPlan) Flatten() []string {
	ids := make([]string, 0, p.Len())
	for _, stage := range p.Stages {
		ids = append(ids, stage...)
	}

	return ids
}

// Len returns the number of planned nodes.
func (p ExecutionPlan) Len() int {
	n := 0
	for _, stage := range p.Stages {
		n += len(stage)
	}

	return n
}

// StageOf returns a map from node id to stage index.
func (p ExecutionPlan) StageOf() map[string]int {
	index := make(map[string]int, p.Len())
	for i, stage := range p.Stages {
		for _, id := range stage {
			index[id] = i
		}
	}

	return index
}

// Empty reports whether the plan has no stages.
func (p ExecutionPlan) Empty() bool {
	return len(p.Stages) == 0
}

// StageIDs returns the stages as plain string slices.
func (p ExecutionPlan) StageIDs() [][]string {
	out := make([][]string, len(p.Stages))
	for i, stage := range p.Stages {
		out[i] = append([]string(nil), stage...)
	}

	return out
}
