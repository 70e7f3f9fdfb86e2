package persistence

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrInvalidWorkflowID indicates an identifier that cannot be used as a storage key.
	ErrInvalidWorkflowID = errors.New("invalid workflow id")

	// ErrUnsupportedBackend indicates a persistence URL with an unknown scheme.
	ErrUnsupportedBackend = errors.New("unsupported persistence backend")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "WorkflowByID", "SaveWorkflow")
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for workflow errors.
func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

var workflowIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.\-]{0,127}$`)

// ValidateWorkflowID rejects ids that are empty, too long or could escape a
// storage namespace (path separators, "..").
func ValidateWorkflowID(op, id string) error {
	if !workflowIDPattern.MatchString(id) || strings.Contains(id, "..") {
		return NewWorkflowError(op, id, ErrInvalidWorkflowID)
	}

	return nil
}
