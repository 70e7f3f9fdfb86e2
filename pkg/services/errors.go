// Package services implements the workflow editing and simulation use cases behind the HTTP API.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/flowplan/pkg/graph"
	"github.com/dukex/flowplan/pkg/models"
	"github.com/dukex/flowplan/pkg/persistence"
	"github.com/dukex/flowplan/pkg/workflow"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest   = errors.New("invalid request")
	ErrInvalidSortField = errors.New("invalid sort field")
	ErrInvalidSortOrder = errors.New("invalid sort order")
	ErrInvalidRunMode   = errors.New("invalid run mode")

	// Business Logic Conflicts (409 Conflict).
	ErrWorkflowExists = errors.New("workflow already exists")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidSortField) ||
		errors.Is(err, ErrInvalidSortOrder) ||
		errors.Is(err, ErrInvalidRunMode) ||
		errors.Is(err, persistence.ErrInvalidWorkflowID) ||
		errors.Is(err, models.ErrInvalidNode) ||
		errors.Is(err, models.ErrInvalidNodeKind) ||
		errors.Is(err, models.ErrInvalidOnErrorPolicy) ||
		errors.Is(err, models.ErrDuplicateOutput) ||
		errors.Is(err, models.ErrInvalidParameters) ||
		errors.Is(err, models.ErrInvalidSchedule)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrWorkflowExists) ||
		errors.Is(err, graph.ErrNodeExists) ||
		errors.Is(err, graph.ErrConnectionExists) ||
		errors.Is(err, graph.ErrDuplicateConnection)
}

// IsNotFoundError checks if an error refers to a missing node or connection.
func IsNotFoundError(err error) bool {
	return errors.Is(err, graph.ErrNodeNotFound) ||
		errors.Is(err, graph.ErrConnectionNotFound)
}

// IsUnprocessableError checks if an operation needs a valid plan the workflow does not have.
func IsUnprocessableError(err error) bool {
	return errors.Is(err, workflow.ErrNoValidPlan)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
