package web

import (
	"github.com/dukex/flowplan/pkg/persistence"
	"github.com/dukex/flowplan/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func problem(c fiber.Ctx, status int, problemType, detail string) error {
	p := problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(detail)

	return c.Status(status).JSON(p)
}

// handleServiceError provides typed error handling for service layer errors.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case persistence.IsWorkflowNotFound(err):
		return problem(c, fiber.StatusNotFound, "workflow_not_found", "workflow not found")

	case services.IsNotFoundError(err):
		return problem(c, fiber.StatusNotFound, "not_found", err.Error())

	case services.IsValidationError(err):
		return problem(c, fiber.StatusBadRequest, "validation_error", err.Error())

	case services.IsConflictError(err):
		return problem(c, fiber.StatusConflict, "conflict", err.Error())

	case services.IsUnprocessableError(err):
		return problem(c, fiber.StatusUnprocessableEntity, "invalid_plan", err.Error())

	default:
		// Log unexpected errors but don't expose details
		p := problems.NewStatusProblem(500).
			WithInstance(c.Path()).
			WithType("internal_error").
			WithError(err)

		return c.Status(fiber.StatusInternalServerError).JSON(p)
	}
}
