// Package web provides HTTP handlers and REST API endpoints for editing, planning and simulating workflows.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dukex/flowplan/pkg/models"
	"github.com/dukex/flowplan/pkg/registry"
	"github.com/dukex/flowplan/pkg/services"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	workflowService *services.Workflow
	nodeService     *services.Node
	registry        *registry.Registry
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	nodeService *services.Node,
	registry *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		workflowService: workflowService,
		nodeService:     nodeService,
		registry:        registry,
	}
}

// Register mounts every route on router.
func (h *APIHandlers) Register(router fiber.Router) {
	w := router.Group("/workflows")
	w.Get("/", h.GetWorkflows)
	w.Post("/", h.CreateWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Put("/:id", h.UpdateWorkflow)
	w.Patch("/:id", h.UpdateWorkflow)
	w.Delete("/:id", h.DeleteWorkflow)

	w.Post("/:id/nodes", h.CreateWorkflowNode)
	w.Put("/:id/nodes/:nodeId", h.UpdateWorkflowNode)
	w.Delete("/:id/nodes/:nodeId", h.DeleteWorkflowNode)

	w.Post("/:id/connections", h.CreateWorkflowConnection)
	w.Delete("/:id/connections/:connectionId", h.DeleteWorkflowConnection)

	w.Get("/:id/plan", h.GetWorkflowPlan)
	w.Post("/:id/simulate", h.SimulateWorkflow)

	router.Get("/executors", h.GetExecutors)
	router.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	req, err := parseListWorkflowsRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.workflowService.ListWorkflows(c.Context(), *req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":     result.Workflows,
		"total_count":   result.TotalCount,
		"has_next_page": result.HasNextPage,
		"pagination": fiber.Map{
			"limit":  req.Limit,
			"offset": req.Offset,
		},
		"sorting": fiber.Map{
			"sort_by":    req.SortBy,
			"sort_order": req.SortOrder,
		},
	})
}

// parseListWorkflowsRequest parses query parameters for listing workflows.
func parseListWorkflowsRequest(c fiber.Ctx) (*services.ListWorkflowsRequest, error) {
	req := &services.ListWorkflowsRequest{}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		req.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		req.Offset = offset
	}

	req.SortBy = c.Query("sort_by")
	req.SortOrder = c.Query("sort_order")

	return req, nil
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.workflowService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req services.CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	created, err := h.workflowService.Create(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	var req services.UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	updated, err := h.workflowService.Update(c.Context(), c.Params("id"), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	err := h.workflowService.Delete(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) CreateWorkflowNode(c fiber.Ctx) error {
	var req services.NodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	result, err := h.nodeService.AddNode(c.Context(), c.Params("id"), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

func (h *APIHandlers) UpdateWorkflowNode(c fiber.Ctx) error {
	var req services.NodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	result, err := h.nodeService.UpdateNode(c.Context(), c.Params("id"), c.Params("nodeId"), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) DeleteWorkflowNode(c fiber.Ctx) error {
	result, err := h.nodeService.RemoveNode(c.Context(), c.Params("id"), c.Params("nodeId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) CreateWorkflowConnection(c fiber.Ctx) error {
	var req services.ConnectionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	result, err := h.nodeService.Connect(c.Context(), c.Params("id"), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

func (h *APIHandlers) DeleteWorkflowConnection(c fiber.Ctx) error {
	result, err := h.nodeService.Disconnect(c.Context(), c.Params("id"), c.Params("connectionId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetWorkflowPlan(c fiber.Ctx) error {
	plan, err := h.workflowService.Plan(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(plan)
}

// SimulateRequest selects the run mode; the default is a dry run.
type SimulateRequest struct {
	Mode models.RunMode `json:"mode"`
}

func (h *APIHandlers) SimulateWorkflow(c fiber.Ctx) error {
	var req SimulateRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	result, err := h.workflowService.Simulate(c.Context(), c.Params("id"), req.Mode)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

// ExecutorResponse describes a registered step executor.
type ExecutorResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *APIHandlers) GetExecutors(c fiber.Ctx) error {
	factories := h.registry.Factories()

	out := make([]ExecutorResponse, 0, len(factories))
	for _, factory := range factories {
		out = append(out, ExecutorResponse{
			ID:          factory.ID(),
			Name:        factory.Name(),
			Description: factory.Description(),
		})
	}

	return c.JSON(out)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	registryCheck, regOk := h.registry.HealthCheck()
	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Flowplan API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if regOk && repOk {
		status = "healthy"
		message = "Flowplan API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry":   registryCheck,
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
