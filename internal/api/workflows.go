package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sgfractal/eigen-workflow/pkg/models"
)

type registerWorkflowRequest struct {
	Name               string                    `json:"name"`
	Phases             []models.PhaseDefinition  `json:"phases"`
	AuthorizedTriggers []string                  `json:"authorized_triggers"`
	FeePaid            uint64                    `json:"fee_paid"`
}

type registerWorkflowResponse struct {
	WorkflowID models.ID `json:"workflow_id"`
}

// RegisterWorkflow creates a new workflow definition.
// (POST /v1/workflows)
func (s *Server) RegisterWorkflow(c echo.Context) error {
	ctx := c.Request().Context()

	creator, err := callerPrincipal(c)
	if err != nil {
		return err
	}

	var req registerWorkflowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	triggers := make([]models.Principal, 0, len(req.AuthorizedTriggers))
	for _, raw := range req.AuthorizedTriggers {
		p, err := models.ParsePrincipal(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid authorized_trigger: "+err.Error())
		}
		triggers = append(triggers, p)
	}

	id, err := s.Engine.RegisterWorkflow(ctx, creator, req.Name, req.Phases, triggers, req.FeePaid)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, registerWorkflowResponse{WorkflowID: id})
}

// ListWorkflows returns a page of registered workflows.
// (GET /v1/workflows)
func (s *Server) ListWorkflows(c echo.Context) error {
	limit, offset, err := pageParams(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, paginate(s.Engine.ListWorkflows(), limit, offset))
}

// GetWorkflow returns a single workflow definition.
// (GET /v1/workflows/:workflowID)
func (s *Server) GetWorkflow(c echo.Context) error {
	wf, err := s.Engine.GetWorkflow(models.ID(c.Param("workflowID")))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, wf)
}

// DeactivateWorkflow marks a workflow inactive. Admin-only.
// (POST /v1/workflows/:workflowID/deactivate)
func (s *Server) DeactivateWorkflow(c echo.Context) error {
	admin, err := callerPrincipal(c)
	if err != nil {
		return err
	}
	if err := s.Engine.DeactivateWorkflow(admin, models.ID(c.Param("workflowID"))); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type executeWorkflowRequest struct {
	Payload []byte `json:"payload"`
	FeePaid uint64 `json:"fee_paid"`
}

type executeWorkflowResponse struct {
	ExecutionID models.ID `json:"execution_id"`
}

// ExecuteWorkflow starts a new execution of a registered workflow.
// (POST /v1/workflows/:workflowID/executions)
func (s *Server) ExecuteWorkflow(c echo.Context) error {
	ctx := c.Request().Context()

	initiator, err := callerPrincipal(c)
	if err != nil {
		return err
	}

	var req executeWorkflowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	id, err := s.Engine.ExecuteWorkflow(ctx, models.ID(c.Param("workflowID")), initiator, req.Payload, req.FeePaid)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, executeWorkflowResponse{ExecutionID: id})
}

// ListExecutions returns a page of live executions.
// (GET /v1/executions)
func (s *Server) ListExecutions(c echo.Context) error {
	limit, offset, err := pageParams(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, paginate(s.Engine.ListExecutions(), limit, offset))
}

// GetExecution returns a single execution's current state.
// (GET /v1/executions/:executionID)
func (s *Server) GetExecution(c echo.Context) error {
	exec, err := s.Engine.GetExecution(models.ID(c.Param("executionID")))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, exec)
}

type phaseStatusResponse struct {
	Status models.PhaseStatus `json:"status"`
	Result []byte             `json:"result,omitempty"`
}

// GetPhaseStatus returns a single phase's status and, if completed, its
// result.
// (GET /v1/executions/:executionID/phases/:phaseIndex)
func (s *Server) GetPhaseStatus(c echo.Context) error {
	executionID := models.ID(c.Param("executionID"))
	phaseIndex, err := pathPhaseIndex(c)
	if err != nil {
		return err
	}

	status, err := s.Engine.GetPhaseStatus(executionID, phaseIndex)
	if err != nil {
		return httpError(err)
	}

	resp := phaseStatusResponse{Status: status}
	if status == models.StatusCompleted {
		result, err := s.Engine.GetPhaseResult(executionID, phaseIndex)
		if err != nil {
			return httpError(err)
		}
		resp.Result = result
	}
	return c.JSON(http.StatusOK, resp)
}
