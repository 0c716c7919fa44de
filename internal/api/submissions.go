package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sgfractal/eigen-workflow/pkg/models"
)

type coordinationResponseRequest struct {
	Response []byte `json:"response"`
}

// SubmitCoordinationResponse records one operator's response to an active
// COORDINATION phase.
// (POST /v1/executions/:executionID/phases/:phaseIndex/coordination)
func (s *Server) SubmitCoordinationResponse(c echo.Context) error {
	ctx := c.Request().Context()
	responder, err := callerPrincipal(c)
	if err != nil {
		return err
	}
	phaseIndex, err := pathPhaseIndex(c)
	if err != nil {
		return err
	}

	var req coordinationResponseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	executionID := models.ID(c.Param("executionID"))
	if err := s.Engine.SubmitCoordinationResponse(ctx, executionID, phaseIndex, responder, req.Response); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type monitoringUpdateRequest struct {
	Data []byte `json:"data"`
}

// SubmitMonitoringUpdate records one operator's update for an active
// CONTINUOUS phase.
// (POST /v1/executions/:executionID/phases/:phaseIndex/monitoring)
func (s *Server) SubmitMonitoringUpdate(c echo.Context) error {
	ctx := c.Request().Context()
	operator, err := callerPrincipal(c)
	if err != nil {
		return err
	}
	phaseIndex, err := pathPhaseIndex(c)
	if err != nil {
		return err
	}

	var req monitoringUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	executionID := models.ID(c.Param("executionID"))
	if err := s.Engine.SubmitMonitoringUpdate(ctx, executionID, phaseIndex, operator, req.Data); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type triggerConditionalRequest struct {
	TriggerData []byte `json:"trigger_data"`
}

// TriggerConditionalPhase evaluates and, if satisfied, fires a CONDITIONAL
// phase's armed trigger.
// (POST /v1/executions/:executionID/phases/:phaseIndex/trigger)
func (s *Server) TriggerConditionalPhase(c echo.Context) error {
	ctx := c.Request().Context()
	source, err := callerPrincipal(c)
	if err != nil {
		return err
	}
	phaseIndex, err := pathPhaseIndex(c)
	if err != nil {
		return err
	}

	var req triggerConditionalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	executionID := models.ID(c.Param("executionID"))
	if err := s.Engine.TriggerConditionalPhase(ctx, executionID, phaseIndex, source, req.TriggerData); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CheckPhaseTimeout evaluates whether a phase's deadline has passed and, if
// so, transitions it to TIMED_OUT.
// (POST /v1/executions/:executionID/phases/:phaseIndex/timeout-check)
func (s *Server) CheckPhaseTimeout(c echo.Context) error {
	ctx := c.Request().Context()
	phaseIndex, err := pathPhaseIndex(c)
	if err != nil {
		return err
	}

	executionID := models.ID(c.Param("executionID"))
	if err := s.Engine.CheckPhaseTimeout(ctx, executionID, phaseIndex); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
