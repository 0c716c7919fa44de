package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sgfractal/eigen-workflow/internal/engine"
	"github.com/sgfractal/eigen-workflow/pkg/models"
)

type principalRequest struct {
	Principal string `json:"principal"`
}

// AuthorizeWorkflowCreator grants p permission to register workflows.
// (POST /v1/admin/creators)
func (s *Server) AuthorizeWorkflowCreator(c echo.Context) error {
	admin, err := callerPrincipal(c)
	if err != nil {
		return err
	}
	p, err := bindPrincipal(c)
	if err != nil {
		return err
	}
	if err := s.Engine.AuthorizeWorkflowCreator(admin, p); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// AuthorizeTriggerSource grants p global permission to fire CONDITIONAL
// phases across every workflow.
// (POST /v1/admin/trigger-sources)
func (s *Server) AuthorizeTriggerSource(c echo.Context) error {
	admin, err := callerPrincipal(c)
	if err != nil {
		return err
	}
	p, err := bindPrincipal(c)
	if err != nil {
		return err
	}
	if err := s.Engine.AuthorizeTriggerSource(admin, p); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type setFeesRequest struct {
	CreationFee  uint64 `json:"creation_fee"`
	ExecutionFee uint64 `json:"execution_fee"`
}

// SetFees updates the creation and execution fee amounts.
// (PUT /v1/admin/fees)
func (s *Server) SetFees(c echo.Context) error {
	admin, err := callerPrincipal(c)
	if err != nil {
		return err
	}

	var req setFeesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}

	if err := s.Engine.SetFees(admin, engine.Fees{CreationFee: req.CreationFee, ExecutionFee: req.ExecutionFee}); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func bindPrincipal(c echo.Context) (models.Principal, error) {
	var req principalRequest
	if err := c.Bind(&req); err != nil {
		return models.Principal{}, echo.NewHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	p, err := models.ParsePrincipal(req.Principal)
	if err != nil {
		return models.Principal{}, echo.NewHTTPError(http.StatusBadRequest, "invalid principal: "+err.Error())
	}
	return p, nil
}
