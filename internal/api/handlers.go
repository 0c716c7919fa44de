// Package api contains the HTTP handlers for the workflow orchestration
// service.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/oapi-codegen/runtime"

	"github.com/sgfractal/eigen-workflow/internal/auth"
	"github.com/sgfractal/eigen-workflow/internal/engine"
	"github.com/sgfractal/eigen-workflow/pkg/models"
)

// defaultPageSize and maxPageSize bound the limit/offset pagination params
// list endpoints accept.
const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// pageParams binds the "limit" and "offset" query parameters the way a
// generated oapi-codegen server would, using the same runtime helper rather
// than hand-rolled strconv parsing for every list endpoint.
func pageParams(c echo.Context) (limit, offset int, err error) {
	limit = defaultPageSize
	offset = 0
	q := c.Request().URL.Query()

	if q.Has("limit") {
		if err := runtime.BindQueryParameter("form", false, false, "limit", q, &limit); err != nil {
			return 0, 0, echo.NewHTTPError(http.StatusBadRequest, "invalid limit: "+err.Error())
		}
	}
	if q.Has("offset") {
		if err := runtime.BindQueryParameter("form", false, false, "offset", q, &offset); err != nil {
			return 0, 0, echo.NewHTTPError(http.StatusBadRequest, "invalid offset: "+err.Error())
		}
	}
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset, nil
}

// paginate slices items to [offset, offset+limit), clamped to its bounds.
func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// Server holds the dependencies for the API server.
type Server struct {
	Engine *engine.Engine
}

// NewServer creates a new Server.
func NewServer(eng *engine.Engine) *Server {
	return &Server{Engine: eng}
}

// RegisterRoutes mounts every handler onto e under /v1.
func (s *Server) RegisterRoutes(e *echo.Echo, requireAuth echo.MiddlewareFunc) {
	v1 := e.Group("/v1")
	v1.Use(requireAuth)

	v1.POST("/workflows", s.RegisterWorkflow)
	v1.GET("/workflows", s.ListWorkflows)
	v1.GET("/workflows/:workflowID", s.GetWorkflow)
	v1.POST("/workflows/:workflowID/executions", s.ExecuteWorkflow)
	v1.POST("/workflows/:workflowID/deactivate", s.DeactivateWorkflow)

	v1.GET("/executions", s.ListExecutions)
	v1.GET("/executions/:executionID", s.GetExecution)
	v1.GET("/executions/:executionID/phases/:phaseIndex", s.GetPhaseStatus)
	v1.POST("/executions/:executionID/phases/:phaseIndex/coordination", s.SubmitCoordinationResponse)
	v1.POST("/executions/:executionID/phases/:phaseIndex/monitoring", s.SubmitMonitoringUpdate)
	v1.POST("/executions/:executionID/phases/:phaseIndex/trigger", s.TriggerConditionalPhase)
	v1.POST("/executions/:executionID/phases/:phaseIndex/timeout-check", s.CheckPhaseTimeout)

	v1.POST("/admin/creators", s.AuthorizeWorkflowCreator)
	v1.POST("/admin/trigger-sources", s.AuthorizeTriggerSource)
	v1.PUT("/admin/fees", s.SetFees)
}

func callerPrincipal(c echo.Context) (models.Principal, error) {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return models.Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "no principal in request context")
	}
	return p, nil
}

func pathPrincipal(c echo.Context, param string) (models.Principal, error) {
	p, err := models.ParsePrincipal(c.Param(param))
	if err != nil {
		return models.Principal{}, echo.NewHTTPError(http.StatusBadRequest, "invalid "+param+": "+err.Error())
	}
	return p, nil
}

func pathPhaseIndex(c echo.Context) (int, error) {
	idx, err := strconv.Atoi(c.Param("phaseIndex"))
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid phaseIndex: "+err.Error())
	}
	return idx, nil
}

// httpError maps an engine domain error to the HTTP status code that best
// fits its category (spec.md §7).
func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, engine.ErrUnauthorized),
		errors.Is(err, engine.ErrNotWorkflowCreator),
		errors.Is(err, engine.ErrNotAuthorizedTrigger):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())

	case errors.Is(err, engine.ErrWorkflowNotFound),
		errors.Is(err, engine.ErrExecutionNotFound),
		errors.Is(err, engine.ErrPhaseIndexOutOfRange):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())

	case errors.Is(err, engine.ErrInsufficientFee),
		errors.Is(err, engine.ErrEmptyName),
		errors.Is(err, engine.ErrPhaseCountOutOfRange),
		errors.Is(err, engine.ErrInvalidDependency),
		errors.Is(err, engine.ErrInvalidTimeout),
		errors.Is(err, engine.ErrInvalidConsensusThreshold),
		errors.Is(err, engine.ErrTooManyDependencies),
		errors.Is(err, engine.ErrInvalidTriggerCondition),
		errors.Is(err, engine.ErrWorkflowInactive):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())

	case errors.Is(err, engine.ErrPhaseNotActive),
		errors.Is(err, engine.ErrDuplicateResponder),
		errors.Is(err, engine.ErrQuorumAlreadyMet),
		errors.Is(err, engine.ErrUpdateTooFrequent),
		errors.Is(err, engine.ErrAlreadyTriggered),
		errors.Is(err, engine.ErrNoTimeoutSet),
		errors.Is(err, engine.ErrNotYetTimedOut),
		errors.Is(err, engine.ErrExecutionComplete):
		return echo.NewHTTPError(http.StatusConflict, err.Error())

	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
