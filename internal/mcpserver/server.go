// Package mcpserver exposes the workflow engine's operations as MCP tools,
// mirroring the REST surface in internal/api for agent-driven callers.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/sgfractal/eigen-workflow/internal/engine"
	"github.com/sgfractal/eigen-workflow/pkg/models"
)

// Server wraps an engine.Engine with an MCP tool surface.
type Server struct {
	mcpServer *server.MCPServer
	engine    *engine.Engine
}

// NewServer constructs a Server and registers its tools.
func NewServer(eng *engine.Engine) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Eigen Workflow",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		engine: eng,
	}
	s.registerTools()
	return s
}

// GetMCPServer returns the underlying MCP server, e.g. for MountHTTPHandlers.
func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"register_workflow",
			mcp.WithDescription("Register a new workflow definition"),
			mcp.WithString("creator", mcp.Required(), mcp.Description("Hex-encoded principal registering the workflow")),
			mcp.WithString("name", mcp.Required(), mcp.Description("Workflow name")),
			mcp.WithString("phases", mcp.Required(), mcp.Description("JSON-encoded array of phase definitions")),
			mcp.WithNumber("fee_paid", mcp.Description("Fee paid for registration")),
		),
		s.handleRegisterWorkflow,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"execute_workflow",
			mcp.WithDescription("Start a new execution of a registered workflow"),
			mcp.WithString("initiator", mcp.Required(), mcp.Description("Hex-encoded principal starting the execution")),
			mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of the workflow to execute")),
			mcp.WithString("payload", mcp.Description("Initial payload; the string's raw bytes are used as-is, with no base64 decoding")),
			mcp.WithNumber("fee_paid", mcp.Description("Fee paid for execution")),
		),
		s.handleExecuteWorkflow,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"submit_coordination_response",
			mcp.WithDescription("Submit one operator's response to an active COORDINATION phase"),
			mcp.WithString("responder", mcp.Required(), mcp.Description("Hex-encoded responding principal")),
			mcp.WithString("execution_id", mcp.Required(), mcp.Description("Execution ID")),
			mcp.WithNumber("phase_index", mcp.Required(), mcp.Description("Phase index")),
			mcp.WithString("response", mcp.Description("Response payload; the string's raw bytes are used as-is, with no base64 decoding")),
		),
		s.handleSubmitCoordinationResponse,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"submit_monitoring_update",
			mcp.WithDescription("Submit one operator's update for an active CONTINUOUS phase"),
			mcp.WithString("operator", mcp.Required(), mcp.Description("Hex-encoded operator principal")),
			mcp.WithString("execution_id", mcp.Required(), mcp.Description("Execution ID")),
			mcp.WithNumber("phase_index", mcp.Required(), mcp.Description("Phase index")),
			mcp.WithString("data", mcp.Description("Update payload; the string's raw bytes are used as-is, with no base64 decoding")),
		),
		s.handleSubmitMonitoringUpdate,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"trigger_conditional_phase",
			mcp.WithDescription("Evaluate and, if satisfied, fire a CONDITIONAL phase's armed trigger"),
			mcp.WithString("source", mcp.Required(), mcp.Description("Hex-encoded principal firing the trigger")),
			mcp.WithString("execution_id", mcp.Required(), mcp.Description("Execution ID")),
			mcp.WithNumber("phase_index", mcp.Required(), mcp.Description("Phase index")),
			mcp.WithString("trigger_data", mcp.Description("Trigger data; the string's raw bytes are used as-is, with no base64 decoding")),
		),
		s.handleTriggerConditionalPhase,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"check_phase_timeout",
			mcp.WithDescription("Check whether an active phase's deadline has passed, timing it out if so"),
			mcp.WithString("execution_id", mcp.Required(), mcp.Description("Execution ID")),
			mcp.WithNumber("phase_index", mcp.Required(), mcp.Description("Phase index")),
		),
		s.handleCheckPhaseTimeout,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_workflow",
			mcp.WithDescription("Fetch a registered workflow definition"),
			mcp.WithString("workflow_id", mcp.Required(), mcp.Description("Workflow ID")),
		),
		s.handleGetWorkflow,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_execution",
			mcp.WithDescription("Fetch an execution's current state"),
			mcp.WithString("execution_id", mcp.Required(), mcp.Description("Execution ID")),
		),
		s.handleGetExecution,
	)
}

func stringArg(args map[string]any, name string) (string, bool) {
	v, ok := args[name].(string)
	return v, ok
}

func requestArgs(request mcp.CallToolRequest) (map[string]any, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid arguments type")
	}
	return args, nil
}

func (s *Server) handleRegisterWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := requestArgs(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	creatorHex, _ := stringArg(args, "creator")
	creator, err := models.ParsePrincipal(creatorHex)
	if err != nil {
		return mcp.NewToolResultError("invalid creator: " + err.Error()), nil
	}

	name, _ := stringArg(args, "name")
	phasesRaw, _ := stringArg(args, "phases")

	var phases []models.PhaseDefinition
	if err := json.Unmarshal([]byte(phasesRaw), &phases); err != nil {
		return mcp.NewToolResultError("invalid phases: " + err.Error()), nil
	}

	feePaid, _ := args["fee_paid"].(float64)

	id, err := s.engine.RegisterWorkflow(ctx, creator, name, phases, nil, uint64(feePaid))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(string(id)), nil
}

func (s *Server) handleExecuteWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := requestArgs(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	initiatorHex, _ := stringArg(args, "initiator")
	initiator, err := models.ParsePrincipal(initiatorHex)
	if err != nil {
		return mcp.NewToolResultError("invalid initiator: " + err.Error()), nil
	}

	workflowID, _ := stringArg(args, "workflow_id")
	payload, _ := stringArg(args, "payload")
	feePaid, _ := args["fee_paid"].(float64)

	id, err := s.engine.ExecuteWorkflow(ctx, models.ID(workflowID), initiator, []byte(payload), uint64(feePaid))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(string(id)), nil
}

func (s *Server) handleSubmitCoordinationResponse(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := requestArgs(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	responderHex, _ := stringArg(args, "responder")
	responder, err := models.ParsePrincipal(responderHex)
	if err != nil {
		return mcp.NewToolResultError("invalid responder: " + err.Error()), nil
	}

	executionID, _ := stringArg(args, "execution_id")
	phaseIndex, _ := args["phase_index"].(float64)
	response, _ := stringArg(args, "response")

	if err := s.engine.SubmitCoordinationResponse(ctx, models.ID(executionID), int(phaseIndex), responder, []byte(response)); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("accepted"), nil
}

func (s *Server) handleSubmitMonitoringUpdate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := requestArgs(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	operatorHex, _ := stringArg(args, "operator")
	operator, err := models.ParsePrincipal(operatorHex)
	if err != nil {
		return mcp.NewToolResultError("invalid operator: " + err.Error()), nil
	}

	executionID, _ := stringArg(args, "execution_id")
	phaseIndex, _ := args["phase_index"].(float64)
	data, _ := stringArg(args, "data")

	if err := s.engine.SubmitMonitoringUpdate(ctx, models.ID(executionID), int(phaseIndex), operator, []byte(data)); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("accepted"), nil
}

func (s *Server) handleTriggerConditionalPhase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := requestArgs(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	sourceHex, _ := stringArg(args, "source")
	source, err := models.ParsePrincipal(sourceHex)
	if err != nil {
		return mcp.NewToolResultError("invalid source: " + err.Error()), nil
	}

	executionID, _ := stringArg(args, "execution_id")
	phaseIndex, _ := args["phase_index"].(float64)
	triggerData, _ := stringArg(args, "trigger_data")

	if err := s.engine.TriggerConditionalPhase(ctx, models.ID(executionID), int(phaseIndex), source, []byte(triggerData)); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("triggered"), nil
}

func (s *Server) handleCheckPhaseTimeout(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := requestArgs(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	executionID, _ := stringArg(args, "execution_id")
	phaseIndex, _ := args["phase_index"].(float64)

	if err := s.engine.CheckPhaseTimeout(ctx, models.ID(executionID), int(phaseIndex)); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("checked"), nil
}

func (s *Server) handleGetWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := requestArgs(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	workflowID, _ := stringArg(args, "workflow_id")
	wf, err := s.engine.GetWorkflow(models.ID(workflowID))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	body, err := json.Marshal(wf)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}

func (s *Server) handleGetExecution(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := requestArgs(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	executionID, _ := stringArg(args, "execution_id")
	exec, err := s.engine.GetExecution(models.ID(executionID))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	body, err := json.Marshal(exec)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}

// MountHTTPHandlers wires the MCP server's SSE transport onto mux, the way
// the rest of this codebase bridges an MCP server into an HTTP mux.
func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
