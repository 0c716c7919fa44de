// Package collaborators provides HTTP- and Postgres-backed implementations
// of the engine's external collaborator interfaces (engine.TaskMailbox,
// engine.OperatorRegistry, engine.FeeSink). The core package only depends
// on these interfaces; production wiring lives here so the core stays a
// pure library.
package collaborators

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sgfractal/eigen-workflow/internal/engine"
)

// HTTPTaskMailbox dispatches IMMEDIATE-phase tasks to a downstream AVS task
// mailbox service over HTTP.
type HTTPTaskMailbox struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTaskMailbox constructs a mailbox client targeting baseURL.
func NewHTTPTaskMailbox(baseURL string) *HTTPTaskMailbox {
	return &HTTPTaskMailbox{baseURL: baseURL, client: http.DefaultClient}
}

type createTaskRequest struct {
	RefundCollector string `json:"refund_collector"`
	AVSFee          uint64 `json:"avs_fee"`
	OperatorSetID   string `json:"operator_set_id"`
	Payload         []byte `json:"payload"`
}

type createTaskResponse struct {
	TaskHandle []byte `json:"task_handle"`
}

// CreateTask implements engine.TaskMailbox.
func (c *HTTPTaskMailbox) CreateTask(ctx context.Context, req engine.TaskRequest) (engine.TaskHandle, error) {
	body, err := json.Marshal(createTaskRequest{
		RefundCollector: req.RefundCollector.String(),
		AVSFee:          req.AVSFee,
		OperatorSetID:   req.OperatorSetID,
		Payload:         req.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal create task request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tasks", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build create task request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("create task: status code %d", resp.StatusCode)
	}

	var out createTaskResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode create task response: %w", err)
	}
	return out.TaskHandle, nil
}
