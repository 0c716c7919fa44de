package collaborators

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"encoding/json"
)

// HTTPOperatorRegistry queries a downstream operator-set registry over HTTP
// to size COORDINATION quorums.
type HTTPOperatorRegistry struct {
	baseURL string
	client  *http.Client
}

// NewHTTPOperatorRegistry constructs a registry client targeting baseURL.
func NewHTTPOperatorRegistry(baseURL string) *HTTPOperatorRegistry {
	return &HTTPOperatorRegistry{baseURL: baseURL, client: http.DefaultClient}
}

type operatorCountResponse struct {
	Count int `json:"count"`
}

// OperatorCount implements engine.OperatorRegistry.
func (r *HTTPOperatorRegistry) OperatorCount(ctx context.Context, operatorSetID string) (int, error) {
	u := r.baseURL + "/operator-sets/" + url.PathEscape(operatorSetID) + "/count"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("build operator count request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("operator count: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("operator count: status code %d", resp.StatusCode)
	}

	var out operatorCountResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode operator count response: %w", err)
	}
	return out.Count, nil
}
