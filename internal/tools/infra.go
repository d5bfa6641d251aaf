package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// InfraTool runs a command against an external infrastructure-management
// surface over HTTP. Destructive by nature, so it requires confirmation.
type InfraTool struct {
	baseURL    string
	httpClient *http.Client
}

// NewInfraTool creates the infra command tool against the given base URL
func NewInfraTool(baseURL string) *InfraTool {
	return &InfraTool{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (t *InfraTool) Spec() Spec {
	return Spec{
		Name:                 "infra",
		Description:          "Executes an infrastructure command (apps, databases, deployments)",
		Version:              "1.2.0",
		RequiresConfirmation: true,
		EstimatedTime:        "10-60s",
		Params: []Param{
			{Name: "command", Type: ParamString, Description: "Command to run, e.g. 'list apps'", Required: true},
			{Name: "filters", Type: ParamObject, Description: "Optional command filters"},
		},
	}
}

type infraRequest struct {
	Command string         `json:"command"`
	Filters map[string]any `json:"filters,omitempty"`
}

type infraResponse struct {
	Success bool           `json:"success"`
	Output  map[string]any `json:"output,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func (t *InfraTool) Run(ctx context.Context, params map[string]any) (*Result, error) {
	command, _ := params["command"].(string)
	filters, _ := params["filters"].(map[string]any)

	body, err := json.Marshal(infraRequest{Command: command, Filters: filters})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := t.baseURL + "/api/v1/commands"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("command request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("command surface returned status %d: %s", resp.StatusCode, string(raw))
	}

	var out infraResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if !out.Success {
		return &Result{Success: false, Error: out.Error}, nil
	}
	return &Result{
		Success: true,
		Data: map[string]any{
			"command": command,
			"output":  out.Output,
		},
	}, nil
}
