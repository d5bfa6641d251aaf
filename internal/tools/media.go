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

// mediaCall posts a JSON payload to the media service and decodes a flat
// key/value reply. Both media tools are thin boundaries over the same
// stateless request/response service.
func mediaCall(ctx context.Context, client *http.Client, url string, payload any) (map[string]any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("media request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("media service returned status %d: %s", resp.StatusCode, string(raw))
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return out, nil
}

// ImagineTool generates an image from a text description
type ImagineTool struct {
	baseURL    string
	httpClient *http.Client
}

func NewImagineTool(baseURL string) *ImagineTool {
	return &ImagineTool{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

func (t *ImagineTool) Spec() Spec {
	return Spec{
		Name:          "imagine",
		Description:   "Generates an image from a text description",
		Version:       "1.0.0",
		EstimatedTime: "10-30s",
		Params: []Param{
			{Name: "prompt", Type: ParamString, Description: "Image description", Required: true},
			{Name: "style", Type: ParamString, Description: "realistic, cartoon, abstract, oil-painting, watercolor"},
			{Name: "size", Type: ParamString, Description: "1024x1024, 1792x1024, 1024x1792"},
		},
	}
}

func (t *ImagineTool) Run(ctx context.Context, params map[string]any) (*Result, error) {
	out, err := mediaCall(ctx, t.httpClient, t.baseURL+"/api/v1/images", params)
	if err != nil {
		return nil, err
	}
	return &Result{Success: true, Data: out}, nil
}

// VisionTool analyzes an image or video at a URL
type VisionTool struct {
	baseURL    string
	httpClient *http.Client
}

func NewVisionTool(baseURL string) *VisionTool {
	return &VisionTool{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

func (t *VisionTool) Spec() Spec {
	return Spec{
		Name:          "vision",
		Description:   "Analyzes an image or video by URL",
		Version:       "1.0.0",
		EstimatedTime: "5-60s",
		Params: []Param{
			{Name: "url", Type: ParamString, Description: "Media URL to analyze", Required: true},
			{Name: "analysis_type", Type: ParamString, Description: "general, detailed, objects, text, emotions"},
		},
	}
}

func (t *VisionTool) Run(ctx context.Context, params map[string]any) (*Result, error) {
	out, err := mediaCall(ctx, t.httpClient, t.baseURL+"/api/v1/analyze", params)
	if err != nil {
		return nil, err
	}
	return &Result{Success: true, Data: out}, nil
}
