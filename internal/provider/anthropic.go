package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/assisthub/assist-gateway/internal/tools"
)

const anthropicVersion = "2023-06-01"

// AnthropicConfig holds Anthropic messages API client configuration
type AnthropicConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// AnthropicClient is an Anthropic messages API client with tool use
type AnthropicClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewAnthropicClient creates a new Anthropic client
func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	return &AnthropicClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

func (c *AnthropicClient) Name() string        { return "anthropic" }
func (c *AnthropicClient) SupportsTools() bool { return true }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
}

type anthropicContentBlock struct {
	Type  string         `json:"type"`
	Text  string         `json:"text,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`
}

type anthropicResponse struct {
	Model      string                  `json:"model"`
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Complete sends a messages request with the tool catalog attached.
// System turns map to the top-level system field, the rest to messages.
func (c *AnthropicClient) Complete(ctx context.Context, turns []Turn, catalog []tools.Spec) (*Reply, error) {
	req := anthropicRequest{Model: c.model, MaxTokens: 4096}
	for _, t := range turns {
		if t.Role == "system" {
			req.System = t.Content
			continue
		}
		req.Messages = append(req.Messages, anthropicMessage{Role: t.Role, Content: t.Content})
	}
	for _, spec := range catalog {
		req.Tools = append(req.Tools, anthropicTool{
			Name:        spec.Name,
			Description: spec.Description,
			InputSchema: schemaFor(spec),
		})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, classified(ClassUnexpected, fmt.Errorf("failed to marshal request: %w", err))
	}

	url := fmt.Sprintf("%s/v1/messages", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, classified(ClassUnexpected, fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classified(ClassTransport, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, statusError(resp.StatusCode, string(raw))
	}

	var out anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, classified(ClassUnexpected, fmt.Errorf("failed to decode response: %w", err))
	}
	return c.normalize(&out)
}

// normalize folds text and tool_use content blocks into the Reply union
func (c *AnthropicClient) normalize(out *anthropicResponse) (*Reply, error) {
	if len(out.Content) == 0 {
		return nil, classified(ClassUnexpected, fmt.Errorf("empty content in response"))
	}

	reply := &Reply{
		Provider:   c.Name(),
		Model:      out.Model,
		TokensUsed: out.Usage.InputTokens + out.Usage.OutputTokens,
	}
	for _, block := range out.Content {
		switch block.Type {
		case "text":
			if reply.Text != "" {
				reply.Text += "\n"
			}
			reply.Text += block.Text
		case "tool_use":
			if reply.ToolCall == nil {
				reply.ToolCall = &ToolCall{Name: block.Name, Arguments: block.Input}
			}
		}
	}
	return reply, nil
}
