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

// OpenAIConfig holds OpenAI-compatible client configuration
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// OpenAIClient is an OpenAI-compatible chat completion client with
// function calling
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAIClient creates a new OpenAI-compatible client
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	return &OpenAIClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

func (c *OpenAIClient) Name() string        { return "openai" }
func (c *OpenAIClient) SupportsTools() bool { return true }

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type openAITool struct {
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIRequest struct {
	Model      string          `json:"model"`
	Messages   []openAIMessage `json:"messages"`
	Tools      []openAITool    `json:"tools,omitempty"`
	ToolChoice string          `json:"tool_choice,omitempty"`
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content   string           `json:"content"`
			ToolCalls []openAIToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete sends a chat completion request with the tool catalog attached
func (c *OpenAIClient) Complete(ctx context.Context, turns []Turn, catalog []tools.Spec) (*Reply, error) {
	req := openAIRequest{Model: c.model}
	for _, t := range turns {
		req.Messages = append(req.Messages, openAIMessage{Role: t.Role, Content: t.Content})
	}
	if len(catalog) > 0 {
		req.ToolChoice = "auto"
		for _, spec := range catalog {
			req.Tools = append(req.Tools, openAITool{
				Type: "function",
				Function: openAIFunction{
					Name:        spec.Name,
					Description: spec.Description,
					Parameters:  schemaFor(spec),
				},
			})
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, classified(ClassUnexpected, fmt.Errorf("failed to marshal request: %w", err))
	}

	url := fmt.Sprintf("%s/chat/completions", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, classified(ClassUnexpected, fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classified(ClassTransport, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, statusError(resp.StatusCode, string(raw))
	}

	var out openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, classified(ClassUnexpected, fmt.Errorf("failed to decode response: %w", err))
	}
	return c.normalize(&out)
}

// normalize converts the native reply shape into the closed Reply union
func (c *OpenAIClient) normalize(out *openAIResponse) (*Reply, error) {
	if len(out.Choices) == 0 {
		return nil, classified(ClassUnexpected, fmt.Errorf("no choices in response"))
	}
	choice := out.Choices[0]

	reply := &Reply{
		Provider:   c.Name(),
		Text:       choice.Message.Content,
		Model:      out.Model,
		TokensUsed: out.Usage.TotalTokens,
	}

	if len(choice.Message.ToolCalls) > 0 {
		// only the first directive is honored per turn
		tc := choice.Message.ToolCalls[0]
		args := make(map[string]any)
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, classified(ClassUnexpected, fmt.Errorf("malformed tool arguments: %w", err))
			}
		}
		reply.ToolCall = &ToolCall{Name: tc.Function.Name, Arguments: args}
	}
	return reply, nil
}

// schemaFor renders a tool spec as a JSON Schema object for the API
func schemaFor(spec tools.Spec) map[string]any {
	props := make(map[string]any)
	var required []string
	for _, p := range spec.Params {
		jsonType := "string"
		switch p.Type {
		case tools.ParamBool:
			jsonType = "boolean"
		case tools.ParamNumber:
			jsonType = "number"
		case tools.ParamObject:
			jsonType = "object"
		}
		props[p.Name] = map[string]any{
			"type":        jsonType,
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
