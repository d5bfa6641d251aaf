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

// OllamaConfig holds local Ollama client configuration
type OllamaConfig struct {
	BaseURL string
	Model   string
}

// OllamaClient is the degraded last-resort backend: local, text-only, no
// tool calling. It completes against the latest user utterance only, not
// the full turn history.
type OllamaClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllamaClient creates a new Ollama client
func NewOllamaClient(cfg OllamaConfig) (*OllamaClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("ollama URL is required")
	}
	return &OllamaClient{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

func (c *OllamaClient) Name() string        { return "ollama" }
func (c *OllamaClient) SupportsTools() bool { return false }

type ollamaResponse struct {
	Model     string `json:"model"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
	EvalCount int    `json:"eval_count"`
}

// Complete generates a plain-text reply from the last user utterance. The
// tool catalog is ignored; this tier cannot emit directives.
func (c *OllamaClient) Complete(ctx context.Context, turns []Turn, _ []tools.Spec) (*Reply, error) {
	prompt := LastUserUtterance(turns)
	if prompt == "" {
		return nil, classified(ClassUnexpected, fmt.Errorf("no user utterance in turns"))
	}

	body, err := json.Marshal(map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
	})
	if err != nil {
		return nil, classified(ClassUnexpected, fmt.Errorf("failed to marshal request: %w", err))
	}

	url := fmt.Sprintf("%s/api/generate", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, classified(ClassUnexpected, fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classified(ClassTransport, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, statusError(resp.StatusCode, string(raw))
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, classified(ClassUnexpected, fmt.Errorf("failed to decode response: %w", err))
	}

	return &Reply{
		Provider:   c.Name(),
		Text:       out.Response,
		Model:      out.Model,
		TokensUsed: out.EvalCount,
	}, nil
}
