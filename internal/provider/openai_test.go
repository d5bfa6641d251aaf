package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/assisthub/assist-gateway/internal/tools"
)

func echoSpec() tools.Spec {
	return tools.Spec{
		Name:        "echo",
		Description: "Returns the given message",
		Params: []tools.Param{
			{Name: "message", Type: tools.ParamString, Required: true},
			{Name: "uppercase", Type: tools.ParamBool},
		},
	}
}

func TestOpenAITextReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Expected bearer auth, got %q", got)
		}
		var req openAIRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 2 {
			t.Errorf("Expected 2 messages, got %d", len(req.Messages))
		}
		if len(req.Tools) != 1 || req.Tools[0].Function.Name != "echo" {
			t.Error("Expected echo in the tool list")
		}

		json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-test",
			"choices": []map[string]any{
				{"message": map[string]any{"content": "hello there"}, "finish_reason": "stop"},
			},
			"usage": map[string]any{"total_tokens": 12},
		})
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL, APIKey: "test-key", Model: "gpt-test"})
	if err != nil {
		t.Fatalf("NewOpenAIClient failed: %v", err)
	}

	turns := []Turn{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi"},
	}
	reply, err := c.Complete(context.Background(), turns, []tools.Spec{echoSpec()})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if reply.IsToolCall() {
		t.Fatal("Expected a text reply")
	}
	if reply.Text != "hello there" || reply.Provider != "openai" {
		t.Errorf("Unexpected reply %+v", reply)
	}
	if reply.TokensUsed != 12 {
		t.Errorf("Expected 12 tokens, got %d", reply.TokensUsed)
	}
}

func TestOpenAIToolCallReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-test",
			"choices": []map[string]any{
				{
					"message": map[string]any{
						"content": "",
						"tool_calls": []map[string]any{
							{"id": "call_1", "function": map[string]any{
								"name":      "echo",
								"arguments": `{"message":"hi","uppercase":true}`,
							}},
							{"id": "call_2", "function": map[string]any{
								"name":      "echo",
								"arguments": `{"message":"ignored"}`,
							}},
						},
					},
					"finish_reason": "tool_calls",
				},
			},
		})
	}))
	defer srv.Close()

	c, _ := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL, Model: "gpt-test"})
	reply, err := c.Complete(context.Background(), []Turn{{Role: "user", Content: "echo hi"}}, []tools.Spec{echoSpec()})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if !reply.IsToolCall() {
		t.Fatal("Expected a tool call reply")
	}
	// only the first directive is honored
	if reply.ToolCall.Name != "echo" || reply.ToolCall.Arguments["message"] != "hi" {
		t.Errorf("Unexpected tool call %+v", reply.ToolCall)
	}
	if reply.ToolCall.Arguments["uppercase"] != true {
		t.Error("Expected uppercase argument preserved")
	}
}

func TestOpenAIQuotaErrorClass(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, _ := NewOpenAIClient(OpenAIConfig{BaseURL: srv.URL})
	_, err := c.Complete(context.Background(), []Turn{{Role: "user", Content: "hi"}}, nil)
	if err == nil {
		t.Fatal("Expected error")
	}
	if got := Classify(err); got != ClassQuota {
		t.Errorf("Expected quota class, got %s", got)
	}
}

func TestSchemaFor(t *testing.T) {
	schema := schemaFor(echoSpec())
	props := schema["properties"].(map[string]any)
	if props["message"].(map[string]any)["type"] != "string" {
		t.Error("Expected message typed string")
	}
	if props["uppercase"].(map[string]any)["type"] != "boolean" {
		t.Error("Expected uppercase typed boolean")
	}
	required := schema["required"].([]string)
	if len(required) != 1 || required[0] != "message" {
		t.Errorf("Expected message required, got %v", required)
	}
}

func TestOllamaUsesLastUtteranceOnly(t *testing.T) {
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		gotPrompt, _ = req["prompt"].(string)
		json.NewEncoder(w).Encode(ollamaResponse{Model: "llama", Response: "plain answer", Done: true, EvalCount: 5})
	}))
	defer srv.Close()

	c, _ := NewOllamaClient(OllamaConfig{BaseURL: srv.URL, Model: "llama"})
	turns := []Turn{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "first question"},
		{Role: "assistant", Content: "first answer"},
		{Role: "user", Content: "second question"},
	}
	reply, err := c.Complete(context.Background(), turns, []tools.Spec{echoSpec()})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if gotPrompt != "second question" {
		t.Errorf("Expected only the last user utterance, got %q", gotPrompt)
	}
	if reply.IsToolCall() {
		t.Error("Expected text-only reply from the degraded tier")
	}
	if reply.Text != "plain answer" {
		t.Errorf("Unexpected text %q", reply.Text)
	}
}
