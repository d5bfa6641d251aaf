package tools

import (
	"context"
	"strings"
)

// EchoTool returns its input, optionally uppercased. Used to exercise the
// dispatch path end to end.
type EchoTool struct{}

func NewEchoTool() *EchoTool {
	return &EchoTool{}
}

func (e *EchoTool) Spec() Spec {
	return Spec{
		Name:        "echo",
		Description: "Returns the given message, optionally uppercased",
		Version:     "1.0.0",
		Params: []Param{
			{Name: "message", Type: ParamString, Description: "Message to echo", Required: true},
			{Name: "uppercase", Type: ParamBool, Description: "Return in upper case"},
		},
	}
}

func (e *EchoTool) Run(ctx context.Context, params map[string]any) (*Result, error) {
	message, _ := params["message"].(string)
	uppercase, _ := params["uppercase"].(bool)

	out := message
	if uppercase {
		out = strings.ToUpper(message)
	}

	return &Result{
		Success: true,
		Data: map[string]any{
			"echo":     out,
			"original": message,
		},
		Metadata: map[string]any{
			"message_length": len(message),
		},
	}, nil
}
