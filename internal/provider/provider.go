package provider

import (
	"context"

	"github.com/assisthub/assist-gateway/internal/tools"
)

// Turn is one message of the conversation handed to a provider
type Turn struct {
	Role    string // system, user, assistant
	Content string
}

// ToolCall is a provider's directive to invoke a tool
type ToolCall struct {
	Name      string
	Arguments map[string]any
}

// Reply is the normalized provider response. Exactly one shape per reply:
// plain text, or text plus a tool directive. Downstream code never
// branches on provider identity.
type Reply struct {
	Provider   string
	Text       string
	ToolCall   *ToolCall
	Model      string
	TokensUsed int
}

// IsToolCall reports whether the reply carries a tool directive
func (r *Reply) IsToolCall() bool {
	return r.ToolCall != nil
}

// Client is one provider backend tier
type Client interface {
	// Name identifies the provider in replies and traces
	Name() string

	// SupportsTools reports whether the backend can emit tool directives
	SupportsTools() bool

	// Complete runs one completion over the ordered turns. catalog lists
	// the tools the provider may direct the caller to invoke; backends
	// without tool support ignore it.
	Complete(ctx context.Context, turns []Turn, catalog []tools.Spec) (*Reply, error)
}

// LastUserUtterance extracts the most recent user turn, for degraded
// backends that operate statelessly.
func LastUserUtterance(turns []Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == "user" {
			return turns[i].Content
		}
	}
	return ""
}
