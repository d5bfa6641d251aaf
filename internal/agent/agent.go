package agent

import (
	"context"

	"github.com/assisthub/assist-gateway/internal/channel"
)

// Agent is one candidate handler in the routing chain
type Agent interface {
	// Name identifies the agent in traces and status output
	Name() string

	// Priority orders candidates; higher is asked first
	Priority() int

	// CanHandle is a cheap, side-effect-free predicate over the message
	CanHandle(msg *channel.Message) bool

	// Process produces the reply for an accepted message
	Process(ctx context.Context, msg *channel.Message) (*channel.Response, error)
}
