package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/assisthub/assist-gateway/internal/channel"
	"github.com/assisthub/assist-gateway/internal/trace"
)

// ErrNoAgent is raised when no candidate accepts the message
var ErrNoAgent = errors.New("no suitable agent")

const cannotHandleReply = "Sorry, I can't handle that request."

// Router asks each candidate agent, highest priority first, whether it can
// handle the message and delegates to the first that accepts. A failing
// candidate never aborts the route; the chain just moves on.
type Router struct {
	agents   []Agent
	recorder *trace.Recorder
	logger   *slog.Logger
}

// NewRouter builds the chain. Agents are sorted descending by priority;
// ties keep registration order.
func NewRouter(recorder *trace.Recorder, logger *slog.Logger, agents ...Agent) *Router {
	sorted := make([]Agent, len(agents))
	copy(sorted, agents)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() > sorted[j].Priority()
	})
	return &Router{agents: sorted, recorder: recorder, logger: logger}
}

// Agents lists the chain in routing order
func (r *Router) Agents() []Agent {
	out := make([]Agent, len(r.agents))
	copy(out, r.agents)
	return out
}

// Route finds and runs the first accepting agent. The returned error is
// non-nil only for terminal outcomes: ErrNoAgent, or an error the
// delegated agent could not recover from.
func (r *Router) Route(ctx context.Context, msg *channel.Message) (string, *channel.Response, error) {
	traceID := trace.FromContext(ctx)

	for _, a := range r.agents {
		accepted, checkDur := r.check(traceID, a, msg)
		if !accepted {
			continue
		}
		r.recorder.Event(traceID, trace.ComponentRouter, "agent_selected",
			map[string]any{"agent": a.Name()}, checkDur, true, "")

		start := time.Now()
		resp, err := a.Process(ctx, msg)
		elapsed := time.Since(start)
		if err != nil {
			r.recorder.Event(traceID, trace.ComponentAgent, "agent_processing",
				map[string]any{"agent": a.Name()}, elapsed, false, err.Error())
			return a.Name(), nil, err
		}
		r.recorder.Event(traceID, trace.ComponentAgent, "agent_processing",
			map[string]any{"agent": a.Name()}, elapsed, true, "")
		return a.Name(), resp, nil
	}

	r.recorder.Event(traceID, trace.ComponentRouter, "agent_routing",
		nil, 0, false, ErrNoAgent.Error())
	r.logger.Warn("no agent accepted message", "user_id", msg.UserID)
	return "", &channel.Response{Content: cannotHandleReply}, ErrNoAgent
}

// check runs one candidate predicate inside a recover boundary and records
// the outcome as a trace event.
func (r *Router) check(traceID string, a Agent, msg *channel.Message) (accepted bool, d time.Duration) {
	start := time.Now()
	defer func() {
		d = time.Since(start)
		if rec := recover(); rec != nil {
			accepted = false
			errText := fmt.Sprintf("predicate panicked: %v", rec)
			r.logger.Error("agent predicate failed", "agent", a.Name(), "panic", rec)
			r.recorder.Event(traceID, trace.ComponentRouter, "candidate_check",
				map[string]any{"agent": a.Name()}, d, false, errText)
		}
	}()

	accepted = a.CanHandle(msg)
	r.recorder.Event(traceID, trace.ComponentRouter, "candidate_check",
		map[string]any{"agent": a.Name(), "accepted": accepted}, time.Since(start), true, "")
	return accepted, time.Since(start)
}
