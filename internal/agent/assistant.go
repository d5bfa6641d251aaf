package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/assisthub/assist-gateway/internal/channel"
	"github.com/assisthub/assist-gateway/internal/confirm"
	"github.com/assisthub/assist-gateway/internal/provider"
	"github.com/assisthub/assist-gateway/internal/state"
	"github.com/assisthub/assist-gateway/internal/tools"
	"github.com/assisthub/assist-gateway/internal/trace"
)

const systemPrompt = `You are a helpful assistant with access to tools.
Use the infra tool for infrastructure questions (apps, databases, deployments),
imagine for image generation, vision for media analysis, and echo for testing.
Answer briefly and to the point.`

// Assistant is the default conversational agent. It asks the provider
// cascade to decide between a plain reply and a tool invocation, gates
// confirmation-requiring tools behind a confirmation session, and phrases
// tool results back into natural language.
type Assistant struct {
	cascade  *provider.Cascade
	registry *tools.Registry
	confirms *confirm.Store
	states   *state.Store
	recorder *trace.Recorder
	logger   *slog.Logger
}

// NewAssistant wires the default agent
func NewAssistant(cascade *provider.Cascade, registry *tools.Registry, confirms *confirm.Store, states *state.Store, recorder *trace.Recorder, logger *slog.Logger) *Assistant {
	return &Assistant{
		cascade:  cascade,
		registry: registry,
		confirms: confirms,
		states:   states,
		recorder: recorder,
		logger:   logger,
	}
}

func (a *Assistant) Name() string  { return "assistant" }
func (a *Assistant) Priority() int { return 10 }

// CanHandle accepts any non-empty text message; the assistant is the
// chain's catch-all.
func (a *Assistant) CanHandle(msg *channel.Message) bool {
	return strings.TrimSpace(msg.Content) != ""
}

func (a *Assistant) Process(ctx context.Context, msg *channel.Message) (*channel.Response, error) {
	traceID := trace.FromContext(ctx)
	turns := []provider.Turn{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: msg.Content},
	}

	reply, err := a.cascade.Complete(ctx, turns, a.registry.EnabledSpecs(), a.traceHook(traceID))
	if err != nil {
		return nil, err
	}

	if !reply.IsToolCall() {
		return &channel.Response{
			Content:  reply.Text,
			Metadata: map[string]string{"provider": reply.Provider},
		}, nil
	}

	return a.handleToolCall(ctx, msg, turns, reply)
}

// handleToolCall either opens a confirmation session or executes the tool
// immediately and phrases the result.
func (a *Assistant) handleToolCall(ctx context.Context, msg *channel.Message, turns []provider.Turn, reply *provider.Reply) (*channel.Response, error) {
	traceID := trace.FromContext(ctx)
	call := reply.ToolCall

	if t, ok := a.registry.Get(call.Name); ok && t.Spec().RequiresConfirmation && a.registry.IsEnabled(call.Name) {
		sessionID := a.confirms.Open(msg.UserID, call.Name, call.Arguments, "", 0)
		sess := a.confirms.Get(sessionID)
		a.states.Set(msg.UserID, state.KindConfirmation, msg.Content,
			state.WithTool(call.Name),
			state.WithParameters(map[string]any{"confirmation_session_id": sessionID}))
		a.recorder.Event(traceID, trace.ComponentConfirmation, "confirmation_opened",
			map[string]any{"session_id": sessionID, "tool": call.Name}, 0, true, "")

		return &channel.Response{
			Content:  sess.Prompt,
			Metadata: map[string]string{"confirmation_session_id": sessionID},
		}, nil
	}

	start := time.Now()
	result := a.registry.Execute(ctx, call.Name, call.Arguments)
	a.recorder.Event(traceID, trace.ComponentTools, "tool_execution",
		map[string]any{"tool": call.Name}, time.Since(start), result.Success, result.Error)

	return a.phraseResult(ctx, turns, reply, result)
}

// phraseResult asks the cascade once more to turn the tool result into a
// natural-language reply.
func (a *Assistant) phraseResult(ctx context.Context, turns []provider.Turn, reply *provider.Reply, result *tools.Result) (*channel.Response, error) {
	traceID := trace.FromContext(ctx)

	resultJSON, err := json.Marshal(result)
	if err != nil {
		resultJSON = []byte(fmt.Sprintf(`{"success":%t}`, result.Success))
	}
	followup := append(turns,
		provider.Turn{Role: "assistant", Content: fmt.Sprintf("I invoked the %s tool.", reply.ToolCall.Name)},
		provider.Turn{Role: "user", Content: fmt.Sprintf(
			"The tool returned: %s\nSummarize this result for me in plain language.", resultJSON)},
	)

	// no tool catalog on the phrasing pass, one directive per turn
	phrased, err := a.cascade.Complete(ctx, followup, nil, a.traceHook(traceID))
	if err != nil {
		return nil, err
	}
	return &channel.Response{
		Content: phrased.Text,
		Metadata: map[string]string{
			"provider":  phrased.Provider,
			"tool_used": reply.ToolCall.Name,
		},
	}, nil
}

func (a *Assistant) traceHook(traceID string) provider.TraceHook {
	return func(name string, d time.Duration, success bool, errText string) {
		a.recorder.Event(traceID, trace.ComponentProvider, "completion",
			map[string]any{"provider": name}, d, success, errText)
	}
}
