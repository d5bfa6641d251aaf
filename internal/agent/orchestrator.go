package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/assisthub/assist-gateway/internal/channel"
	"github.com/assisthub/assist-gateway/internal/confirm"
	"github.com/assisthub/assist-gateway/internal/metrics"
	"github.com/assisthub/assist-gateway/internal/state"
	"github.com/assisthub/assist-gateway/internal/tools"
	"github.com/assisthub/assist-gateway/internal/trace"
)

const fallbackReply = "Sorry, something went wrong handling that. Please try again."

// Orchestrator drives one complete turn: open a trace, short-circuit
// pending confirmations, route through the agent chain, record the
// conversation and close the trace.
type Orchestrator struct {
	router   *Router
	confirms *confirm.Store
	states   *state.Store
	recorder *trace.Recorder
	logger   *slog.Logger
}

func NewOrchestrator(router *Router, confirms *confirm.Store, states *state.Store, recorder *trace.Recorder, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		router:   router,
		confirms: confirms,
		states:   states,
		recorder: recorder,
		logger:   logger,
	}
}

// HandleMessage processes one inbound message and always returns a
// sendable response. Terminal errors are absorbed into a fixed apology
// so the channel adapter never has to phrase failures itself.
func (o *Orchestrator) HandleMessage(ctx context.Context, msg *channel.Message) *channel.Response {
	traceID := o.recorder.Begin(msg.UserID, msg.ID)
	ctx = trace.NewContext(ctx, traceID)

	resp, err := o.dispatch(ctx, msg)

	status := trace.StatusCompleted
	outcome := "ok"
	if err != nil {
		status = trace.StatusFailed
		outcome = "error"
		o.logger.Error("turn failed", "user_id", msg.UserID, "channel", msg.Channel, "error", err)
		if resp == nil {
			resp = &channel.Response{Content: fallbackReply}
		}
	}
	// turn duration is observed by the recorder when the trace closes
	o.recorder.End(traceID, status, map[string]any{"channel": msg.Channel})

	metrics.TurnsTotal.WithLabelValues(outcome).Inc()
	return resp
}

func (o *Orchestrator) dispatch(ctx context.Context, msg *channel.Message) (*channel.Response, error) {
	if resp, handled := o.resolvePendingConfirmation(ctx, msg); handled {
		return resp, nil
	}

	agentName, resp, err := o.router.Route(ctx, msg)
	if err != nil {
		if errors.Is(err, ErrNoAgent) {
			// the router already produced the refusal text
			return resp, nil
		}
		return nil, err
	}
	o.logger.Debug("turn routed", "agent", agentName, "user_id", msg.UserID)
	return resp, nil
}

// resolvePendingConfirmation intercepts plain-text yes/no answers while
// the user's state is awaiting a confirmation. Anything else falls
// through to normal routing, slash commands included.
func (o *Orchestrator) resolvePendingConfirmation(ctx context.Context, msg *channel.Message) (*channel.Response, bool) {
	st := o.states.Get(msg.UserID)
	if st == nil || st.Kind != state.KindConfirmation {
		return nil, false
	}
	answer, ok := parseYesNo(msg.Content)
	if !ok {
		return nil, false
	}

	pending := o.confirms.Pending(msg.UserID)
	if len(pending) == 0 {
		o.states.Clear(msg.UserID)
		return &channel.Response{Content: "That confirmation has expired. Please repeat the request."}, true
	}
	sess := pending[len(pending)-1]

	traceID := trace.FromContext(ctx)
	start := time.Now()
	result, err := o.confirms.Resolve(ctx, sess.ID, answer, msg.UserID)
	o.recorder.Event(traceID, trace.ComponentConfirmation, "confirmation_resolved",
		map[string]any{"session_id": sess.ID, "confirmed": answer}, time.Since(start), err == nil, errText(err))

	o.states.Clear(msg.UserID)
	if err != nil {
		return &channel.Response{Content: resolveErrorText(err)}, true
	}
	if !answer {
		return &channel.Response{Content: "Cancelled."}, true
	}
	return &channel.Response{Content: renderResult(result)}, true
}

var (
	yesWords = map[string]bool{
		"yes": true, "y": true, "yeah": true, "yep": true, "sure": true,
		"ok": true, "okay": true, "confirm": true, "do it": true, "go ahead": true,
	}
	noWords = map[string]bool{
		"no": true, "n": true, "nope": true, "cancel": true, "stop": true,
		"abort": true, "don't": true, "nevermind": true, "never mind": true,
	}
)

// parseYesNo maps a short free-text reply onto a confirmation answer.
// Longer sentences are deliberately not interpreted.
func parseYesNo(s string) (answer, ok bool) {
	t := strings.ToLower(strings.TrimSpace(s))
	t = strings.TrimRight(t, ".!?")
	switch {
	case yesWords[t]:
		return true, true
	case noWords[t]:
		return false, true
	default:
		return false, false
	}
}

func resolveErrorText(err error) string {
	switch {
	case errors.Is(err, confirm.ErrSessionNotFound):
		return "I couldn't find that confirmation. It may have been swept already."
	case errors.Is(err, confirm.ErrUserMismatch):
		return "That confirmation belongs to someone else."
	case errors.Is(err, confirm.ErrAlreadyResolved):
		return "That action was already settled."
	case errors.Is(err, confirm.ErrExpired):
		return "That confirmation has expired. Please repeat the request."
	default:
		return fallbackReply
	}
}

// renderResult turns a tool result into channel text without another
// provider round trip. Confirmed actions report directly.
func renderResult(result *tools.Result) string {
	if result == nil {
		return "Done."
	}
	if !result.Success {
		return fmt.Sprintf("The action failed: %s", result.Error)
	}
	if len(result.Data) == 0 {
		return "Done."
	}
	data, err := json.MarshalIndent(result.Data, "", "  ")
	if err != nil {
		return "Done."
	}
	return fmt.Sprintf("Done. Result:\n%s", data)
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
