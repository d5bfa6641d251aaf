package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/assisthub/assist-gateway/internal/channel"
	"github.com/assisthub/assist-gateway/internal/confirm"
	"github.com/assisthub/assist-gateway/internal/state"
	"github.com/assisthub/assist-gateway/internal/tools"
	"github.com/assisthub/assist-gateway/internal/trace"
)

// Control handles slash commands. It sits ahead of the assistant in the
// chain so that "/status" never reaches a provider.
type Control struct {
	registry *tools.Registry
	confirms *confirm.Store
	states   *state.Store
	recorder *trace.Recorder
	logger   *slog.Logger
}

func NewControl(registry *tools.Registry, confirms *confirm.Store, states *state.Store, recorder *trace.Recorder, logger *slog.Logger) *Control {
	return &Control{
		registry: registry,
		confirms: confirms,
		states:   states,
		recorder: recorder,
		logger:   logger,
	}
}

func (c *Control) Name() string  { return "control" }
func (c *Control) Priority() int { return 90 }

func (c *Control) CanHandle(msg *channel.Message) bool {
	return strings.HasPrefix(strings.TrimSpace(msg.Content), "/")
}

func (c *Control) Process(ctx context.Context, msg *channel.Message) (*channel.Response, error) {
	fields := strings.Fields(strings.TrimSpace(msg.Content))
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "/help", "/start":
		return text(helpText(msg.Role == channel.RoleAdmin)), nil
	case "/status":
		return c.status(), nil
	case "/tools":
		return c.toolList(), nil
	case "/confirm":
		return c.confirmCmd(ctx, msg, args, true)
	case "/cancel":
		return c.confirmCmd(ctx, msg, args, false)
	case "/clear":
		c.states.Clear(msg.UserID)
		return text("Conversation state cleared."), nil
	case "/enable", "/disable":
		return c.toggle(msg, cmd, args)
	default:
		return text(fmt.Sprintf("Unknown command %s. Try /help.", cmd)), nil
	}
}

func (c *Control) status() *channel.Response {
	m := c.recorder.Metrics()
	st := c.states.Stats()
	cf := c.confirms.Stats()

	rate := 0.0
	if m.TotalRequests > 0 {
		rate = float64(m.SuccessfulRequests) / float64(m.TotalRequests) * 100
	}
	var b strings.Builder
	b.WriteString("Gateway status\n")
	fmt.Fprintf(&b, "  traces: %d active, %d completed (%.0f%% success)\n",
		m.ActiveTraces, m.CompletedTraces, rate)
	fmt.Fprintf(&b, "  avg turn: %s\n", m.MeanDuration.Round(time.Millisecond))
	fmt.Fprintf(&b, "  states: %d active, %d users with history\n", st.Active, st.UsersWithHistory)
	fmt.Fprintf(&b, "  confirmations: %d pending\n", cf.ByStatus[string(confirm.StatusPending)])
	fmt.Fprintf(&b, "  tools: %d registered, %d enabled\n", len(c.registry.Catalog()), len(c.registry.EnabledSpecs()))
	return text(b.String())
}

func (c *Control) toolList() *channel.Response {
	var b strings.Builder
	b.WriteString("Available tools\n")
	for _, entry := range c.registry.Catalog() {
		mark := "on"
		if !entry.Enabled {
			mark = "off"
		}
		fmt.Fprintf(&b, "  %s v%s [%s]: %s\n", entry.Spec.Name, entry.Spec.Version, mark, entry.Spec.Description)
	}
	return text(b.String())
}

// confirmCmd resolves a pending session. With no argument, /confirm lists
// the user's pending sessions and /cancel targets the most recent one.
func (c *Control) confirmCmd(ctx context.Context, msg *channel.Message, args []string, confirmed bool) (*channel.Response, error) {
	pending := c.confirms.Pending(msg.UserID)

	var sessionID string
	switch {
	case len(args) > 0:
		sessionID = args[0]
	case len(pending) == 0:
		return text("Nothing is awaiting confirmation."), nil
	case confirmed && len(pending) > 1:
		var b strings.Builder
		b.WriteString("Several actions are pending, pick one:\n")
		for _, s := range pending {
			fmt.Fprintf(&b, "  /confirm %s (%s)\n", s.ID, s.Tool)
		}
		return text(b.String()), nil
	default:
		sessionID = pending[len(pending)-1].ID
	}

	result, err := c.confirms.Resolve(ctx, sessionID, confirmed, msg.UserID)
	if err != nil {
		return text(resolveErrorText(err)), nil
	}
	c.states.Clear(msg.UserID)
	if !confirmed {
		return text("Cancelled."), nil
	}
	return text(renderResult(result)), nil
}

func (c *Control) toggle(msg *channel.Message, cmd string, args []string) (*channel.Response, error) {
	if msg.Role != channel.RoleAdmin {
		return text("This command is restricted to administrators."), nil
	}
	if len(args) == 0 {
		return text(fmt.Sprintf("Usage: %s <tool>", cmd)), nil
	}
	name := args[0]
	var ok bool
	if cmd == "/enable" {
		ok = c.registry.Enable(name)
	} else {
		ok = c.registry.Disable(name)
	}
	if !ok {
		return text(fmt.Sprintf("No such tool: %s", name)), nil
	}
	c.logger.Info("tool toggled", "tool", name, "command", cmd, "admin", msg.UserID)
	return text(fmt.Sprintf("Tool %s is now %sd.", name, strings.TrimPrefix(cmd, "/"))), nil
}

func helpText(admin bool) string {
	var b strings.Builder
	b.WriteString("Commands\n")
	b.WriteString("  /status  gateway health and turn metrics\n")
	b.WriteString("  /tools   available tools\n")
	b.WriteString("  /confirm [id]  approve a pending action\n")
	b.WriteString("  /cancel [id]   reject a pending action\n")
	b.WriteString("  /clear   reset your conversation state\n")
	if admin {
		b.WriteString("  /enable <tool>, /disable <tool>  toggle a tool\n")
	}
	b.WriteString("Anything else goes to the assistant.")
	return b.String()
}

func text(s string) *channel.Response {
	return &channel.Response{Content: strings.TrimRight(s, "\n")}
}
