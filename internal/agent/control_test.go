package agent

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/assisthub/assist-gateway/internal/channel"
	"github.com/assisthub/assist-gateway/internal/confirm"
	"github.com/assisthub/assist-gateway/internal/state"
	"github.com/assisthub/assist-gateway/internal/tools"
	"github.com/assisthub/assist-gateway/internal/trace"
)

func newControlFixture(t *testing.T) (*Control, *confirm.Store, *restartTool) {
	t.Helper()
	logger := slog.Default()
	tool := &restartTool{}
	registry := tools.NewRegistry(logger)
	registry.Register(tools.NewEchoTool(), true)
	registry.Register(tool, true)
	confirms := confirm.NewStore(registry, time.Minute, logger)
	states := state.NewStore(logger)
	recorder := trace.NewRecorder(100, time.Hour, logger)
	return NewControl(registry, confirms, states, recorder, logger), confirms, tool
}

func adminMessage(content string) *channel.Message {
	m := testMessage(content)
	m.Role = channel.RoleAdmin
	return m
}

func TestControlCanHandleOnlySlashCommands(t *testing.T) {
	c, _, _ := newControlFixture(t)
	if !c.CanHandle(testMessage("/status")) {
		t.Error("Expected slash command accepted")
	}
	if !c.CanHandle(testMessage("  /help")) {
		t.Error("Expected leading whitespace tolerated")
	}
	if c.CanHandle(testMessage("hello")) {
		t.Error("Expected plain text rejected")
	}
}

func TestControlToolList(t *testing.T) {
	c, _, _ := newControlFixture(t)
	resp, err := c.Process(context.Background(), testMessage("/tools"))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if !strings.Contains(resp.Content, "echo") || !strings.Contains(resp.Content, "infra") {
		t.Errorf("Expected both tools listed, got %q", resp.Content)
	}
}

func TestControlStatus(t *testing.T) {
	c, _, _ := newControlFixture(t)
	resp, err := c.Process(context.Background(), testMessage("/status"))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if !strings.Contains(resp.Content, "tools: 2 registered") {
		t.Errorf("Expected tool counts in status, got %q", resp.Content)
	}
}

func TestControlToggleRequiresAdmin(t *testing.T) {
	c, _, _ := newControlFixture(t)

	resp, err := c.Process(context.Background(), testMessage("/disable echo"))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if !strings.Contains(resp.Content, "administrators") {
		t.Errorf("Expected admin refusal, got %q", resp.Content)
	}
	if !c.registry.IsEnabled("echo") {
		t.Error("Expected echo untouched by non-admin")
	}

	resp, err = c.Process(context.Background(), adminMessage("/disable echo"))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if c.registry.IsEnabled("echo") {
		t.Error("Expected echo disabled by admin")
	}
	if !strings.Contains(resp.Content, "disabled") {
		t.Errorf("Expected confirmation text, got %q", resp.Content)
	}
}

func TestControlConfirmCommand(t *testing.T) {
	c, confirms, tool := newControlFixture(t)
	id := confirms.Open("user-1", "infra", map[string]any{"command": "restart api"}, "", 0)

	// no argument targets the user's only pending session
	resp, err := c.Process(context.Background(), testMessage("/confirm"))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if !strings.HasPrefix(resp.Content, "Done.") {
		t.Errorf("Expected execution outcome, got %q", resp.Content)
	}
	if tool.runs.Load() != 1 {
		t.Errorf("Expected 1 tool run, got %d", tool.runs.Load())
	}
	if confirms.Get(id).Status != confirm.StatusConfirmed {
		t.Error("Expected session confirmed")
	}
}

func TestControlCancelCommand(t *testing.T) {
	c, confirms, tool := newControlFixture(t)
	id := confirms.Open("user-1", "infra", map[string]any{"command": "restart api"}, "", 0)

	resp, err := c.Process(context.Background(), testMessage("/cancel "+id))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if resp.Content != "Cancelled." {
		t.Errorf("Expected cancellation text, got %q", resp.Content)
	}
	if tool.runs.Load() != 0 {
		t.Error("Expected no tool run on cancel")
	}
}

func TestControlConfirmNothingPending(t *testing.T) {
	c, _, _ := newControlFixture(t)
	resp, err := c.Process(context.Background(), testMessage("/confirm"))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if !strings.Contains(resp.Content, "Nothing is awaiting") {
		t.Errorf("Expected nothing-pending notice, got %q", resp.Content)
	}
}

func TestControlConfirmAmbiguousListsSessions(t *testing.T) {
	c, confirms, _ := newControlFixture(t)
	confirms.Open("user-1", "infra", map[string]any{"command": "restart api"}, "", 0)
	confirms.Open("user-1", "infra", map[string]any{"command": "restart db"}, "", 0)

	resp, err := c.Process(context.Background(), testMessage("/confirm"))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if !strings.Contains(resp.Content, "pick one") {
		t.Errorf("Expected disambiguation prompt, got %q", resp.Content)
	}
}

func TestControlUnknownCommand(t *testing.T) {
	c, _, _ := newControlFixture(t)
	resp, err := c.Process(context.Background(), testMessage("/frobnicate"))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if !strings.Contains(resp.Content, "Unknown command") {
		t.Errorf("Expected unknown-command notice, got %q", resp.Content)
	}
}

func TestControlHelpHidesAdminCommands(t *testing.T) {
	c, _, _ := newControlFixture(t)

	resp, _ := c.Process(context.Background(), testMessage("/help"))
	if strings.Contains(resp.Content, "/enable") {
		t.Error("Expected admin commands hidden from regular users")
	}
	resp, _ = c.Process(context.Background(), adminMessage("/help"))
	if !strings.Contains(resp.Content, "/enable") {
		t.Error("Expected admin commands shown to admins")
	}
}
