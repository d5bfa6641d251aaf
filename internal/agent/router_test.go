package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/assisthub/assist-gateway/internal/channel"
	"github.com/assisthub/assist-gateway/internal/trace"
)

// stubAgent is a scripted chain member.
type stubAgent struct {
	name      string
	priority  int
	accepts   func(*channel.Message) bool
	reply     string
	err       error
	processed int
}

func (s *stubAgent) Name() string  { return s.name }
func (s *stubAgent) Priority() int { return s.priority }

func (s *stubAgent) CanHandle(msg *channel.Message) bool {
	if s.accepts == nil {
		return true
	}
	return s.accepts(msg)
}

func (s *stubAgent) Process(ctx context.Context, msg *channel.Message) (*channel.Response, error) {
	s.processed++
	if s.err != nil {
		return nil, s.err
	}
	return &channel.Response{Content: s.reply}, nil
}

func testMessage(content string) *channel.Message {
	return &channel.Message{
		ID:        "msg-1",
		Channel:   "test",
		UserID:    "user-1",
		Role:      channel.RoleUser,
		Content:   content,
		Timestamp: time.Now().Unix(),
	}
}

func testRecorder() *trace.Recorder {
	return trace.NewRecorder(100, time.Hour, slog.Default())
}

func TestRouteHighestPriorityWins(t *testing.T) {
	low := &stubAgent{name: "assistant", priority: 10, reply: "from assistant"}
	high := &stubAgent{
		name:     "control",
		priority: 90,
		accepts:  func(m *channel.Message) bool { return strings.HasPrefix(m.Content, "/") },
		reply:    "from control",
	}
	// registration order must not matter
	r := NewRouter(testRecorder(), slog.Default(), low, high)

	name, resp, err := r.Route(context.Background(), testMessage("/status"))
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if name != "control" || resp.Content != "from control" {
		t.Errorf("Expected control to handle slash command, got %s: %q", name, resp.Content)
	}
	if low.processed != 0 {
		t.Error("Expected assistant untouched")
	}

	name, _, err = r.Route(context.Background(), testMessage("hello"))
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if name != "assistant" {
		t.Errorf("Expected assistant for plain text, got %s", name)
	}
}

func TestRouteNoAcceptor(t *testing.T) {
	picky := &stubAgent{name: "picky", priority: 50, accepts: func(*channel.Message) bool { return false }}
	r := NewRouter(testRecorder(), slog.Default(), picky)

	name, resp, err := r.Route(context.Background(), testMessage("anything"))
	if !errors.Is(err, ErrNoAgent) {
		t.Fatalf("Expected ErrNoAgent, got %v", err)
	}
	if name != "" {
		t.Errorf("Expected no agent name, got %s", name)
	}
	if resp == nil || resp.Content != cannotHandleReply {
		t.Error("Expected the fixed refusal reply")
	}
}

func TestRoutePanickingPredicateSkipped(t *testing.T) {
	broken := &stubAgent{
		name:     "broken",
		priority: 90,
		accepts:  func(*channel.Message) bool { panic("bad predicate") },
	}
	fallback := &stubAgent{name: "assistant", priority: 10, reply: "still here"}
	r := NewRouter(testRecorder(), slog.Default(), broken, fallback)

	name, resp, err := r.Route(context.Background(), testMessage("hello"))
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if name != "assistant" || resp.Content != "still here" {
		t.Errorf("Expected fallback agent, got %s: %q", name, resp.Content)
	}
	if broken.processed != 0 {
		t.Error("Expected broken agent never processed")
	}
}

func TestRouteAgentErrorIsTerminal(t *testing.T) {
	failing := &stubAgent{name: "failing", priority: 90, err: errors.New("provider meltdown")}
	fallback := &stubAgent{name: "assistant", priority: 10, reply: "unused"}
	r := NewRouter(testRecorder(), slog.Default(), failing, fallback)

	name, _, err := r.Route(context.Background(), testMessage("hello"))
	if err == nil {
		t.Fatal("Expected error from delegated agent")
	}
	if name != "failing" {
		t.Errorf("Expected failing agent named, got %s", name)
	}
	// processing errors do not fall through to lower-priority agents
	if fallback.processed != 0 {
		t.Error("Expected no fallback after processing error")
	}
}

func TestRouteRecordsTraceEvents(t *testing.T) {
	rec := testRecorder()
	a := &stubAgent{name: "assistant", priority: 10, reply: "ok"}
	r := NewRouter(rec, slog.Default(), a)

	traceID := rec.Begin("user-1", "")
	ctx := trace.NewContext(context.Background(), traceID)
	if _, _, err := r.Route(ctx, testMessage("hello")); err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	rec.End(traceID, trace.StatusCompleted, nil)

	steps := map[string]bool{}
	for _, ev := range rec.Get(traceID).Events {
		steps[ev.Step] = true
	}
	for _, want := range []string{"candidate_check", "agent_selected", "agent_processing"} {
		if !steps[want] {
			t.Errorf("Expected %s event in trace", want)
		}
	}
}

func TestAgentsSortedByPriority(t *testing.T) {
	a := &stubAgent{name: "a", priority: 10}
	b := &stubAgent{name: "b", priority: 90}
	c := &stubAgent{name: "c", priority: 50}
	r := NewRouter(testRecorder(), slog.Default(), a, b, c)

	got := r.Agents()
	want := []string{"b", "c", "a"}
	for i, agent := range got {
		if agent.Name() != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i], agent.Name())
		}
	}
}
