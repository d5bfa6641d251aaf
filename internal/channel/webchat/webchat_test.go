package webchat

import (
	"log/slog"
	"testing"

	"github.com/assisthub/assist-gateway/internal/channel"
)

func TestName(t *testing.T) {
	adapter := New(true, slog.Default())
	if adapter.Name() != "webchat" {
		t.Errorf("expected name webchat, got %s", adapter.Name())
	}
}

func TestDisabled(t *testing.T) {
	adapter := New(false, slog.Default())
	if adapter.IsEnabled() {
		t.Error("expected adapter disabled")
	}
}

func TestStopLeavesIncomingOpen(t *testing.T) {
	adapter := New(true, slog.Default())
	if err := adapter.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := adapter.Stop(); err != nil {
		t.Fatalf("Repeated Stop failed: %v", err)
	}

	// a handler goroutine mid-send must not hit a closed channel
	adapter.incoming <- &channel.Message{Channel: "webchat", UserID: "u1", Content: "late"}
	msg := <-adapter.Incoming()
	if msg.Content != "late" {
		t.Errorf("Expected late message delivered, got %q", msg.Content)
	}
}
