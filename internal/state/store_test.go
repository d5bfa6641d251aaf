package state

import (
	"fmt"
	"log/slog"
	"testing"
	"time"
)

func testStore() *Store {
	return NewStore(slog.Default())
}

func TestSetAndGet(t *testing.T) {
	st := testStore()

	s := st.Set("user-1", KindConfirmation, "restart the api service",
		WithTool("infra"),
		WithParameters(map[string]any{"action": "restart"}))
	if s.ExpiresAt.Sub(s.CreatedAt) != 5*time.Minute {
		t.Errorf("Expected confirmation default ttl of 5m, got %s", s.ExpiresAt.Sub(s.CreatedAt))
	}

	got := st.Get("user-1")
	if got == nil {
		t.Fatal("Expected active state")
	}
	if got.Kind != KindConfirmation {
		t.Errorf("Expected confirmation kind, got %s", got.Kind)
	}
	if got.ToolToExecute != "infra" {
		t.Errorf("Expected bound tool infra, got %s", got.ToolToExecute)
	}
	if st.Get("user-2") != nil {
		t.Error("Expected nil for unknown user")
	}
}

func TestKindDefaultTTLs(t *testing.T) {
	tests := []struct {
		kind Kind
		want time.Duration
	}{
		{KindNormal, time.Minute},
		{KindConfirmation, 5 * time.Minute},
		{KindClarification, 3 * time.Minute},
		{KindMultiStep, 10 * time.Minute},
	}
	for _, tt := range tests {
		if got := tt.kind.DefaultTTL(); got != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.kind, tt.want, got)
		}
	}
}

func TestLazyExpiry(t *testing.T) {
	st := testStore()
	st.Set("user-1", KindNormal, "hello", WithTTL(10*time.Millisecond))

	time.Sleep(20 * time.Millisecond)
	if st.Get("user-1") != nil {
		t.Fatal("Expected expired state to read as nil")
	}

	// expired state lands in history
	h := st.History("user-1", 0)
	if len(h) != 1 {
		t.Fatalf("Expected 1 archived state, got %d", len(h))
	}
	if h[0].OriginalMessage != "hello" {
		t.Errorf("Expected archived message hello, got %q", h[0].OriginalMessage)
	}
}

func TestSetArchivesPriorState(t *testing.T) {
	st := testStore()
	var archived []*State
	st.OnArchive = func(s *State) { archived = append(archived, s) }

	st.Set("user-1", KindNormal, "first")
	st.Set("user-1", KindClarification, "second")

	if len(archived) != 1 {
		t.Fatalf("Expected 1 archive callback, got %d", len(archived))
	}
	if archived[0].OriginalMessage != "first" {
		t.Errorf("Expected first state archived, got %q", archived[0].OriginalMessage)
	}
	if got := st.Get("user-1"); got == nil || got.Kind != KindClarification {
		t.Error("Expected second state to be active")
	}
}

func TestHistoryRingCap(t *testing.T) {
	st := testStore()
	for i := 0; i < historyCap+5; i++ {
		st.Set("user-1", KindNormal, fmt.Sprintf("msg-%d", i))
	}

	h := st.History("user-1", 0)
	if len(h) != historyCap {
		t.Fatalf("Expected history capped at %d, got %d", historyCap, len(h))
	}
	// oldest entries dropped, newest archived entry last
	if h[0].OriginalMessage != "msg-4" {
		t.Errorf("Expected oldest retained msg-4, got %q", h[0].OriginalMessage)
	}
	if h[len(h)-1].OriginalMessage != fmt.Sprintf("msg-%d", historyCap+3) {
		t.Errorf("Unexpected newest archived entry %q", h[len(h)-1].OriginalMessage)
	}
}

func TestClear(t *testing.T) {
	st := testStore()
	st.Set("user-1", KindNormal, "hello")

	if !st.Clear("user-1") {
		t.Fatal("Expected Clear to report a removed state")
	}
	if st.Get("user-1") != nil {
		t.Error("Expected no active state after Clear")
	}
	if st.Clear("user-1") {
		t.Error("Expected second Clear to report nothing removed")
	}
	if len(st.History("user-1", 0)) != 1 {
		t.Error("Expected cleared state in history")
	}
}

func TestSweep(t *testing.T) {
	st := testStore()
	st.Set("user-1", KindNormal, "stale", WithTTL(5*time.Millisecond))
	st.Set("user-2", KindNormal, "fresh")

	time.Sleep(15 * time.Millisecond)
	if swept := st.Sweep(); swept != 1 {
		t.Fatalf("Expected 1 swept state, got %d", swept)
	}
	if st.Get("user-1") != nil {
		t.Error("Expected stale state swept")
	}
	if st.Get("user-2") == nil {
		t.Error("Expected fresh state retained")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	st := testStore()
	orig := st.Set("user-1", KindMultiStep, "deploy the frontend",
		WithTool("infra"),
		WithParameters(map[string]any{"step": "build"}))

	rec := orig.Export()
	if rec.Kind != string(KindMultiStep) {
		t.Errorf("Expected kind multi_step, got %s", rec.Kind)
	}

	other := testStore()
	restored, err := other.Import(rec)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if restored.Kind != orig.Kind || restored.OriginalMessage != orig.OriginalMessage {
		t.Error("Expected imported state to match exported one")
	}
	if !restored.CreatedAt.Equal(orig.CreatedAt) || !restored.ExpiresAt.Equal(orig.ExpiresAt) {
		t.Error("Expected timestamps to survive the round trip")
	}
	if got := other.Get("user-1"); got == nil || got.ToolToExecute != "infra" {
		t.Error("Expected imported state active in the target store")
	}
}

func TestImportRejectsBadTimestamps(t *testing.T) {
	st := testStore()
	if _, err := st.Import(Record{UserID: "u", Kind: "normal", CreatedAt: "not-a-time"}); err == nil {
		t.Fatal("Expected error for invalid created_at")
	}
}

func TestStats(t *testing.T) {
	st := testStore()
	st.Set("user-1", KindNormal, "a")
	st.Set("user-2", KindConfirmation, "b")
	st.Clear("user-1")

	s := st.Stats()
	if s.Active != 1 {
		t.Errorf("Expected 1 active state, got %d", s.Active)
	}
	if s.ByKind[string(KindConfirmation)] != 1 {
		t.Errorf("Expected 1 confirmation state, got %d", s.ByKind[string(KindConfirmation)])
	}
	if s.UsersWithHistory != 1 {
		t.Errorf("Expected 1 user with history, got %d", s.UsersWithHistory)
	}
}
