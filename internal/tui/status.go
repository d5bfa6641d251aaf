package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/assisthub/assist-gateway/internal/confirm"
	"github.com/assisthub/assist-gateway/internal/state"
	"github.com/assisthub/assist-gateway/internal/tools"
	"github.com/assisthub/assist-gateway/internal/trace"
)

// Snapshot is one refresh of the live gateway numbers shown in the
// status panel.
type Snapshot struct {
	Traces        trace.Metrics
	States        state.Stats
	Confirmations confirm.Stats
	Tools         []tools.CatalogEntry
}

type snapshotMsg Snapshot

type Status struct {
	snap Snapshot
}

func NewStatus() *Status {
	return &Status{}
}

func (s *Status) Init() tea.Cmd {
	return nil
}

func (s *Status) Update(msg tea.Msg) (*Status, tea.Cmd) {
	if snap, ok := msg.(snapshotMsg); ok {
		s.snap = Snapshot(snap)
	}
	return s, nil
}

func (s *Status) View(width, height int) string {
	m := s.snap.Traces
	rate := 0.0
	if m.TotalRequests > 0 {
		rate = float64(m.SuccessfulRequests) / float64(m.TotalRequests) * 100
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Turns: %d (%.0f%% ok)\n", m.TotalRequests, rate)
	fmt.Fprintf(&b, "Mean: %s\n", m.MeanDuration.Round(time.Millisecond))
	fmt.Fprintf(&b, "Traces: %d active / %d done\n", m.ActiveTraces, m.CompletedTraces)
	fmt.Fprintf(&b, "States: %d active\n", s.snap.States.Active)
	fmt.Fprintf(&b, "Pending: %d\n\n", s.snap.Confirmations.ByStatus[string(confirm.StatusPending)])

	b.WriteString("Tools\n")
	for _, entry := range s.snap.Tools {
		mark := "on"
		if !entry.Enabled {
			mark = "off"
		}
		fmt.Fprintf(&b, "  %s [%s]\n", entry.Spec.Name, mark)
	}
	return StatusPanelStyle.Width(width).Height(height).Render(b.String())
}
