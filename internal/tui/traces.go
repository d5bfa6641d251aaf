package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/assisthub/assist-gateway/internal/trace"
)

// Traces renders the most recent operator traces as a scrolling event
// feed in the right panel.
type Traces struct {
	viewport viewport.Model
	traces   []*trace.Trace
}

func NewTraces() *Traces {
	vp := viewport.New(0, 0)
	vp.SetContent("Request traces\n")
	return &Traces{
		viewport: vp,
	}
}

func (t *Traces) Init() tea.Cmd {
	return nil
}

func (t *Traces) Update(msg tea.Msg) (*Traces, tea.Cmd) {
	var cmd tea.Cmd
	t.viewport, cmd = t.viewport.Update(msg)
	return t, cmd
}

func (t *Traces) View(width, height int) string {
	t.viewport.Width = width - 2
	t.viewport.Height = height - 2
	return TracePanelStyle.Width(width).Height(height).Render(t.viewport.View())
}

func (t *Traces) SetTraces(traces []*trace.Trace) {
	t.traces = traces
	t.updateContent()
}

func (t *Traces) updateContent() {
	var sb strings.Builder
	for _, tr := range t.traces {
		style := EventStyle
		if tr.Status == trace.StatusFailed {
			style = EventErrorStyle
		}
		sb.WriteString(style.Render(fmt.Sprintf("[%s] %s %s",
			tr.ID, tr.Status, tr.Duration().Round(time.Millisecond))))
		sb.WriteString("\n")
		for _, ev := range tr.Events {
			sb.WriteString(EventStyle.Render(fmt.Sprintf("  %s/%s", ev.Component, ev.Step)))
			sb.WriteString("\n")
		}
	}
	t.viewport.SetContent(sb.String())
}
