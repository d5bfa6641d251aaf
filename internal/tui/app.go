package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/assisthub/assist-gateway/internal/trace"
)

type Panel int

const (
	StatusView Panel = iota
	TraceView
)

// Turn submits one operator message and returns the gateway's reply.
type Turn func(ctx context.Context, content string) string

// Refresh produces a status snapshot plus the operator's recent traces.
type Refresh func() (Snapshot, []*trace.Trace)

type replyMsg string
type tickMsg time.Time

type App struct {
	width, height int
	rightPanel    Panel
	chat          *Chat
	status        *Status
	traces        *Traces
	input         *Input
	keys          KeyMap
	turn          Turn
	refresh       Refresh
	startTime     time.Time
	busy          bool
}

func NewApp(turn Turn, refresh Refresh) *App {
	return &App{
		rightPanel: StatusView,
		chat:       NewChat(),
		status:     NewStatus(),
		traces:     NewTraces(),
		input:      NewInput(),
		keys:       DefaultKeyMap,
		turn:       turn,
		refresh:    refresh,
		startTime:  time.Now(),
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.chat.Init(), a.status.Init(), a.traces.Init(), a.input.Init(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, a.keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, a.keys.Tab):
			a.rightPanel = (a.rightPanel + 1) % 2
		case msg.String() == "enter":
			if v := a.input.Value(); v != "" && !a.busy {
				a.chat.AddMessage("user", v)
				a.input.Reset()
				a.busy = true
				cmds = append(cmds, a.sendTurn(v))
			}
		}
	case replyMsg:
		a.busy = false
		a.chat.AddMessage("assistant", string(msg))
	case tickMsg:
		if a.refresh != nil {
			snap, traces := a.refresh()
			a.traces.SetTraces(traces)
			cmds = append(cmds, func() tea.Msg { return snapshotMsg(snap) })
		}
		cmds = append(cmds, tick())
	case snapshotMsg:
		// forwarded to the status panel below
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
	}

	var cmd tea.Cmd
	a.chat, cmd = a.chat.Update(msg)
	cmds = append(cmds, cmd)
	a.status, cmd = a.status.Update(msg)
	cmds = append(cmds, cmd)
	a.traces, cmd = a.traces.Update(msg)
	cmds = append(cmds, cmd)
	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)

	return a, tea.Batch(cmds...)
}

// sendTurn runs the turn off the update loop so the UI stays responsive
// while a provider round trip is in flight.
func (a *App) sendTurn(content string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		return replyMsg(a.turn(ctx, content))
	}
}

func (a *App) View() string {
	if a.width == 0 || a.height == 0 {
		return "Initializing..."
	}

	statusBar := a.statusBarView()
	inputBar := a.input.View()
	contentHeight := a.height - lipgloss.Height(statusBar) - lipgloss.Height(inputBar)

	leftWidth := int(float64(a.width) * 0.65)
	rightWidth := a.width - leftWidth

	chatView := a.chat.View(leftWidth, contentHeight)
	var rightView string
	if a.rightPanel == TraceView {
		rightView = a.traces.View(rightWidth, contentHeight)
	} else {
		rightView = a.status.View(rightWidth, contentHeight)
	}

	layout := lipgloss.JoinHorizontal(lipgloss.Top, chatView, rightView)
	return lipgloss.JoinVertical(lipgloss.Left, statusBar, layout, inputBar)
}

func (a *App) statusBarView() string {
	uptime := time.Since(a.startTime).Round(time.Second)
	mode := "status"
	if a.rightPanel == TraceView {
		mode = "traces"
	}
	return StatusBarStyle.Width(a.width).Render(
		fmt.Sprintf("Assist-Gateway | Uptime: %s | Panel: %s (tab to switch)", uptime, mode))
}
