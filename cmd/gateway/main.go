package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/assisthub/assist-gateway/internal/agent"
	"github.com/assisthub/assist-gateway/internal/archive"
	"github.com/assisthub/assist-gateway/internal/channel"
	"github.com/assisthub/assist-gateway/internal/channel/discord"
	"github.com/assisthub/assist-gateway/internal/channel/telegram"
	"github.com/assisthub/assist-gateway/internal/channel/webchat"
	"github.com/assisthub/assist-gateway/internal/config"
	"github.com/assisthub/assist-gateway/internal/confirm"
	"github.com/assisthub/assist-gateway/internal/logging"
	"github.com/assisthub/assist-gateway/internal/provider"
	"github.com/assisthub/assist-gateway/internal/scheduler"
	"github.com/assisthub/assist-gateway/internal/server"
	"github.com/assisthub/assist-gateway/internal/state"
	"github.com/assisthub/assist-gateway/internal/tools"
	"github.com/assisthub/assist-gateway/internal/trace"
	"github.com/assisthub/assist-gateway/internal/tui"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML config file")
	tuiFlag := flag.Bool("tui", false, "Launch the interactive operator console")
	flag.Parse()

	logger := logging.WithComponent("main")
	logger.Info("Starting Assist-Gateway", "version", version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("Config not loaded, using defaults", "path", *configPath, "error", err)
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid config", "error", err)
		os.Exit(1)
	}
	logging.SetLevel(cfg.Logging.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stores and the trace recorder
	recorder := trace.NewRecorder(cfg.Trace.MaxTraces, cfg.Trace.TTL, logging.WithComponent("trace"))
	states := state.NewStore(logging.WithComponent("state"))
	registry := tools.NewRegistry(logging.WithComponent("tools"))
	registry.Register(tools.NewEchoTool(), true)
	if cfg.Tools.InfraURL != "" {
		registry.Register(tools.NewInfraTool(cfg.Tools.InfraURL), true)
	}
	if cfg.Tools.MediaURL != "" {
		registry.Register(tools.NewImagineTool(cfg.Tools.MediaURL), true)
		registry.Register(tools.NewVisionTool(cfg.Tools.MediaURL), true)
	}
	for _, name := range cfg.Tools.Disabled {
		registry.Disable(name)
	}
	confirms := confirm.NewStore(registry, cfg.Confirm.DefaultTTL, logging.WithComponent("confirm"))

	// Optional Redis archive for expired states and settled confirmations
	var archiver *archive.Archiver
	if cfg.Archive.Enabled {
		archiver, err = archive.New(cfg.Archive.RedisAddr, cfg.Archive.MaxLen, logging.WithComponent("archive"))
		if err != nil {
			logger.Warn("Archive unavailable, continuing without it", "error", err)
		} else {
			archiver.Attach(states, confirms)
			logger.Info("Archive attached", "addr", cfg.Archive.RedisAddr)
		}
	}

	// Provider fallback cascade
	cascade := provider.NewCascade(logging.WithComponent("provider"),
		buildProvider(cfg.Providers.Primary, logger),
		buildProvider(cfg.Providers.Secondary, logger),
		buildProvider(cfg.Providers.Tertiary, logger),
	)

	// Agent chain and the turn orchestrator
	router := agent.NewRouter(recorder, logging.WithComponent("router"),
		agent.NewControl(registry, confirms, states, recorder, logging.WithComponent("control")),
		agent.NewAssistant(cascade, registry, confirms, states, recorder, logging.WithComponent("assistant")),
	)
	orch := agent.NewOrchestrator(router, confirms, states, recorder, logging.WithComponent("orchestrator"))

	// Retention sweeps
	sched, err := scheduler.New(cfg.Scheduler.SweepSpec, states, confirms, recorder, logging.WithComponent("scheduler"))
	if err != nil {
		logger.Error("Invalid sweep spec", "spec", cfg.Scheduler.SweepSpec, "error", err)
		os.Exit(1)
	}
	sched.Start()

	// Chat channels
	adapters := []channel.Adapter{}
	if token := cfg.Channels.Telegram.Token(); token != "" {
		adapters = append(adapters, telegram.New(token, cfg.IsAdmin))
	}
	if token := cfg.Channels.Discord.Token(); token != "" {
		adapters = append(adapters, discord.New(token, cfg.IsAdmin))
	}
	chat := webchat.New(cfg.Channels.Webchat.Enabled, logging.WithComponent("webchat"))
	if chat.IsEnabled() {
		adapters = append(adapters, chat)
	}

	for _, a := range adapters {
		if err := a.Start(ctx); err != nil {
			logger.Error("Failed to start adapter", "adapter", a.Name(), "error", err)
			continue
		}
		logger.Info("Adapter started", "adapter", a.Name())
		go pump(ctx, a, orch, logger)
	}

	// Operator HTTP surface
	srv := server.New(cfg, registry, states, confirms, recorder, archiver, chat, logging.WithComponent("server"))
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
		}
	}()

	if *tuiFlag {
		runConsole(orch, registry, states, confirms, recorder)
	} else {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
	}

	logger.Info("Shutting down")
	cancel() // drains the adapter pumps
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	for _, a := range adapters {
		if err := a.Stop(); err != nil {
			logger.Error("Failed to stop adapter", "adapter", a.Name(), "error", err)
		}
	}
	sched.Stop()
	if archiver != nil {
		archiver.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	logger.Info("Shutdown complete")
}

// buildProvider turns one config tier into a cascade client. A
// misconfigured tier degrades to a shorter cascade instead of failing
// startup.
func buildProvider(pc config.ProviderConfig, logger *slog.Logger) provider.Client {
	var (
		client provider.Client
		err    error
	)
	switch pc.Type {
	case "openai":
		client, err = provider.NewOpenAIClient(provider.OpenAIConfig{
			BaseURL: pc.BaseURL, APIKey: pc.APIKey(), Model: pc.Model,
		})
	case "anthropic":
		client, err = provider.NewAnthropicClient(provider.AnthropicConfig{
			BaseURL: pc.BaseURL, APIKey: pc.APIKey(), Model: pc.Model,
		})
	case "ollama":
		client, err = provider.NewOllamaClient(provider.OllamaConfig{
			BaseURL: pc.BaseURL, Model: pc.Model,
		})
	case "":
		return nil
	default:
		logger.Warn("Unknown provider type, tier skipped", "type", pc.Type)
		return nil
	}
	if err != nil {
		logger.Warn("Provider tier skipped", "type", pc.Type, "error", err)
		return nil
	}
	return client
}

// pump drains one adapter's inbound channel through the orchestrator.
func pump(ctx context.Context, a channel.Adapter, orch *agent.Orchestrator, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-a.Incoming():
			if !ok {
				return
			}
			resp := orch.HandleMessage(ctx, msg)
			if err := a.SendMessage(msg.UserID, resp); err != nil {
				logger.Error("Failed to send reply", "adapter", a.Name(), "user_id", msg.UserID, "error", err)
			}
		}
	}
}

// runConsole blocks inside the bubbletea operator console until quit.
func runConsole(orch *agent.Orchestrator, registry *tools.Registry, states *state.Store, confirms *confirm.Store, recorder *trace.Recorder) {
	turn := func(ctx context.Context, content string) string {
		msg := &channel.Message{
			ID:        "console",
			Channel:   "console",
			UserID:    "operator",
			Username:  "operator",
			Role:      channel.RoleAdmin,
			Content:   content,
			Timestamp: time.Now().Unix(),
		}
		return orch.HandleMessage(ctx, msg).Content
	}
	refresh := func() (tui.Snapshot, []*trace.Trace) {
		snap := tui.Snapshot{
			Traces:        recorder.Metrics(),
			States:        states.Stats(),
			Confirmations: confirms.Stats(),
			Tools:         registry.Catalog(),
		}
		return snap, recorder.UserTraces("operator", 10)
	}

	p := tea.NewProgram(tui.NewApp(turn, refresh), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		logging.WithComponent("tui").Error("Console error", "error", err)
	}
}
