package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/assisthub/assist-gateway/internal/metrics"
)

type entry struct {
	tool    Tool
	enabled atomic.Bool
}

// Registry is the process-wide tool catalog. Registration happens at
// startup; enable/disable flags may be toggled at runtime and are read
// per dispatch without a registry-wide lock.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
	logger  *slog.Logger
}

// NewRegistry creates an empty tool registry
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		logger:  logger,
	}
}

// Register adds a tool to the catalog. Re-registering a name replaces the
// previous tool.
func (r *Registry) Register(t Tool, enabled bool) {
	name := t.Spec().Name

	r.mu.Lock()
	e, exists := r.entries[name]
	if exists {
		r.logger.Warn("tool already registered, replacing", "tool", name)
		e.tool = t
	} else {
		e = &entry{tool: t}
		r.entries[name] = e
		r.order = append(r.order, name)
	}
	e.enabled.Store(enabled)
	r.mu.Unlock()

	r.logger.Info("tool registered", "tool", name, "enabled", enabled)
}

// Enable turns a tool on. Returns false for unknown names.
func (r *Registry) Enable(name string) bool {
	return r.setEnabled(name, true)
}

// Disable turns a tool off. Returns false for unknown names.
func (r *Registry) Disable(name string) bool {
	return r.setEnabled(name, false)
}

func (r *Registry) setEnabled(name string, enabled bool) bool {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	e.enabled.Store(enabled)
	r.logger.Info("tool toggled", "tool", name, "enabled", enabled)
	return true
}

// IsEnabled reports the current enable flag for a tool
func (r *Registry) IsEnabled(name string) bool {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	return ok && e.enabled.Load()
}

// Get returns a registered tool by name
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return e.tool, true
}

// CatalogEntry is one row of the operator-facing registry listing
type CatalogEntry struct {
	Spec    Spec `json:"spec"`
	Enabled bool `json:"enabled"`
}

// Catalog lists all registered tools in registration order
func (r *Registry) Catalog() []CatalogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]CatalogEntry, 0, len(r.order))
	for _, name := range r.order {
		e := r.entries[name]
		out = append(out, CatalogEntry{Spec: e.tool.Spec(), Enabled: e.enabled.Load()})
	}
	return out
}

// EnabledSpecs lists specs of enabled tools, for the provider tool catalog
func (r *Registry) EnabledSpecs() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Spec
	for _, name := range r.order {
		e := r.entries[name]
		if e.enabled.Load() {
			out = append(out, e.tool.Spec())
		}
	}
	return out
}

// Execute dispatches a tool by name. All failures, including panics inside
// the tool, come back as a failed Result; Execute never returns nil. The
// result metadata is always stamped with the tool name and version.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) *Result {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()

	var res *Result
	var spec Spec
	switch {
	case !ok:
		res = Failure(fmt.Errorf("%w: %q", ErrNotFound, name))
		spec = Spec{Name: name}
	case !e.enabled.Load():
		spec = e.tool.Spec()
		res = Failure(fmt.Errorf("%w: %q", ErrDisabled, name))
	default:
		spec = e.tool.Spec()
		if err := ValidateParams(spec, params); err != nil {
			res = Failure(err)
		} else {
			res = r.run(ctx, e.tool, params)
		}
	}

	if res.Metadata == nil {
		res.Metadata = make(map[string]any)
	}
	res.Metadata["tool_name"] = spec.Name
	res.Metadata["tool_version"] = spec.Version

	outcome := "success"
	if !res.Success {
		outcome = "failure"
		r.logger.Warn("tool execution failed", "tool", name, "error", res.Error)
	} else {
		r.logger.Info("tool executed", "tool", name)
	}
	metrics.ToolExecutions.WithLabelValues(name, outcome).Inc()
	return res
}

// run invokes the tool inside a recover boundary so a panicking tool
// becomes a failed Result instead of unwinding the turn loop.
func (r *Registry) run(ctx context.Context, t Tool, params map[string]any) (res *Result) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool panicked", "tool", t.Spec().Name, "panic", rec)
			res = &Result{Success: false, Error: fmt.Sprintf("tool panicked: %v", rec)}
		}
	}()

	start := time.Now()
	out, err := t.Run(ctx, params)
	if err != nil {
		return Failure(err)
	}
	if out == nil {
		return Failure(fmt.Errorf("tool %q returned no result", t.Spec().Name))
	}
	if out.Metadata == nil {
		out.Metadata = make(map[string]any)
	}
	out.Metadata["duration_ms"] = time.Since(start).Milliseconds()
	return out
}
