package trace

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/assisthub/assist-gateway/internal/metrics"
)

// Status is the lifecycle status of a request trace
type Status string

const (
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
)

// Component tags for trace events
const (
	ComponentRouter       = "router"
	ComponentAgent        = "agent"
	ComponentProvider     = "provider"
	ComponentTools        = "tools"
	ComponentConfirmation = "confirmation"
	ComponentState        = "state"
	ComponentChannel      = "channel"
)

// Event is one immutable step record inside a trace
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Component string         `json:"component"`
	Step      string         `json:"step"`
	Detail    map[string]any `json:"detail,omitempty"`
	Duration  time.Duration  `json:"duration,omitempty"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
}

// Trace is the ordered event log of one turn
type Trace struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	SessionID string         `json:"session_id,omitempty"`
	StartTime time.Time      `json:"start_time"`
	EndTime   time.Time      `json:"end_time,omitempty"`
	Status    Status         `json:"status"`
	Events    []Event        `json:"events"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Duration returns the total trace duration, zero while still active
func (t *Trace) Duration() time.Duration {
	if t.EndTime.IsZero() {
		return 0
	}
	return t.EndTime.Sub(t.StartTime)
}

// ComponentDurations sums event durations per component
func (t *Trace) ComponentDurations() map[string]time.Duration {
	out := make(map[string]time.Duration)
	for _, e := range t.Events {
		if e.Duration > 0 {
			out[e.Component] += e.Duration
		}
	}
	return out
}

// Metrics is the aggregate view over retained traces
type Metrics struct {
	TotalRequests      int                      `json:"total_requests"`
	SuccessfulRequests int                      `json:"successful_requests"`
	FailedRequests     int                      `json:"failed_requests"`
	ActiveTraces       int                      `json:"active_traces"`
	CompletedTraces    int                      `json:"completed_traces"`
	MeanDuration       time.Duration            `json:"mean_duration"`
	ComponentMeans     map[string]time.Duration `json:"component_means"`
}

// Recorder tracks per-request traces with bounded retention.
// Tracing is best-effort: unknown trace ids are ignored and a Recorder
// method never fails the caller's path.
type Recorder struct {
	mu        sync.Mutex
	active    map[string]*Trace
	completed map[string]*Trace

	maxTraces int
	ttl       time.Duration

	totalRequests      int
	successfulRequests int
	failedRequests     int

	logger *slog.Logger
}

// NewRecorder creates a trace recorder. maxTraces bounds retained completed
// traces; ttl bounds how long a completed trace is kept.
func NewRecorder(maxTraces int, ttl time.Duration, logger *slog.Logger) *Recorder {
	if maxTraces <= 0 {
		maxTraces = 1000
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Recorder{
		active:    make(map[string]*Trace),
		completed: make(map[string]*Trace),
		maxTraces: maxTraces,
		ttl:       ttl,
		logger:    logger,
	}
}

// Begin opens a new trace and returns its id
func (r *Recorder) Begin(userID, sessionID string) string {
	id := uuid.NewString()[:8]

	r.mu.Lock()
	r.active[id] = &Trace{
		ID:        id,
		UserID:    userID,
		SessionID: sessionID,
		StartTime: time.Now().UTC(),
		Status:    StatusStarted,
		Metadata:  make(map[string]any),
	}
	r.totalRequests++
	r.evictLocked()
	active := len(r.active)
	r.mu.Unlock()

	metrics.ActiveTraces.Set(float64(active))
	r.logger.Debug("trace started", "trace_id", id, "user_id", userID)
	return id
}

// Event appends an event to an active trace. Unknown or already completed
// trace ids are ignored.
func (r *Recorder) Event(traceID, component, step string, detail map[string]any, duration time.Duration, success bool, errText string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.active[traceID]
	if !ok {
		return
	}
	t.Events = append(t.Events, Event{
		Timestamp: time.Now().UTC(),
		Component: component,
		Step:      step,
		Detail:    detail,
		Duration:  duration,
		Success:   success,
		Error:     errText,
	})
}

// End completes an active trace exactly once. Repeated or unknown ids are
// ignored.
func (r *Recorder) End(traceID string, status Status, detail map[string]any) {
	r.mu.Lock()
	t, ok := r.active[traceID]
	if !ok {
		r.mu.Unlock()
		return
	}
	t.EndTime = time.Now().UTC()
	t.Status = status
	for k, v := range detail {
		t.Metadata[k] = v
	}
	if status == StatusCompleted {
		r.successfulRequests++
	} else {
		r.failedRequests++
	}
	delete(r.active, traceID)
	r.completed[traceID] = t
	r.evictLocked()
	active := len(r.active)
	r.mu.Unlock()

	metrics.ActiveTraces.Set(float64(active))
	metrics.TurnDuration.Observe(t.Duration().Seconds())
	r.logger.Debug("trace completed",
		"trace_id", traceID,
		"status", string(status),
		"duration_ms", t.Duration().Milliseconds(),
		"events", len(t.Events))
}

// snapshot deep-copies a trace so callers can read it after the lock is
// released. Events keep being appended to active traces; handing out the
// live pointer would race with unlocked readers.
func snapshot(t *Trace) *Trace {
	c := *t
	c.Events = make([]Event, len(t.Events))
	copy(c.Events, t.Events)
	for i, e := range t.Events {
		if e.Detail == nil {
			continue
		}
		d := make(map[string]any, len(e.Detail))
		for k, v := range e.Detail {
			d[k] = v
		}
		c.Events[i].Detail = d
	}
	if t.Metadata != nil {
		m := make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			m[k] = v
		}
		c.Metadata = m
	}
	return &c
}

// Get returns a copy of the trace by id, active or completed
func (r *Recorder) Get(traceID string) *Trace {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.active[traceID]; ok {
		return snapshot(t)
	}
	if t, ok := r.completed[traceID]; ok {
		return snapshot(t)
	}
	return nil
}

// UserTraces returns copies of the most recent traces for a user, newest
// first
func (r *Recorder) UserTraces(userID string, limit int) []*Trace {
	if limit <= 0 {
		limit = 10
	}
	r.mu.Lock()
	var out []*Trace
	for _, t := range r.active {
		if t.UserID == userID {
			out = append(out, snapshot(t))
		}
	}
	for _, t := range r.completed {
		if t.UserID == userID {
			out = append(out, snapshot(t))
		}
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ActiveCount returns the number of in-flight traces
func (r *Recorder) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// Metrics aggregates counters and mean durations over retained traces
func (r *Recorder) Metrics() Metrics {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := Metrics{
		TotalRequests:      r.totalRequests,
		SuccessfulRequests: r.successfulRequests,
		FailedRequests:     r.failedRequests,
		ActiveTraces:       len(r.active),
		CompletedTraces:    len(r.completed),
		ComponentMeans:     make(map[string]time.Duration),
	}

	var total time.Duration
	counted := 0
	compTotals := make(map[string]time.Duration)
	compCounts := make(map[string]int)
	for _, t := range r.completed {
		if d := t.Duration(); d > 0 {
			total += d
			counted++
		}
		for comp, d := range t.ComponentDurations() {
			compTotals[comp] += d
			compCounts[comp]++
		}
	}
	if counted > 0 {
		m.MeanDuration = total / time.Duration(counted)
	}
	for comp, d := range compTotals {
		m.ComponentMeans[comp] = d / time.Duration(compCounts[comp])
	}
	return m
}

// Sweep applies the retention bounds; called periodically by the scheduler
func (r *Recorder) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evictLocked()
}

// evictLocked drops completed traces past the ttl, then trims to maxTraces
// evicting oldest-completed first. Caller holds r.mu.
func (r *Recorder) evictLocked() int {
	now := time.Now().UTC()
	evicted := 0
	for id, t := range r.completed {
		if now.Sub(t.EndTime) > r.ttl {
			delete(r.completed, id)
			evicted++
		}
	}

	if excess := len(r.completed) - r.maxTraces; excess > 0 {
		ordered := make([]*Trace, 0, len(r.completed))
		for _, t := range r.completed {
			ordered = append(ordered, t)
		}
		sort.Slice(ordered, func(i, j int) bool {
			return ordered[i].EndTime.Before(ordered[j].EndTime)
		})
		for _, t := range ordered[:excess] {
			delete(r.completed, t.ID)
			evicted++
		}
	}
	return evicted
}
