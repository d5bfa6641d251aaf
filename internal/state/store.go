package state

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/assisthub/assist-gateway/internal/metrics"
)

// Kind is the conversation mode a user is currently in
type Kind string

const (
	KindNormal        Kind = "normal"
	KindConfirmation  Kind = "confirmation"
	KindClarification Kind = "clarification"
	KindMultiStep     Kind = "multi_step"
)

// DefaultTTL returns the domain default lifetime for a state kind
func (k Kind) DefaultTTL() time.Duration {
	switch k {
	case KindConfirmation:
		return 5 * time.Minute
	case KindClarification:
		return 3 * time.Minute
	case KindMultiStep:
		return 10 * time.Minute
	default:
		return time.Minute
	}
}

// State is the short-term conversation mode of one user
type State struct {
	UserID          string
	Kind            Kind
	OriginalMessage string
	ToolToExecute   string
	Parameters      map[string]any
	CreatedAt       time.Time
	ExpiresAt       time.Time
}

// Expired reports whether the state's ttl has passed
func (s *State) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

const historyCap = 10

// Store holds at most one active conversation state per user, with a
// bounded per-user history ring of archived states. Expiry is lazy: Get
// archives a stale state and returns nil instead of relying on a sweeper.
type Store struct {
	mu      sync.Mutex
	states  map[string]*State
	history map[string][]*State
	logger  *slog.Logger

	// OnArchive, when set, receives every state leaving the active slot.
	// Called outside the store lock, best-effort.
	OnArchive func(*State)
}

// NewStore creates an empty conversation state store
func NewStore(logger *slog.Logger) *Store {
	return &Store{
		states:  make(map[string]*State),
		history: make(map[string][]*State),
		logger:  logger,
	}
}

// Option tweaks a state being set
type Option func(*State)

// WithTool binds the tool the state is waiting to execute
func WithTool(name string) Option {
	return func(s *State) { s.ToolToExecute = name }
}

// WithParameters attaches an arbitrary parameter map
func WithParameters(params map[string]any) Option {
	return func(s *State) { s.Parameters = params }
}

// WithTTL overrides the kind's default lifetime
func WithTTL(ttl time.Duration) Option {
	return func(s *State) { s.ExpiresAt = s.CreatedAt.Add(ttl) }
}

// Set installs a new active state for the user, archiving any prior state
// (expired or not) into the history ring first.
func (st *Store) Set(userID string, kind Kind, message string, opts ...Option) *State {
	now := time.Now()
	s := &State{
		UserID:          userID,
		Kind:            kind,
		OriginalMessage: message,
		CreatedAt:       now,
		ExpiresAt:       now.Add(kind.DefaultTTL()),
	}
	for _, opt := range opts {
		opt(s)
	}

	st.mu.Lock()
	prev := st.states[userID]
	if prev != nil {
		st.archiveLocked(userID, prev)
	}
	st.states[userID] = s
	active := len(st.states)
	st.mu.Unlock()

	metrics.ActiveStates.Set(float64(active))
	if prev != nil && st.OnArchive != nil {
		st.OnArchive(prev)
	}
	st.logger.Debug("conversation state set", "user_id", userID, "kind", string(kind))
	return s
}

// Get returns the user's active state, or nil. An expired state is moved
// to the history ring on access.
func (st *Store) Get(userID string) *State {
	st.mu.Lock()
	s := st.states[userID]
	if s == nil {
		st.mu.Unlock()
		return nil
	}
	if s.Expired(time.Now()) {
		st.archiveLocked(userID, s)
		delete(st.states, userID)
		active := len(st.states)
		st.mu.Unlock()

		metrics.ActiveStates.Set(float64(active))
		if st.OnArchive != nil {
			st.OnArchive(s)
		}
		st.logger.Debug("conversation state expired", "user_id", userID, "kind", string(s.Kind))
		return nil
	}
	st.mu.Unlock()
	return s
}

// Clear removes the user's active state, archiving it. Returns whether a
// state was present.
func (st *Store) Clear(userID string) bool {
	st.mu.Lock()
	s := st.states[userID]
	if s == nil {
		st.mu.Unlock()
		return false
	}
	st.archiveLocked(userID, s)
	delete(st.states, userID)
	active := len(st.states)
	st.mu.Unlock()

	metrics.ActiveStates.Set(float64(active))
	if st.OnArchive != nil {
		st.OnArchive(s)
	}
	return true
}

// History returns the user's most recent archived states, newest last
func (st *Store) History(userID string, limit int) []*State {
	st.mu.Lock()
	defer st.mu.Unlock()
	h := st.history[userID]
	if limit > 0 && len(h) > limit {
		h = h[len(h)-limit:]
	}
	out := make([]*State, len(h))
	copy(out, h)
	return out
}

// Sweep archives all expired active states; needed only to bound memory,
// correctness comes from lazy expiry in Get.
func (st *Store) Sweep() int {
	now := time.Now()

	st.mu.Lock()
	var swept []*State
	for userID, s := range st.states {
		if s.Expired(now) {
			st.archiveLocked(userID, s)
			delete(st.states, userID)
			swept = append(swept, s)
		}
	}
	active := len(st.states)
	st.mu.Unlock()

	metrics.ActiveStates.Set(float64(active))
	if st.OnArchive != nil {
		for _, s := range swept {
			st.OnArchive(s)
		}
	}
	return len(swept)
}

// Stats summarizes active states by kind
type Stats struct {
	Active           int            `json:"active"`
	ByKind           map[string]int `json:"by_kind"`
	UsersWithHistory int            `json:"users_with_history"`
}

// Stats returns a snapshot of store occupancy
func (st *Store) Stats() Stats {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := Stats{
		Active:           len(st.states),
		ByKind:           make(map[string]int),
		UsersWithHistory: len(st.history),
	}
	for _, v := range st.states {
		s.ByKind[string(v.Kind)]++
	}
	return s
}

// archiveLocked appends to the user's history ring, dropping the oldest
// entry past the cap. Caller holds st.mu.
func (st *Store) archiveLocked(userID string, s *State) {
	h := append(st.history[userID], s)
	if len(h) > historyCap {
		h = h[1:]
	}
	st.history[userID] = h
}

// Record is the flat serializable form of a State
type Record struct {
	UserID          string         `json:"user_id"`
	Kind            string         `json:"kind"`
	OriginalMessage string         `json:"original_message"`
	ToolToExecute   string         `json:"tool_to_execute,omitempty"`
	Parameters      map[string]any `json:"parameters,omitempty"`
	CreatedAt       string         `json:"created_at"`
	ExpiresAt       string         `json:"expires_at,omitempty"`
}

// Export flattens a state to a Record
func (s *State) Export() Record {
	rec := Record{
		UserID:          s.UserID,
		Kind:            string(s.Kind),
		OriginalMessage: s.OriginalMessage,
		ToolToExecute:   s.ToolToExecute,
		Parameters:      s.Parameters,
		CreatedAt:       s.CreatedAt.Format(time.RFC3339Nano),
	}
	if !s.ExpiresAt.IsZero() {
		rec.ExpiresAt = s.ExpiresAt.Format(time.RFC3339Nano)
	}
	return rec
}

// Import installs a state from its flat Record form
func (st *Store) Import(rec Record) (*State, error) {
	created, err := time.Parse(time.RFC3339Nano, rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at: %w", err)
	}
	s := &State{
		UserID:          rec.UserID,
		Kind:            Kind(rec.Kind),
		OriginalMessage: rec.OriginalMessage,
		ToolToExecute:   rec.ToolToExecute,
		Parameters:      rec.Parameters,
		CreatedAt:       created,
	}
	if rec.ExpiresAt != "" {
		expires, err := time.Parse(time.RFC3339Nano, rec.ExpiresAt)
		if err != nil {
			return nil, fmt.Errorf("invalid expires_at: %w", err)
		}
		s.ExpiresAt = expires
	}

	st.mu.Lock()
	if prev := st.states[rec.UserID]; prev != nil {
		st.archiveLocked(rec.UserID, prev)
	}
	st.states[rec.UserID] = s
	st.mu.Unlock()
	return s, nil
}
