package confirm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/assisthub/assist-gateway/internal/metrics"
	"github.com/assisthub/assist-gateway/internal/tools"
)

// Resolution failures. A failed resolve never executes the bound tool.
var (
	ErrSessionNotFound = errors.New("confirmation session not found")
	ErrUserMismatch    = errors.New("confirmation session belongs to another user")
	ErrAlreadyResolved = errors.New("confirmation session already resolved")
	ErrExpired         = errors.New("confirmation session expired")
)

// Status is the lifecycle status of a confirmation session
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Session is one pending sensitive action awaiting user approval
type Session struct {
	ID         string
	UserID     string
	Tool       string
	Parameters map[string]any
	Prompt     string
	Status     Status
	CreatedAt  time.Time
	ExpiresAt  time.Time
	ResolvedAt time.Time
}

// Store holds pending confirmation sessions. The pending→resolved
// transition is the single gate guaranteeing at most one execution per
// session; expiry is wall-clock and checked lazily on resolve/listing.
type Store struct {
	mu         sync.Mutex
	sessions   map[string]*Session
	byUser     map[string][]string
	registry   *tools.Registry
	defaultTTL time.Duration
	logger     *slog.Logger

	// OnResolve, when set, receives every session leaving pending.
	// Called outside the store lock, best-effort.
	OnResolve func(*Session)
}

// NewStore creates a confirmation session store bound to the tool registry
func NewStore(registry *tools.Registry, defaultTTL time.Duration, logger *slog.Logger) *Store {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	return &Store{
		sessions:   make(map[string]*Session),
		byUser:     make(map[string][]string),
		registry:   registry,
		defaultTTL: defaultTTL,
		logger:     logger,
	}
}

// Open creates a fresh pending session and returns its id. It never blocks
// on other sessions; a user may hold several pending sessions at once.
func (s *Store) Open(userID, tool string, params map[string]any, prompt string, ttl time.Duration) string {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if prompt == "" {
		prompt = s.renderPrompt(tool, params)
	}

	now := time.Now()
	sess := &Session{
		ID:         uuid.NewString(),
		UserID:     userID,
		Tool:       tool,
		Parameters: params,
		Prompt:     prompt,
		Status:     StatusPending,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.byUser[userID] = append(s.byUser[userID], sess.ID)
	pending := s.pendingCountLocked()
	s.mu.Unlock()

	metrics.PendingConfirmations.Set(float64(pending))
	s.logger.Info("confirmation requested",
		"session_id", sess.ID, "user_id", userID, "tool", tool, "ttl", ttl.String())
	return sess.ID
}

// Resolve settles a pending session. Checks run in order: session exists,
// owner matches (when userID is non-empty), still pending, not expired.
// On confirmation the bound tool executes synchronously, exactly once;
// on cancellation nothing executes and the result is nil.
func (s *Store) Resolve(ctx context.Context, sessionID string, confirmed bool, userID string) (*tools.Result, error) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		s.logger.Warn("confirmation session not found", "session_id", sessionID)
		return nil, ErrSessionNotFound
	}
	if userID != "" && sess.UserID != userID {
		s.mu.Unlock()
		s.logger.Warn("confirmation user mismatch", "session_id", sessionID, "user_id", userID)
		return nil, ErrUserMismatch
	}
	if sess.Status != StatusPending {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyResolved, sess.Status)
	}
	now := time.Now()
	if now.After(sess.ExpiresAt) {
		sess.Status = StatusExpired
		pending := s.pendingCountLocked()
		s.mu.Unlock()

		metrics.PendingConfirmations.Set(float64(pending))
		s.notifyResolve(sess)
		s.logger.Warn("confirmation session expired", "session_id", sessionID)
		return nil, ErrExpired
	}

	if confirmed {
		sess.Status = StatusConfirmed
	} else {
		sess.Status = StatusCancelled
	}
	sess.ResolvedAt = now
	pending := s.pendingCountLocked()
	s.mu.Unlock()

	metrics.PendingConfirmations.Set(float64(pending))
	s.notifyResolve(sess)

	if !confirmed {
		s.logger.Info("confirmation declined", "session_id", sessionID, "tool", sess.Tool)
		return nil, nil
	}

	s.logger.Info("confirmation accepted, executing", "session_id", sessionID, "tool", sess.Tool)
	return s.registry.Execute(ctx, sess.Tool, sess.Parameters), nil
}

// Get returns a session by id
func (s *Store) Get(sessionID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[sessionID]
}

// Pending returns the user's still-pending sessions, oldest first. Sessions
// found past their expiry are marked expired and omitted.
func (s *Store) Pending(userID string) []*Session {
	now := time.Now()

	s.mu.Lock()
	var out []*Session
	var expired []*Session
	for _, id := range s.byUser[userID] {
		sess := s.sessions[id]
		if sess == nil || sess.Status != StatusPending {
			continue
		}
		if now.After(sess.ExpiresAt) {
			sess.Status = StatusExpired
			expired = append(expired, sess)
			continue
		}
		out = append(out, sess)
	}
	pending := s.pendingCountLocked()
	s.mu.Unlock()

	metrics.PendingConfirmations.Set(float64(pending))
	for _, sess := range expired {
		s.notifyResolve(sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Sweep marks expired pending sessions and drops resolved ones older than
// their expiry, bounding memory.
func (s *Store) Sweep() int {
	now := time.Now()

	s.mu.Lock()
	var expired []*Session
	for id, sess := range s.sessions {
		switch sess.Status {
		case StatusPending:
			if now.After(sess.ExpiresAt) {
				sess.Status = StatusExpired
				expired = append(expired, sess)
			}
		default:
			if now.Sub(sess.ExpiresAt) > time.Hour {
				delete(s.sessions, id)
				s.removeFromUserLocked(sess.UserID, id)
			}
		}
	}
	pending := s.pendingCountLocked()
	s.mu.Unlock()

	metrics.PendingConfirmations.Set(float64(pending))
	for _, sess := range expired {
		s.notifyResolve(sess)
	}
	return len(expired)
}

// Stats summarizes sessions by status
type Stats struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}

// Stats returns a snapshot of session counts
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{Total: len(s.sessions), ByStatus: make(map[string]int)}
	for _, sess := range s.sessions {
		st.ByStatus[string(sess.Status)]++
	}
	return st
}

func (s *Store) pendingCountLocked() int {
	n := 0
	for _, sess := range s.sessions {
		if sess.Status == StatusPending {
			n++
		}
	}
	return n
}

func (s *Store) removeFromUserLocked(userID, sessionID string) {
	ids := s.byUser[userID]
	for i, id := range ids {
		if id == sessionID {
			s.byUser[userID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(s.byUser[userID]) == 0 {
		delete(s.byUser, userID)
	}
}

func (s *Store) notifyResolve(sess *Session) {
	if s.OnResolve != nil {
		s.OnResolve(sess)
	}
}

// renderPrompt builds the default human-readable confirmation prompt from
// the tool catalog entry.
func (s *Store) renderPrompt(toolName string, params map[string]any) string {
	var b strings.Builder
	b.WriteString("Confirmation required\n\n")

	if t, ok := s.registry.Get(toolName); ok {
		spec := t.Spec()
		fmt.Fprintf(&b, "Tool: %s\n%s\n", spec.Name, spec.Description)
		if spec.EstimatedTime != "" {
			fmt.Fprintf(&b, "Estimated time: %s\n", spec.EstimatedTime)
		}
	} else {
		fmt.Fprintf(&b, "Tool: %s\n", toolName)
	}

	if len(params) > 0 {
		b.WriteString("\nParameters:\n")
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %v\n", k, params[k])
		}
	}

	b.WriteString("\nProceed? Reply yes or no.")
	return b.String()
}
