package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/assisthub/assist-gateway/internal/confirm"
	"github.com/assisthub/assist-gateway/internal/state"
)

const (
	stateList   = "gateway:archive:states"
	confirmList = "gateway:archive:confirmations"

	writeTimeout = 2 * time.Second
)

// Archiver persists expired conversation states and settled confirmation
// sessions to capped Redis lists for offline inspection. All writes are
// best-effort: a Redis outage degrades to a warning, never a failed turn.
type Archiver struct {
	rdb    *redis.Client
	maxLen int64
	logger *slog.Logger
}

// New connects to Redis and validates the connection before returning.
func New(addr string, maxLen int64, logger *slog.Logger) (*Archiver, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Archiver{rdb: rdb, maxLen: maxLen, logger: logger}, nil
}

// Attach registers the archiver on the store hooks. Hooks fire outside
// the store locks so the push can block on Redis safely.
func (a *Archiver) Attach(states *state.Store, confirms *confirm.Store) {
	states.OnArchive = a.ArchiveState
	confirms.OnResolve = a.ArchiveConfirmation
}

// ArchiveState records a state that left the active slot
func (a *Archiver) ArchiveState(s *state.State) {
	a.push(stateList, s.Export())
}

// ArchiveConfirmation records a session that left pending
func (a *Archiver) ArchiveConfirmation(sess *confirm.Session) {
	a.push(confirmList, sess)
}

func (a *Archiver) push(list string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		a.logger.Warn("archive marshal failed", "list", list, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	pipe := a.rdb.Pipeline()
	pipe.LPush(ctx, list, payload)
	pipe.LTrim(ctx, list, 0, a.maxLen-1)
	if _, err := pipe.Exec(ctx); err != nil {
		a.logger.Warn("archive push failed", "list", list, "error", err)
	}
}

// Recent returns up to n of the newest entries in one of the archive
// lists, newest first, as raw JSON documents.
func (a *Archiver) Recent(ctx context.Context, list string, n int64) ([]json.RawMessage, error) {
	raw, err := a.rdb.LRange(ctx, list, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s failed: %w", list, err)
	}
	out := make([]json.RawMessage, 0, len(raw))
	for _, r := range raw {
		out = append(out, json.RawMessage(r))
	}
	return out, nil
}

// RecentStates returns the newest archived conversation states
func (a *Archiver) RecentStates(ctx context.Context, n int64) ([]json.RawMessage, error) {
	return a.Recent(ctx, stateList, n)
}

// RecentConfirmations returns the newest archived confirmation sessions
func (a *Archiver) RecentConfirmations(ctx context.Context, n int64) ([]json.RawMessage, error) {
	return a.Recent(ctx, confirmList, n)
}

// Close releases the Redis connection
func (a *Archiver) Close() error {
	return a.rdb.Close()
}
