package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/assisthub/assist-gateway/internal/metrics"
	"github.com/assisthub/assist-gateway/internal/tools"
)

// TraceHook receives per-tier outcomes during a cascade run. duration is
// the tier's wall time; errText is empty on success.
type TraceHook func(provider string, duration time.Duration, success bool, errText string)

// Cascade tries each configured backend tier in order until one succeeds.
// Each tier is tried at most once per Complete call; the next tier is a
// different backend, so there is no retry-with-backoff.
type Cascade struct {
	tiers  []Client
	logger *slog.Logger
}

// NewCascade builds the fallback executor from ordered tiers. Nil tiers
// (unconfigured) are skipped.
func NewCascade(logger *slog.Logger, tiers ...Client) *Cascade {
	c := &Cascade{logger: logger}
	for _, t := range tiers {
		if t != nil {
			c.tiers = append(c.tiers, t)
		}
	}
	return c
}

// Tiers returns the provider names in fallback order
func (c *Cascade) Tiers() []string {
	out := make([]string, len(c.tiers))
	for i, t := range c.tiers {
		out[i] = t.Name()
	}
	return out
}

// Complete runs the fallback sequence. Every failure class short of
// success falls through to the next tier; when all tiers fail the single
// ErrNoProvider surfaces, wrapping the last tier's error.
func (c *Cascade) Complete(ctx context.Context, turns []Turn, catalog []tools.Spec, hook TraceHook) (*Reply, error) {
	if len(c.tiers) == 0 {
		return nil, ErrNoProvider
	}

	var lastErr error
	for i, tier := range c.tiers {
		start := time.Now()
		reply, err := tier.Complete(ctx, turns, catalog)
		elapsed := time.Since(start)

		if err == nil {
			metrics.ProviderAttempts.WithLabelValues(tier.Name(), "success").Inc()
			if hook != nil {
				hook(tier.Name(), elapsed, true, "")
			}
			c.logger.Debug("provider completed",
				"provider", tier.Name(), "tier", i, "duration_ms", elapsed.Milliseconds())
			return reply, nil
		}

		class := Classify(err)
		lastErr = err
		metrics.ProviderAttempts.WithLabelValues(tier.Name(), "failure").Inc()
		metrics.ProviderFallbacks.WithLabelValues(string(class)).Inc()
		if hook != nil {
			hook(tier.Name(), elapsed, false, err.Error())
		}
		c.logger.Warn("provider failed, falling through",
			"provider", tier.Name(), "tier", i, "class", string(class), "error", err)
	}

	return nil, fmt.Errorf("%w: %v", ErrNoProvider, lastErr)
}
