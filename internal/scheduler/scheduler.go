package scheduler

import (
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/assisthub/assist-gateway/internal/confirm"
	"github.com/assisthub/assist-gateway/internal/state"
	"github.com/assisthub/assist-gateway/internal/trace"
)

// Scheduler runs the periodic sweeps behind the lazy-expiry stores.
// The stores stay correct without it; the sweeps only bound memory for
// users who never come back.
type Scheduler struct {
	cron     *cron.Cron
	states   *state.Store
	confirms *confirm.Store
	recorder *trace.Recorder
	logger   *slog.Logger
}

// New builds a scheduler with the sweep job registered on spec, a
// standard five-field cron expression.
func New(spec string, states *state.Store, confirms *confirm.Store, recorder *trace.Recorder, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:     cron.New(),
		states:   states,
		confirms: confirms,
		recorder: recorder,
		logger:   logger,
	}
	if _, err := s.cron.AddFunc(spec, s.sweep); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins running scheduled jobs
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop halts the scheduler and waits for a running job to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) sweep() {
	states := s.states.Sweep()
	confirms := s.confirms.Sweep()
	traces := s.recorder.Sweep()
	if states+confirms+traces > 0 {
		s.logger.Info("sweep completed",
			"expired_states", states, "expired_confirmations", confirms, "evicted_traces", traces)
	}
}
