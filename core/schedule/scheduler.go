package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// SweepFunc runs one periodic sweep.
type SweepFunc func(ctx context.Context) error

// Scheduler runs a sweep on a cron schedule. A run that is still going when
// the next one is due causes that next run to be skipped.
type Scheduler struct {
	cron    *cron.Cron
	sweep   SweepFunc
	timeout time.Duration
	entryID cron.EntryID

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc

	log *slog.Logger
}

// NewScheduler creates a Scheduler running sweep on spec, a standard cron
// expression or descriptor such as "@every 1h". Each run is bounded by timeout.
func NewScheduler(spec string, sweep SweepFunc, timeout time.Duration, logger *slog.Logger) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    cron.New(),
		sweep:   sweep,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
		log:     logger,
	}
	s.entryID = s.cron.Schedule(schedule, cron.FuncJob(s.Run))

	return s, nil
}

// Start starts the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("Started sweep scheduler", slog.Time("next_run", s.Next()))
}

// Stop stops scheduling, cancels a running sweep and waits for it to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.log.Info("Stopped sweep scheduler")
}

// Next returns the time of the next scheduled run. It is zero before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entryID).Next
}

// Run executes one sweep unless another one is running.
func (s *Scheduler) Run() {
	s.RunOnce()
}

// RunOnce executes one sweep unless another one is running and reports
// whether the sweep ran.
func (s *Scheduler) RunOnce() bool {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn("Skipping sweep, previous run still in progress")
		return false
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	if err := s.sweep(ctx); err != nil {
		s.log.Error("Sweep failed", slog.Any("error", err), slog.Duration("duration", time.Since(start)))
		return true
	}

	s.log.Info("Sweep finished", slog.Duration("duration", time.Since(start)))
	return true
}
