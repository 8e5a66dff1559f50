package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "medcal/internal/log"
)

// Refresher is anything that can be refreshed on a schedule.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Scheduler runs Refresh on a cron schedule. A run still in progress when
// the next one is due causes that tick to be skipped.
type Scheduler struct {
	c       *cron.Cron
	target  Refresher
	timeout time.Duration
	ctx     context.Context
}

// NewScheduler parses a standard 5-field cron expression (descriptors like
// "@every 15m" are accepted too).
func NewScheduler(spec string, target Refresher, timeout time.Duration) (*Scheduler, error) {
	logger := cronLogger{}
	s := &Scheduler{
		c: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		target:  target,
		timeout: timeout,
		ctx:     context.Background(),
	}
	if _, err := s.c.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("calendar: parse refresh schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins scheduling. Runs use ctx as their parent.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.c.Start()
	appLog.Info("calendar: refresh scheduler started")
}

// Stop halts scheduling and waits for a running refresh to finish or for
// ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.c.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		appLog.Warn("calendar: scheduler stop timed out")
	}
}

func (s *Scheduler) run() {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := s.target.Refresh(ctx); err != nil {
		appLog.Debug("calendar: scheduled refresh failed", "err", err)
	}
}

// cronLogger routes cron's own logging into the app logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
