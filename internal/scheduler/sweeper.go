package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/SAP-F-2025/quiz-portal/internal/metrics"
)

// Expirer closes in-progress attempts whose deadline and grace period have passed.
type Expirer interface {
	ExpireOverdue(ctx context.Context) (int, error)
}

type Config struct {
	// Schedule uses robfig/cron syntax, including descriptors such as "@every 1m".
	Schedule string
	Timezone string
	// RunTimeout bounds a single sweep.
	RunTimeout time.Duration
}

// Sweeper runs the overdue attempt sweep on a cron schedule. A run that is
// still going when the next one fires is skipped.
type Sweeper struct {
	cron    *cron.Cron
	expirer Expirer
	logger  *slog.Logger
	metrics *metrics.Metrics
	timeout time.Duration
}

func NewSweeper(cfg Config, expirer Expirer, logger *slog.Logger, m *metrics.Metrics) (*Sweeper, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Warn("Unknown timezone, falling back to UTC", "timezone", cfg.Timezone, "error", err)
		loc = time.UTC
	}

	timeout := cfg.RunTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	s := &Sweeper{
		expirer: expirer,
		logger:  logger.With("component", "attempt-sweeper"),
		metrics: m,
		timeout: timeout,
	}
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger{s.logger}), cron.SkipIfStillRunning(cronLogger{s.logger})),
	)

	if _, err := s.cron.AddFunc(cfg.Schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

func (s *Sweeper) Start() {
	s.logger.Info("Attempt sweeper started")
	s.cron.Start()
}

// Stop waits for a running sweep to finish or ctx to expire.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("Attempt sweeper stop timed out")
	}
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.RunOnce(ctx)
}

// RunOnce performs a single sweep and records its outcome.
func (s *Sweeper) RunOnce(ctx context.Context) int {
	start := time.Now()
	closed, err := s.expirer.ExpireOverdue(ctx)
	if err != nil {
		s.logger.Error("Attempt sweep failed", "error", err, "closed", closed)
		s.observe("error", closed)
		return closed
	}

	if closed > 0 {
		s.logger.Info("Closed overdue attempts", "closed", closed, "took", time.Since(start))
	}
	s.observe("ok", closed)
	return closed
}

func (s *Sweeper) observe(outcome string, closed int) {
	if s.metrics == nil {
		return
	}
	s.metrics.SweepRuns.WithLabelValues(outcome).Inc()
	s.metrics.AttemptsExpired.Add(float64(closed))
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
