package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/SAP-F-2025/quiz-portal/internal/metrics"
)

type fakeExpirer struct {
	calls  atomic.Int32
	closed int
	err    error
}

func (f *fakeExpirer) ExpireOverdue(ctx context.Context) (int, error) {
	f.calls.Add(1)
	return f.closed, f.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweeper_RunOnce(t *testing.T) {
	tests := []struct {
		name        string
		expirer     *fakeExpirer
		wantOutcome string
		wantExpired float64
	}{
		{"closes attempts", &fakeExpirer{closed: 3}, "ok", 3},
		{"nothing overdue", &fakeExpirer{}, "ok", 0},
		{"partial failure", &fakeExpirer{closed: 1, err: errors.New("db gone")}, "error", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New()
			s, err := NewSweeper(Config{Schedule: "@every 1m", Timezone: "UTC"}, tt.expirer, discard(), m)
			if err != nil {
				t.Fatalf("NewSweeper() error = %v", err)
			}

			if got := s.RunOnce(context.Background()); got != tt.expirer.closed {
				t.Errorf("RunOnce() = %d, want %d", got, tt.expirer.closed)
			}
			if got := testutil.ToFloat64(m.SweepRuns.WithLabelValues(tt.wantOutcome)); got != 1 {
				t.Errorf("sweep runs[%s] = %v, want 1", tt.wantOutcome, got)
			}
			if got := testutil.ToFloat64(m.AttemptsExpired); got != tt.wantExpired {
				t.Errorf("attempts expired = %v, want %v", got, tt.wantExpired)
			}
		})
	}
}

func TestNewSweeper_RejectsBadSchedule(t *testing.T) {
	if _, err := NewSweeper(Config{Schedule: "every so often"}, &fakeExpirer{}, discard(), nil); err == nil {
		t.Fatal("NewSweeper() accepted an invalid schedule")
	}
}

func TestSweeper_RunsOnSchedule(t *testing.T) {
	expirer := &fakeExpirer{}
	s, err := NewSweeper(Config{Schedule: "@every 1s", Timezone: "Nowhere/Invalid"}, expirer, discard(), nil)
	if err != nil {
		t.Fatalf("NewSweeper() error = %v", err)
	}
	s.Start()

	deadline := time.Now().Add(3 * time.Second)
	for expirer.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)

	if expirer.calls.Load() == 0 {
		t.Fatal("sweep never ran")
	}
}
