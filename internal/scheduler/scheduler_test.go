package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewRejectsBadSpec(t *testing.T) {
	if _, err := New("every tuesday", func(context.Context) error { return nil }, nil); err == nil {
		t.Fatalf("expected error for invalid cron spec")
	}
}

func TestRunOnceCallsJob(t *testing.T) {
	var calls int32
	s, err := New("0 13 * * 1", func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("job called %d times", calls)
	}
}

func TestScheduledRunLogsFailure(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	s, err := New("@every 1s", func(context.Context) error { return errors.New("boom") }, zap.New(core))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	s.runOnce()
	if logs.FilterMessage("scheduled job failed").Len() != 1 {
		t.Fatalf("expected failure to be logged, got %v", logs.All())
	}
}

func TestStopCancelsRunningJob(t *testing.T) {
	started := make(chan struct{})
	cancelled := make(chan struct{})
	s, err := New("@every 1s", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	}, nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	go s.runOnce()
	<-started
	s.Stop()

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatalf("job context was not cancelled on Stop")
	}
}
