package supervisor

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	logx "jobpulse/pkg/logx"
)

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestGoCanceledIsCleanExit(t *testing.T) {
	t.Parallel()
	s := New(context.Background(), WithLogger(logx.Nop()))
	s.Go("worker", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err := s.Stop(waitCtx(t)); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if s.Active() != 0 || s.Started() != 1 {
		t.Fatalf("active=%d started=%d", s.Active(), s.Started())
	}
}

func TestCancelOnError(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	s := New(context.Background(), WithLogger(logx.Nop()), WithCancelOnError(true))
	s.Go("sibling", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	s.Go("failing", func(context.Context) error { return boom })

	select {
	case <-s.Context().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not canceled")
	}
	if err := s.Wait(waitCtx(t)); !errors.Is(err, boom) {
		t.Fatalf("Wait err = %v", err)
	}
	if !strings.Contains(s.Err().Error(), "failing") {
		t.Fatalf("err lacks goroutine name: %v", s.Err())
	}
}

func TestPanicIsRecorded(t *testing.T) {
	t.Parallel()
	s := New(context.Background(), WithLogger(logx.Nop()))
	s.Go("panicky", func(context.Context) error { panic("nope") })
	_ = s.Stop(waitCtx(t))
	if s.Err() == nil || !strings.Contains(s.Err().Error(), "panic in panicky") {
		t.Fatalf("err = %v", s.Err())
	}
}

func TestGoRestartRetriesUntilSuccess(t *testing.T) {
	t.Parallel()
	s := New(context.Background(), WithLogger(logx.Nop()))
	var runs atomic.Int32
	done := make(chan struct{})
	s.GoRestart("flaky", func(context.Context) error {
		switch runs.Add(1) {
		case 1:
			return errors.New("first")
		case 2:
			panic("second")
		default:
			close(done)
			return nil
		}
	}, WithRestartBackoff(time.Millisecond, 5*time.Millisecond))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("runs = %d", runs.Load())
	}
	if err := s.Stop(waitCtx(t)); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if runs.Load() != 3 {
		t.Fatalf("runs = %d", runs.Load())
	}
}

func TestWaitHonorsDeadline(t *testing.T) {
	t.Parallel()
	s := New(context.Background(), WithLogger(logx.Nop()))
	release := make(chan struct{})
	s.Go("stuck", func(context.Context) error {
		<-release
		return nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
	close(release)
	if err := s.Wait(waitCtx(t)); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}
