package logx

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingSender struct {
	mu   sync.Mutex
	msgs []string
	got  chan struct{}
}

func (r *recordingSender) SendAlert(ctx context.Context, chatID int64, threadID int, text string) error {
	r.mu.Lock()
	r.msgs = append(r.msgs, text)
	r.mu.Unlock()
	select {
	case r.got <- struct{}{}:
	default:
	}
	return nil
}

func TestFormatAlertSortsFields(t *testing.T) {
	line := []byte(`{"level":"warn","time":"x","message":"fetch failed","zeta":1,"alpha":"a"}` + "\n")
	got := formatAlert(line)
	want := "[WARN] fetch failed\n- alpha=a\n- zeta=1"
	if got != want {
		t.Fatalf("formatAlert = %q, want %q", got, want)
	}
}

func TestFormatAlertNonJSON(t *testing.T) {
	if got := formatAlert([]byte("  plain text \n")); got != "plain text" {
		t.Fatalf("formatAlert = %q", got)
	}
}

func TestAlertSinkRespectsMinLevel(t *testing.T) {
	rec := &recordingSender{got: make(chan struct{}, 4)}
	svc, log := New(Config{
		Level: "debug",
		Alerts: AlertConfig{
			Enabled:    true,
			ChatID:     42,
			MinLevel:   "error",
			RatePerSec: 10,
		},
	}, rec)
	t.Cleanup(func() { _ = svc.Close() })

	log.Warn("below threshold")
	log.Error("boom", String("comp", "test"))

	select {
	case <-rec.got:
	case <-time.After(2 * time.Second):
		t.Fatal("alert was not delivered")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.msgs) != 1 {
		t.Fatalf("expected 1 alert, got %d: %v", len(rec.msgs), rec.msgs)
	}
	if !strings.HasPrefix(rec.msgs[0], "[ERROR] boom") {
		t.Fatalf("unexpected alert text: %q", rec.msgs[0])
	}
}

func TestZeroLoggerIsSafe(t *testing.T) {
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero logger should report IsZero")
	}
	l.Info("discarded", Int("n", 1))
	if l.With(String("k", "v")).IsZero() {
		t.Fatal("derived logger carries fields and should not be zero")
	}
}
