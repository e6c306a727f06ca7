package msgsync

import (
	"context"
	"testing"
	"time"

	logx "jobpulse/pkg/logx"
)

func collect(t *testing.T, api HistoryAPI, cutoff time.Time) ([]Message, WalkStats, error) {
	t.Helper()
	var got []Message
	stats, err := NewPaginator(api, logx.Nop()).Walk(context.Background(), "c1", cutoff, func(m Message) bool {
		got = append(got, m)
		return true
	})
	return got, stats, err
}

func TestWalkStopsOnEmptyBatch(t *testing.T) {
	t.Parallel()
	h := &fakeHistory{}
	for i := 1; i <= 150; i++ {
		h.msgs = append(h.msgs, chatMsg(i))
	}
	got, stats, err := collect(t, h, time.Time{})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(got) != 150 || stats.Stop != StopEmpty || stats.Batches != 3 {
		t.Fatalf("got %d msgs, stats=%+v", len(got), stats)
	}
	if h.calls[0] != "" || h.calls[1] != h.msgs[99].ID || h.calls[2] != h.msgs[149].ID {
		t.Fatalf("cursors = %v", h.calls)
	}
}

func TestWalkCutoffIsInclusive(t *testing.T) {
	t.Parallel()
	h := &fakeHistory{}
	for i := 1; i <= 10; i++ {
		h.msgs = append(h.msgs, chatMsg(i))
	}
	cutoff := h.msgs[4].Timestamp // exactly the 5th message

	got, stats, err := collect(t, h, cutoff)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(got) != 5 || stats.Stop != StopCutoff || stats.Batches != 1 {
		t.Fatalf("got %d msgs, stats=%+v", len(got), stats)
	}
	for _, m := range got {
		if m.Timestamp.Before(cutoff) {
			t.Fatalf("message %s older than cutoff", m.ID)
		}
	}
}

func TestWalkCapsAtTenBatches(t *testing.T) {
	t.Parallel()
	h := &fakeHistory{}
	for i := 1; i <= 1500; i++ {
		h.msgs = append(h.msgs, updateMsg(i))
	}
	got, stats, err := collect(t, h, baseTime.Add(-10000*time.Hour))
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if stats.Stop != StopCap || stats.Batches != MaxBatches || len(h.calls) != MaxBatches {
		t.Fatalf("stats=%+v calls=%d", stats, len(h.calls))
	}
	if len(got) != MaxBatches*BatchSize {
		t.Fatalf("visited %d", len(got))
	}
}

func TestWalkTransportErrorAborts(t *testing.T) {
	t.Parallel()
	h := &fakeHistory{failAt: 2}
	for i := 1; i <= 250; i++ {
		h.msgs = append(h.msgs, chatMsg(i))
	}
	_, stats, err := collect(t, h, time.Time{})
	if KindOf(err) != KindTransport {
		t.Fatalf("want transport error, got %v", err)
	}
	if stats.Batches != 1 || len(h.calls) != 2 {
		t.Fatalf("stats=%+v calls=%d", stats, len(h.calls))
	}
}

func TestWalkVisitorCanStop(t *testing.T) {
	t.Parallel()
	h := &fakeHistory{}
	for i := 1; i <= 300; i++ {
		h.msgs = append(h.msgs, chatMsg(i))
	}
	n := 0
	stats, err := NewPaginator(h, logx.Nop()).Walk(context.Background(), "c1", time.Time{}, func(Message) bool {
		n++
		return n < 3
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if stats.Stop != StopVisitor || n != 3 || len(h.calls) != 1 {
		t.Fatalf("stats=%+v n=%d calls=%d", stats, n, len(h.calls))
	}
}

func TestWalkHonorsCanceledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h := &fakeHistory{msgs: []Message{chatMsg(1)}}
	_, err := NewPaginator(h, logx.Nop()).Walk(ctx, "c1", time.Time{}, func(Message) bool { return true })
	if err == nil || len(h.calls) != 0 {
		t.Fatalf("err=%v calls=%d", err, len(h.calls))
	}
}

func TestExitReasonPrecedence(t *testing.T) {
	t.Parallel()
	p := &Paginator{maxBatches: 10}
	tests := []struct {
		name    string
		n       int
		batches int
		crossed bool
		want    StopReason
	}{
		{"continue", 100, 3, false, StopNone},
		{"empty", 0, 10, false, StopEmpty},
		{"cutoff before cap", 100, 10, true, StopCutoff},
		{"cap", 100, 10, false, StopCap},
	}
	for _, tt := range tests {
		if got := p.exitReason(tt.n, tt.batches, tt.crossed); got != tt.want {
			t.Fatalf("%s: got %q want %q", tt.name, got, tt.want)
		}
	}
}
