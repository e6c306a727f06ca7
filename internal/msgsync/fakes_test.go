package msgsync

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"
)

var baseTime = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

// fakeHistory serves a newest-first message list the way the REST API does.
type fakeHistory struct {
	mu     sync.Mutex
	msgs   []Message
	calls  []string // cursors seen
	failAt int      // 1-based call number that fails; 0 = never
}

func (f *fakeHistory) ChannelMessages(_ context.Context, _ string, limit int, before string) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, before)
	if f.failAt > 0 && len(f.calls) == f.failAt {
		return nil, &TransportError{Op: "GET messages", Status: 500, Body: "boom"}
	}
	start := 0
	if before != "" {
		start = len(f.msgs)
		for i, m := range f.msgs {
			if m.ID == before {
				start = i + 1
				break
			}
		}
	}
	end := min(start+limit, len(f.msgs))
	if start >= end {
		return []Message{}, nil
	}
	return append([]Message(nil), f.msgs[start:end]...), nil
}

// updateMsg returns a job update card posted i hours before baseTime.
func updateMsg(i int) Message {
	return Message{
		ID:        strconv.Itoa(100000 - i),
		Timestamp: baseTime.Add(-time.Duration(i) * time.Hour),
		Embeds: []Embed{{
			Title:  "Job Update: Acme #" + strconv.Itoa(i),
			Fields: []Field{{Name: "Company", Value: "Acme"}, {Name: StatusField, Value: "applied"}},
		}},
	}
}

func chatMsg(i int) Message {
	return Message{
		ID:        strconv.Itoa(100000 - i),
		Timestamp: baseTime.Add(-time.Duration(i) * time.Hour),
		Content:   "hello",
	}
}

type webhookRecord struct {
	channelID string
	msgs      map[string]*Message
}

// fakeWebhooks keeps webhooks and their messages in memory.
type fakeWebhooks struct {
	mu      sync.Mutex
	hooks   map[string]*webhookRecord // by webhook id
	lookups int
	edits   map[string][]Embed
	editErr error
}

func newFakeWebhooks() *fakeWebhooks {
	return &fakeWebhooks{hooks: map[string]*webhookRecord{}, edits: map[string][]Embed{}}
}

func (f *fakeWebhooks) add(webhookID, channelID string, msgs ...Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := &webhookRecord{channelID: channelID, msgs: map[string]*Message{}}
	for i := range msgs {
		m := msgs[i]
		rec.msgs[m.ID] = &m
	}
	f.hooks[webhookID] = rec
}

func (f *fakeWebhooks) WebhookChannel(_ context.Context, id, token string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	rec, ok := f.hooks[id]
	if !ok || token != "tok" {
		return "", &NotFoundError{Resource: "webhook", ID: id}
	}
	return rec.channelID, nil
}

func (f *fakeWebhooks) WebhookMessage(_ context.Context, id, _ string, msgID string) (*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.hooks[id]
	if !ok {
		return nil, &NotFoundError{Resource: "webhook", ID: id}
	}
	m, ok := rec.msgs[msgID]
	if !ok {
		return nil, &NotFoundError{Resource: "message", ID: msgID}
	}
	cp := *m
	return &cp, nil
}

func (f *fakeWebhooks) EditWebhookMessage(_ context.Context, id, _ string, msgID string, embeds []Embed) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return f.editErr
	}
	rec, ok := f.hooks[id]
	if !ok {
		return errors.New("unknown webhook")
	}
	m, ok := rec.msgs[msgID]
	if !ok {
		return &NotFoundError{Resource: "message", ID: msgID}
	}
	m.Embeds = embeds
	f.edits[msgID] = embeds
	return nil
}

func strp(s string) *string { return &s }
func intp(i int) *int       { return &i }
