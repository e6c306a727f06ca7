package commands

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"jobpulse/internal/msgsync"
	"jobpulse/internal/storage"
	kit "jobpulse/internal/transport"
)

type sent struct {
	op        string // reply, defer, edit, send
	target    string // interaction id or channel id
	text      string
	ephemeral bool
}

type fakeResponder struct {
	mu   sync.Mutex
	log  []sent
	fail error
}

func (f *fakeResponder) add(s sent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, s)
	return f.fail
}

func (f *fakeResponder) Reply(_ context.Context, cmd *kit.Command, text string, eph bool) error {
	return f.add(sent{op: "reply", target: cmd.ID, text: text, ephemeral: eph})
}

func (f *fakeResponder) Defer(_ context.Context, cmd *kit.Command) error {
	return f.add(sent{op: "defer", target: cmd.ID})
}

func (f *fakeResponder) EditReply(_ context.Context, cmd *kit.Command, text string) error {
	return f.add(sent{op: "edit", target: cmd.ID, text: text})
}

func (f *fakeResponder) SendMessage(_ context.Context, channelID, text string) error {
	return f.add(sent{op: "send", target: channelID, text: text})
}

func (f *fakeResponder) sent() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.log...)
}

type fakeRegistrar struct {
	mu    sync.Mutex
	specs []kit.CommandSpec
}

func (f *fakeRegistrar) RegisterCommands(_ context.Context, cmds []kit.CommandSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.specs = cmds
	return nil
}

type fakeWebhooks struct {
	url   string
	err   error
	calls int
}

func (f *fakeWebhooks) CreateWebhook(context.Context, string, string) (string, error) {
	f.calls++
	return f.url, f.err
}

// memStore is an in-memory storage.Store.
type memStore struct {
	mu    sync.Mutex
	users []storage.User
	err   error
}

func (m *memStore) GetByEmail(_ context.Context, email string) (storage.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return storage.User{}, m.err
	}
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return storage.User{}, storage.ErrNotFound
}

func (m *memStore) GetByDiscord(_ context.Context, discordID, guildID string) (storage.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return storage.User{}, m.err
	}
	for _, u := range m.users {
		if u.DiscordID == discordID && u.GuildID == guildID {
			return u, nil
		}
	}
	return storage.User{}, storage.ErrNotFound
}

func (m *memStore) LinkDiscord(_ context.Context, email string, l storage.Link) (storage.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, u := range m.users {
		if u.Email == email {
			u.DiscordID, u.GuildID, u.Webhook = l.DiscordID, l.GuildID, l.Webhook
			m.users[i] = u
			return u, nil
		}
	}
	return storage.User{}, storage.ErrNotFound
}

func (m *memStore) ListLinked(context.Context) ([]storage.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.User
	for _, u := range m.users {
		if u.Linked() {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memStore) Upsert(_ context.Context, u storage.User) (storage.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = int64(len(m.users) + 1)
	m.users = append(m.users, u)
	return u, nil
}

func (m *memStore) Close() error { return nil }

type fakeJobs struct {
	mu       sync.Mutex
	polled   []int64
	migrated []int64
	err      error
}

func (f *fakeJobs) PollEmails(_ context.Context, id int64) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polled = append(f.polled, id)
	return json.RawMessage(`{}`), f.err
}

func (f *fakeJobs) MigrateEmails(_ context.Context, id int64) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.migrated = append(f.migrated, id)
	return json.RawMessage(`{}`), f.err
}

type fakeSync struct {
	got msgsync.RetrievalQuery
	res msgsync.RetrievalResult
	err error
}

func (f *fakeSync) Query(_ context.Context, q msgsync.RetrievalQuery) (msgsync.RetrievalResult, error) {
	f.got = q
	return f.res, f.err
}

var errBoom = errors.New("boom")
