package poller

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"jobpulse/internal/storage"
	logx "jobpulse/pkg/logx"
)

type fakeJobs struct {
	mu     sync.Mutex
	polled []int64
	failOn int64
}

func (f *fakeJobs) PollEmails(_ context.Context, id int64) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polled = append(f.polled, id)
	if id == f.failOn {
		return nil, errors.New("backend down")
	}
	return nil, nil
}

func (f *fakeJobs) MigrateEmails(context.Context, int64) (json.RawMessage, error) {
	return nil, nil
}

func openStore(t *testing.T) storage.Store {
	t.Helper()
	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "users.json")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seed(t *testing.T, st storage.Store, email string, linked bool) storage.User {
	t.Helper()
	u, err := st.Upsert(context.Background(), storage.User{Email: email})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if linked {
		if u, err = st.LinkDiscord(context.Background(), email, storage.Link{DiscordID: "d-" + email, GuildID: "g"}); err != nil {
			t.Fatalf("LinkDiscord: %v", err)
		}
	}
	return u
}

func TestSweepPollsLinkedUsersOnly(t *testing.T) {
	t.Parallel()
	st := openStore(t)
	a := seed(t, st, "a@x.io", true)
	_ = seed(t, st, "b@x.io", false)
	c := seed(t, st, "c@x.io", true)

	jobs := &fakeJobs{failOn: a.ID}
	p := New(Config{RatePerSecond: 1000, Burst: 10}, st, jobs, logx.Nop())
	res, err := p.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res != (Result{Users: 2, Polled: 1, Failed: 1}) {
		t.Fatalf("result = %+v", res)
	}
	if len(jobs.polled) != 2 || jobs.polled[0] == jobs.polled[1] {
		t.Fatalf("polled = %v", jobs.polled)
	}
	for _, id := range jobs.polled {
		if id != a.ID && id != c.ID {
			t.Fatalf("polled unexpected user %d", id)
		}
	}
}

func TestSweepStopsOnCancel(t *testing.T) {
	t.Parallel()
	st := openStore(t)
	seed(t, st, "a@x.io", true)
	seed(t, st, "b@x.io", true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := New(Config{}, st, &fakeJobs{}, logx.Nop())
	if _, err := p.Sweep(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestSweepWithoutStorage(t *testing.T) {
	t.Parallel()
	p := New(Config{}, nil, &fakeJobs{}, logx.Nop())
	if _, err := p.Sweep(context.Background()); !errors.Is(err, storage.ErrDisabled) {
		t.Fatalf("err = %v", err)
	}
}
