package commands

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"jobpulse/internal/msgsync"
	"jobpulse/internal/storage"
	kit "jobpulse/internal/transport"
	logx "jobpulse/pkg/logx"
)

func newReq(cmd *kit.Command) *Request {
	return &Request{Cmd: cmd, ReqID: "rid", Log: logx.Nop()}
}

func setupCmd(email string, perms int64) *kit.Command {
	return &kit.Command{
		ID: "i1", Name: "setup", UserID: "u1", GuildID: "g1", ChannelID: "c1",
		AppPermissions: perms,
		Options:        map[string]string{"email": email},
	}
}

func TestSetup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cmd      *kit.Command
		existing string // webhook already stored
		hookErr  error
		want     string
		wantHook string
	}{
		{name: "missing permission", cmd: setupCmd("a@x.io", 0), want: "I need the `MANAGE_CHANNELS` permission to modify channel settings."},
		{name: "unknown email", cmd: setupCmd("nobody@x.io", kit.PermissionManageChannels), want: "Email not found. Please register first."},
		{name: "creates webhook", cmd: setupCmd("a@x.io", kit.PermissionManageChannels), want: "Bot successfully set up and linked to your account!", wantHook: "https://hook/new"},
		{name: "keeps webhook", cmd: setupCmd("a@x.io", kit.PermissionManageChannels), existing: "https://hook/old", want: "Bot successfully set up and linked to your account!", wantHook: "https://hook/old"},
		{name: "webhook failure still links", cmd: setupCmd("a@x.io", kit.PermissionManageChannels), hookErr: errBoom, want: "Bot successfully set up and linked to your account!"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := &memStore{users: []storage.User{{ID: 1, Email: "a@x.io", Webhook: tt.existing}}}
			hooks := &fakeWebhooks{url: "https://hook/new", err: tt.hookErr}
			res, err := Setup{Users: store, Webhooks: hooks}.Execute(context.Background(), newReq(tt.cmd))
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if res.Text != tt.want {
				t.Fatalf("text = %q, want %q", res.Text, tt.want)
			}
			if tt.want != "Bot successfully set up and linked to your account!" {
				return
			}
			u, err := store.GetByDiscord(context.Background(), "u1", "g1")
			if err != nil {
				t.Fatalf("user not linked: %v", err)
			}
			if u.Webhook != tt.wantHook {
				t.Fatalf("webhook = %q, want %q", u.Webhook, tt.wantHook)
			}
			if tt.existing != "" && hooks.calls != 0 {
				t.Fatalf("webhook created although one exists")
			}
		})
	}
}

func TestSetupStoreFailure(t *testing.T) {
	t.Parallel()
	store := &memStore{err: errBoom}
	res, err := Setup{Users: store}.Execute(context.Background(), newReq(setupCmd("a@x.io", kit.PermissionManageChannels)))
	if !errors.Is(err, errBoom) {
		t.Fatalf("err = %v", err)
	}
	if res.Text != "There was an error setting up the bot!" || !res.Ephemeral {
		t.Fatalf("res = %+v", res)
	}
}

func TestBackendJob(t *testing.T) {
	t.Parallel()
	store := &memStore{users: []storage.User{{ID: 9, Email: "a@x.io", DiscordID: "u1", GuildID: "g1"}}}

	tests := []struct {
		name    string
		kind    Kind
		user    string
		jobErr  error
		want    string
		wantErr bool
	}{
		{name: "poll ok", kind: KindPoll, user: "u1", want: "✅ Successfully polled emails"},
		{name: "poll fails", kind: KindPoll, user: "u1", jobErr: errBoom, want: "❌ Failed to poll emails", wantErr: true},
		{name: "migrate ok", kind: KindMigrate, user: "u1", want: "✅ Successfully migrated emails"},
		{name: "unknown user", kind: KindMigrate, user: "other", want: "User not found. Please register first."},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			jobs := &fakeJobs{err: tt.jobErr}
			deferred := 0
			req := newReq(&kit.Command{ID: "i", Name: tt.kind.Name(), UserID: tt.user, GuildID: "g1"})
			req.Defer = func(context.Context) error { deferred++; return nil }

			res, err := BackendJob{Kind: tt.kind, Users: store, Jobs: jobs}.Execute(context.Background(), req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if res.Text != tt.want {
				t.Fatalf("text = %q, want %q", res.Text, tt.want)
			}
			if tt.user != "u1" {
				if deferred != 0 || len(jobs.polled)+len(jobs.migrated) != 0 {
					t.Fatal("backend called for unknown user")
				}
				return
			}
			if deferred != 1 || !res.Deferred {
				t.Fatalf("deferred = %d, res.Deferred = %v", deferred, res.Deferred)
			}
			got := jobs.polled
			if tt.kind == KindMigrate {
				got = jobs.migrated
			}
			if len(got) != 1 || got[0] != 9 {
				t.Fatalf("backend calls = %v", got)
			}
		})
	}
}

func TestHistory(t *testing.T) {
	t.Parallel()
	sync := &fakeSync{res: msgsync.RetrievalResult{Page: 2, Total: 3, TotalPages: 2, Messages: []msgsync.Message{{
		ID:        "1",
		Timestamp: time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC),
		Embeds:    []msgsync.Embed{{Title: "Job Update: Acme", Fields: []msgsync.Field{{Name: msgsync.StatusField, Value: "Interview"}}}},
	}}}}
	req := newReq(&kit.Command{ID: "i", Name: "history", ChannelID: "c9", Options: map[string]string{"date": "2025-03-01", "page": "2", "limit": "99"}})

	res, err := History{Sync: sync}.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if sync.got.ChannelID != "c9" || sync.got.Page != 2 || sync.got.Limit != maxHistoryLimit {
		t.Fatalf("query = %+v", sync.got)
	}
	if want := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC); !sync.got.Cutoff.Equal(want) {
		t.Fatalf("cutoff = %v", sync.got.Cutoff)
	}
	for _, s := range []string{"page 2/2", "3 total", "Mar 9, 2025", "**Acme**", "Interview"} {
		if !strings.Contains(res.Text, s) {
			t.Fatalf("text %q missing %q", res.Text, s)
		}
	}
}

func TestHistoryRejectsBadDate(t *testing.T) {
	t.Parallel()
	sync := &fakeSync{}
	req := newReq(&kit.Command{Name: "history", Options: map[string]string{"date": "yesterday"}})
	res, err := History{Sync: sync}.Execute(context.Background(), req)
	if err != nil || !res.Ephemeral || !strings.Contains(res.Text, "Invalid date") {
		t.Fatalf("res = %+v, err = %v", res, err)
	}
}

func TestFormatHistoryEmptyAndTruncated(t *testing.T) {
	t.Parallel()
	if got := FormatHistory(msgsync.RetrievalResult{Page: 1}); got != "No job updates found." {
		t.Fatalf("empty = %q", got)
	}

	var msgs []msgsync.Message
	for i := 0; i < 100; i++ {
		msgs = append(msgs, msgsync.Message{Embeds: []msgsync.Embed{{Title: "Job Update: " + strings.Repeat("x", 60)}}})
	}
	got := FormatHistory(msgsync.RetrievalResult{Page: 1, Total: 100, TotalPages: 1, Messages: msgs})
	if len(got) > messageLimit {
		t.Fatalf("len = %d", len(got))
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("missing truncation marker")
	}
}
