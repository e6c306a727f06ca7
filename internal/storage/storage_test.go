package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	logx "jobpulse/pkg/logx"
)

func openDrivers(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	out := map[string]Store{}
	for driver, file := range map[string]string{"sqlite": "users.sqlite", "file": "users.json"} {
		st, err := Open(Config{Driver: driver, Path: filepath.Join(dir, file)}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%s): %v", driver, err)
		}
		t.Cleanup(func() { _ = st.Close() })
		out[driver] = st
	}
	return out
}

func TestUserLifecycle(t *testing.T) {
	for name, st := range openDrivers(t) {
		st := st
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a, err := st.Upsert(ctx, User{Email: " ada@example.com "})
			if err != nil || a.ID == 0 || a.Email != "ada@example.com" {
				t.Fatalf("Upsert: %+v, %v", a, err)
			}
			b, err := st.Upsert(ctx, User{Email: "bob@example.com"})
			if err != nil || b.ID == a.ID {
				t.Fatalf("Upsert b: %+v, %v", b, err)
			}

			if _, err := st.GetByDiscord(ctx, "d1", "g1"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("GetByDiscord before link: %v", err)
			}
			linked, err := st.LinkDiscord(ctx, "ada@example.com", Link{DiscordID: "d1", GuildID: "g1", Webhook: "https://d/api/webhooks/1/x"})
			if err != nil || linked.ID != a.ID || linked.Webhook == "" {
				t.Fatalf("LinkDiscord: %+v, %v", linked, err)
			}
			got, err := st.GetByDiscord(ctx, "d1", "g1")
			if err != nil || got.Email != "ada@example.com" {
				t.Fatalf("GetByDiscord: %+v, %v", got, err)
			}

			users, err := st.ListLinked(ctx)
			if err != nil || len(users) != 1 || users[0].ID != a.ID {
				t.Fatalf("ListLinked: %+v, %v", users, err)
			}

			if _, err := st.LinkDiscord(ctx, "nobody@example.com", Link{DiscordID: "x"}); !errors.Is(err, ErrNotFound) {
				t.Fatalf("LinkDiscord unknown: %v", err)
			}
			if _, err := st.GetByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("GetByEmail unknown: %v", err)
			}

			again, err := st.Upsert(ctx, User{Email: "ada@example.com", DiscordID: "d2", GuildID: "g2"})
			if err != nil || again.ID != a.ID {
				t.Fatalf("re-Upsert kept id? %+v, %v", again, err)
			}
		})
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "users.json")
	ctx := context.Background()

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	u, _ := st.Upsert(ctx, User{Email: "ada@example.com"})
	if _, err := st.LinkDiscord(ctx, u.Email, Link{DiscordID: "d", GuildID: "g"}); err != nil {
		t.Fatalf("LinkDiscord: %v", err)
	}
	_ = st.Close()

	st2, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := st2.GetByDiscord(ctx, "d", "g")
	if err != nil || got.ID != u.ID {
		t.Fatalf("after reopen: %+v, %v", got, err)
	}
	next, _ := st2.Upsert(ctx, User{Email: "new@example.com"})
	if next.ID <= u.ID {
		t.Fatalf("id reused: %d", next.ID)
	}
}

func TestOpenDisabledAndUnknown(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{Driver: "none"}, logx.Nop())
	if st != nil || err != nil {
		t.Fatalf("none: %v, %v", st, err)
	}
	if _, err := Open(Config{Driver: "mongo"}, logx.Nop()); err == nil {
		t.Fatal("expected unknown driver error")
	}
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("expected missing dsn error")
	}
}

func TestRebind(t *testing.T) {
	t.Parallel()
	got := rebind(`UPDATE users SET a = ?, b = ? WHERE email = ?`)
	if want := `UPDATE users SET a = $1, b = $2 WHERE email = $3`; got != want {
		t.Fatalf("rebind = %q", got)
	}
}
