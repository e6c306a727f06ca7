package msgsync

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	logx "jobpulse/pkg/logx"
)

func TestParseWebhookURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in        string
		id, token string
		wantErr   bool
	}{
		{"https://discord.com/api/webhooks/123/abc", "123", "abc", false},
		{"https://discord.com/api/webhooks/123/abc/", "123", "abc", false},
		{"https://discord.com/api/webhooks/123/abc?wait=true", "123", "abc", false},
		{"https://discord.com/onlyone", "", "", true},
		{"", "", "", true},
		{"://bad", "", "", true},
	}
	for _, tt := range tests {
		id, token, err := ParseWebhookURL(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("%q: err = %v", tt.in, err)
		}
		if err != nil {
			if KindOf(err) != KindResolution {
				t.Fatalf("%q: kind = %q", tt.in, KindOf(err))
			}
			continue
		}
		if id != tt.id || token != tt.token {
			t.Fatalf("%q: got %q/%q", tt.in, id, token)
		}
	}
}

func TestResolveCachesByWebhookID(t *testing.T) {
	t.Parallel()
	api := newFakeWebhooks()
	api.add("w1", "chan-1")
	r := NewResolver(api, NewMemoryCache(time.Minute), logx.Nop())

	for i := 0; i < 3; i++ {
		ch, err := r.Resolve(context.Background(), "https://d/api/webhooks/w1/tok")
		if err != nil || ch != "chan-1" {
			t.Fatalf("Resolve: %q, %v", ch, err)
		}
	}
	if api.lookups != 1 {
		t.Fatalf("lookups = %d", api.lookups)
	}
}

func TestResolveCacheIsBoundToToken(t *testing.T) {
	t.Parallel()
	api := newFakeWebhooks()
	api.add("w1", "chan-1")
	r := NewResolver(api, NewMemoryCache(time.Minute), logx.Nop())

	if _, err := r.Resolve(context.Background(), "https://d/api/webhooks/w1/tok"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	_, err := r.Resolve(context.Background(), "https://d/api/webhooks/w1/forged")
	if KindOf(err) != KindResolution {
		t.Fatalf("wrong token resolved from cache: %v", err)
	}
	if api.lookups != 2 {
		t.Fatalf("lookups = %d, want 2", api.lookups)
	}
}

func TestResolveNotFoundIsResolutionError(t *testing.T) {
	t.Parallel()
	r := NewResolver(newFakeWebhooks(), nil, logx.Nop())
	_, err := r.Resolve(context.Background(), "https://d/api/webhooks/missing/tok")
	if KindOf(err) != KindResolution {
		t.Fatalf("want resolution error, got %v", err)
	}
	if got := err.Error(); got == "" || strings.Contains(got, "tok") {
		t.Fatalf("error leaks token or is empty: %q", got)
	}
}

func TestMemoryCacheExpires(t *testing.T) {
	t.Parallel()
	c := NewMemoryCache(time.Minute)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	c.Set(context.Background(), "w1", "chan-1")
	if ch, ok := c.Get(context.Background(), "w1"); !ok || ch != "chan-1" {
		t.Fatalf("Get = %q, %v", ch, ok)
	}
	now = now.Add(time.Minute)
	if _, ok := c.Get(context.Background(), "w1"); ok {
		t.Fatal("entry should have expired")
	}
	if c.Len() != 0 {
		t.Fatalf("len = %d", c.Len())
	}
}

func TestMemoryCacheConcurrentUse(t *testing.T) {
	t.Parallel()
	c := NewMemoryCache(0)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set(context.Background(), "w", "c")
				c.Get(context.Background(), "w")
			}
		}()
	}
	wg.Wait()
	if ch, ok := c.Get(context.Background(), "w"); !ok || ch != "c" {
		t.Fatalf("Get = %q, %v", ch, ok)
	}
}

func TestRedisCacheDefaults(t *testing.T) {
	t.Parallel()
	c := NewRedisCache("127.0.0.1:0", 0, "", 0, logx.Nop())
	defer c.Close()
	if c.prefix != "jobpulse:webhook:" || c.ttl != DefaultCacheTTL {
		t.Fatalf("prefix=%q ttl=%v", c.prefix, c.ttl)
	}
}
