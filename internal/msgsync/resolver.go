package msgsync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"

	logx "jobpulse/pkg/logx"
)

type webhookRef struct {
	id    string
	token string
}

// cacheKey binds the id to a digest of the token so a rotated or wrong token
// never reuses a channel resolved with another one. The raw token stays out
// of shared caches.
func (w webhookRef) cacheKey() string {
	sum := sha256.Sum256([]byte(w.token))
	return w.id + ":" + hex.EncodeToString(sum[:8])
}

// ParseWebhookURL returns the webhook id and token: the last two non-empty
// path segments of raw.
func ParseWebhookURL(raw string) (id, token string, err error) {
	u, perr := url.Parse(strings.TrimSpace(raw))
	if perr != nil {
		return "", "", &ResolutionError{Reason: "malformed webhook url", Err: perr}
	}
	var segs []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	if len(segs) < 2 {
		return "", "", &ResolutionError{Reason: "malformed webhook url: expected .../{id}/{token}"}
	}
	return segs[len(segs)-2], segs[len(segs)-1], nil
}

// Resolver recovers the channel a webhook posts into.
type Resolver struct {
	api   WebhookAPI
	cache ChannelCache
	log   logx.Logger
}

func NewResolver(api WebhookAPI, cache ChannelCache, log logx.Logger) *Resolver {
	if cache == nil {
		cache = NopCache{}
	}
	return &Resolver{api: api, cache: cache, log: log.With(logx.String("comp", "msgsync.resolver"))}
}

// Resolve returns the channel id owning webhookURL. Every failure is a
// ResolutionError.
func (r *Resolver) Resolve(ctx context.Context, webhookURL string) (string, error) {
	_, ch, err := r.resolve(ctx, webhookURL)
	return ch, err
}

func (r *Resolver) resolve(ctx context.Context, webhookURL string) (webhookRef, string, error) {
	id, token, err := ParseWebhookURL(webhookURL)
	if err != nil {
		return webhookRef{}, "", err
	}
	ref := webhookRef{id: id, token: token}

	if ch, ok := r.cache.Get(ctx, ref.cacheKey()); ok {
		return ref, ch, nil
	}

	ch, err := r.api.WebhookChannel(ctx, id, token)
	if err != nil {
		reason := "lookup failed"
		if KindOf(err) == KindNotFound {
			reason = "webhook no longer exists"
		}
		return ref, "", &ResolutionError{WebhookID: id, Reason: reason, Err: err}
	}
	if ch == "" {
		return ref, "", &ResolutionError{WebhookID: id, Reason: "webhook has no channel"}
	}
	r.cache.Set(ctx, ref.cacheKey(), ch)
	r.log.Debug("webhook resolved", logx.String("webhook_id", id), logx.String("channel_id", ch))
	return ref, ch, nil
}
