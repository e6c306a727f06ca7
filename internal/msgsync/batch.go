package msgsync

import (
	"context"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	logx "jobpulse/pkg/logx"
)

type BatchOptions struct {
	// Workers > 1 runs items in parallel. Outcomes keep request order either way.
	Workers int
	// ItemTimeout bounds one item's pipeline. Zero means no bound.
	ItemTimeout time.Duration
}

// BatchRunner syncs posted update cards: resolve, fetch, patch, write back.
// Each item fails on its own; a batch never aborts.
type BatchRunner struct {
	res  *Resolver
	api  WebhookAPI
	opts atomic.Pointer[BatchOptions]
	log  logx.Logger
}

func NewBatchRunner(d Deps, opts BatchOptions) *BatchRunner {
	log := d.Log.With(logx.String("comp", "msgsync.batch"))
	r := &BatchRunner{
		res: NewResolver(d.Webhooks, d.Cache, d.Log),
		api: d.Webhooks,
		log: log,
	}
	r.SetOptions(opts)
	return r
}

// SetOptions swaps worker count and timeout; batches already running keep
// the options they started with.
func (r *BatchRunner) SetOptions(opts BatchOptions) {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	r.opts.Store(&opts)
}

func (r *BatchRunner) Options() BatchOptions { return *r.opts.Load() }

// Run returns exactly one outcome per request, in request order.
func (r *BatchRunner) Run(ctx context.Context, reqs []UpdateRequest) []UpdateOutcome {
	opts := r.Options()
	out := make([]UpdateOutcome, len(reqs))

	if opts.Workers <= 1 || len(reqs) <= 1 {
		for i := range reqs {
			out[i] = r.runOne(ctx, reqs[i], opts.ItemTimeout)
		}
	} else {
		r.runParallel(ctx, reqs, out, opts)
	}

	failed := 0
	for _, o := range out {
		if !o.Success {
			failed++
		}
	}
	r.log.Info("update batch done", logx.Int("items", len(reqs)), logx.Int("failed", failed), logx.Int("workers", opts.Workers))
	return out
}

// runParallel writes each outcome into its own slot. A panicking item is
// re-raised on the caller's goroutine once every worker stopped.
func (r *BatchRunner) runParallel(ctx context.Context, reqs []UpdateRequest, out []UpdateOutcome, opts BatchOptions) {
	jobs := make(chan int)
	var (
		wg        sync.WaitGroup
		panicOnce sync.Once
		panicked  any
	)
	workers := min(opts.Workers, len(reqs))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					panicOnce.Do(func() { panicked = p })
					for range jobs {
					}
				}
			}()
			for i := range jobs {
				out[i] = r.runOne(ctx, reqs[i], opts.ItemTimeout)
			}
		}()
	}
	for i := range reqs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	if panicked != nil {
		panic(panicked)
	}
}

func (r *BatchRunner) runOne(ctx context.Context, req UpdateRequest, timeout time.Duration) UpdateOutcome {
	msgID := strings.TrimSpace(req.MessageID)
	chID, err := r.apply(ctx, msgID, req, timeout)
	if err != nil {
		kind := KindOf(err)
		if kind == "" {
			kind = KindTransport
		}
		r.log.Debug("update item failed", logx.String("message_id", msgID), logx.String("kind", string(kind)), logx.Err(err))
		return UpdateOutcome{MessageID: msgID, Error: err.Error(), ErrorKind: kind}
	}
	return UpdateOutcome{Success: true, MessageID: msgID, ChannelID: chID}
}

func (r *BatchRunner) apply(ctx context.Context, msgID string, req UpdateRequest, timeout time.Duration) (string, error) {
	if msgID == "" {
		return "", &ValidationError{Field: "messageId"}
	}
	if strings.TrimSpace(req.WebhookURL) == "" {
		return "", &ValidationError{Field: "webhookUrl"}
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ref, chID, err := r.res.resolve(ctx, req.WebhookURL)
	if err != nil {
		return "", err
	}

	msg, err := r.api.WebhookMessage(ctx, ref.id, ref.token, msgID)
	if err != nil {
		return "", asTransport("fetch message", err)
	}
	if msg == nil {
		return "", &NotFoundError{Resource: "message", ID: msgID}
	}

	embeds := slices.Clone(msg.Embeds)
	if len(embeds) == 0 {
		embeds = []Embed{{}}
	}
	i := cardIndex(embeds)
	embeds[i] = Patch(embeds[i], StatusUpdate{Status: req.Status, Date: req.Date})
	if err := r.api.EditWebhookMessage(ctx, ref.id, ref.token, msgID, embeds); err != nil {
		return "", asTransport("edit message", err)
	}
	return chID, nil
}
