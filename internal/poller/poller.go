// Package poller asks the backend to poll mail for every linked user on a
// schedule.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"jobpulse/internal/backend"
	"jobpulse/internal/storage"
	logx "jobpulse/pkg/logx"
)

type Config struct {
	Enabled  bool
	Schedule string // see scheduler.ParseSchedule
	// RatePerSecond paces backend calls across users. Burst defaults to 1.
	RatePerSecond float64
	Burst         int
	Timeout       time.Duration // whole sweep
}

const (
	DefaultSchedule = "15m"
	DefaultRate     = 2.0
)

// Result summarizes one sweep.
type Result struct {
	Users  int
	Polled int
	Failed int
}

type Poller struct {
	users storage.Store
	jobs  backend.Jobs
	log   logx.Logger

	mu      sync.Mutex
	limiter *rate.Limiter
}

func New(cfg Config, users storage.Store, jobs backend.Jobs, log logx.Logger) *Poller {
	if log.IsZero() {
		log = logx.Nop()
	}
	p := &Poller{users: users, jobs: jobs, log: log.With(logx.String("comp", "poller"))}
	p.Apply(cfg)
	return p
}

// Apply updates the pacing. Safe during a sweep; the next wait uses it.
func (p *Poller) Apply(cfg Config) {
	rps := cfg.RatePerSecond
	if rps <= 0 {
		rps = DefaultRate
	}
	burst := max(cfg.Burst, 1)
	p.mu.Lock()
	if p.limiter == nil {
		p.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	} else {
		p.limiter.SetLimit(rate.Limit(rps))
		p.limiter.SetBurst(burst)
	}
	p.mu.Unlock()
}

// Sweep polls every linked user once. A failing user is logged and skipped;
// only listing users or cancellation aborts the sweep.
func (p *Poller) Sweep(ctx context.Context) (Result, error) {
	if p.users == nil {
		return Result{}, storage.ErrDisabled
	}
	if p.jobs == nil {
		return Result{}, errors.New("backend not configured")
	}
	users, err := p.users.ListLinked(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list linked users: %w", err)
	}

	p.mu.Lock()
	lim := p.limiter
	p.mu.Unlock()

	res := Result{Users: len(users)}
	start := time.Now()
	for _, u := range users {
		if err := lim.Wait(ctx); err != nil {
			return res, err
		}
		if _, err := p.jobs.PollEmails(ctx, u.ID); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.Failed++
			p.log.Warn("poll failed", logx.Int64("user_id", u.ID), logx.Err(err))
			continue
		}
		res.Polled++
	}
	p.log.Info("sweep done",
		logx.Int("users", res.Users),
		logx.Int("polled", res.Polled),
		logx.Int("failed", res.Failed),
		logx.Duration("took", time.Since(start)),
	)
	return res, nil
}
