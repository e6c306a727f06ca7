package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	logx "jobpulse/pkg/logx"
)

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg: cfg,
		log: log.With(logx.String("comp", "scheduler")),
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		defs:   map[string]*scheduleDef{},
	}
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

// Apply swaps the config. A timezone change restarts a running cron with
// every schedule re-registered.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	oldTZ := strings.TrimSpace(s.cfg.Timezone)
	s.cfg = cfg
	if s.c != nil && oldTZ != strings.TrimSpace(cfg.Timezone) {
		s.restartLocked()
	}
}

// Add registers (or replaces) a named schedule. spec follows ParseSchedule.
func (s *Service) Add(name, spec string, timeout time.Duration, job Job) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("schedule name required")
	}
	if job == nil {
		return errors.New("schedule job required")
	}
	ps, err := ParseSchedule(spec)
	if err != nil {
		return err
	}
	expr := ps.Cron
	if ps.Kind == SpecInterval {
		expr = "@every " + ps.Every.String()
	}
	if _, err := s.parser.Parse(expr); err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.defs[name]; ok && s.c != nil && old.entryID != 0 {
		s.c.Remove(old.entryID)
	}
	d := &scheduleDef{name: name, spec: expr, timeout: timeout, job: job}
	s.defs[name] = d
	if s.c != nil {
		return s.addCronLocked(d)
	}
	return nil
}

func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.defs[name]
	if !ok {
		return false
	}
	if s.c != nil && d.entryID != 0 {
		s.c.Remove(d.entryID)
	}
	delete(s.defs, name)
	return true
}

// Start starts triggering. Jobs receive a context derived from ctx.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.startLocked()
	s.log.Info("service started", logx.String("tz", s.loc.String()), logx.Int("schedules", len(s.defs)))
}

func (s *Service) startLocked() {
	s.loc = s.loadLocationLocked()
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))
	for _, d := range s.defs {
		_ = s.addCronLocked(d)
	}
	s.c.Start()
}

// restartLocked does not wait for in-flight runs; they hold no scheduler lock
// past their start.
func (s *Service) restartLocked() {
	s.c.Stop()
	s.startLocked()
	s.log.Info("service restarted", logx.String("tz", s.loc.String()))
}

// Stop stops triggering, cancels running jobs and waits for them within ctx.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	c, cancel := s.c, s.cancel
	s.c, s.cancel = nil, nil
	if cancel != nil {
		cancel()
	}
	s.mu.Unlock()
	if c == nil {
		return
	}

	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("jobs still running at stop")
	}
	s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
}

func (s *Service) addCronLocked(d *scheduleDef) error {
	id, err := s.c.AddFunc(d.spec, func() { s.trigger(d) })
	if err != nil {
		s.log.Error("schedule rejected", logx.String("name", d.name), logx.String("spec", d.spec), logx.Err(err))
		return err
	}
	d.entryID = id
	return nil
}

// RunNow triggers a schedule immediately, outside its cadence.
func (s *Service) RunNow(name string) bool {
	s.mu.Lock()
	d, ok := s.defs[name]
	running := s.c != nil
	s.mu.Unlock()
	if !ok || !running {
		return false
	}
	go s.trigger(d)
	return true
}

func (s *Service) trigger(d *scheduleDef) {
	s.mu.Lock()
	ctx := s.ctx
	if !s.cfg.Enabled || s.c == nil || ctx == nil || ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	timeout := d.timeout
	if timeout <= 0 {
		timeout = s.cfg.DefaultTimeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if !d.running.CompareAndSwap(false, true) {
		s.mu.Unlock()
		d.skipped.Add(1)
		s.log.Debug("schedule skipped, previous run still active", logx.String("name", d.name))
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()
	defer d.running.Store(false)

	d.runs.Add(1)
	start := time.Now()
	jctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := runJob(jctx, d.job)
	if err != nil {
		d.fails.Add(1)
		s.log.Warn("schedule run failed", logx.String("name", d.name), logx.Duration("dur", time.Since(start)), logx.Err(err))
		return
	}
	s.log.Debug("schedule run ok", logx.String("name", d.name), logx.Duration("dur", time.Since(start)))
}

func runJob(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return job(ctx)
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone, using local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{Enabled: s.cfg.Enabled, Running: s.c != nil, Timezone: s.cfg.Timezone}
	if s.loc != nil && snap.Timezone == "" {
		snap.Timezone = s.loc.String()
	}
	for _, d := range s.defs {
		it := ScheduleInfo{
			Name:    d.name,
			Spec:    d.spec,
			Timeout: d.timeout,
			Running: d.running.Load(),
			Runs:    d.runs.Load(),
			Skipped: d.skipped.Load(),
			Failed:  d.fails.Load(),
		}
		if s.c != nil && d.entryID != 0 {
			e := s.c.Entry(d.entryID)
			it.Next, it.Prev = e.Next, e.Prev
		}
		snap.Schedules = append(snap.Schedules, it)
	}
	slices.SortFunc(snap.Schedules, func(a, b ScheduleInfo) int { return strings.Compare(a.Name, b.Name) })
	return snap
}
