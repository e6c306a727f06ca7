package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"jobpulse/internal/backend"
	"jobpulse/internal/commands"
	"jobpulse/internal/config"
	"jobpulse/internal/httpapi"
	"jobpulse/internal/msgsync"
	"jobpulse/internal/observability/pprof"
	"jobpulse/internal/poller"
	rtsup "jobpulse/internal/runtime/supervisor"
	"jobpulse/internal/storage"
	"jobpulse/internal/task/scheduler"
	kit "jobpulse/internal/transport"
	"jobpulse/internal/transport/discord"
	"jobpulse/internal/transport/telegram"
	logx "jobpulse/pkg/logx"
)

const pollerJob = "poller.sweep"

type App struct {
	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	store storage.Store
	jobs  backend.Jobs

	adapter    *discord.Adapter
	history    *msgsync.HistoryService
	batch      *msgsync.BatchRunner
	closeCache func() error

	api   *httpapi.Service
	sched *scheduler.Service
	poll  *poller.Poller
	disp  *commands.Dispatcher
	prof  *pprof.Service

	updates chan kit.Update
}

func New(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole(cfg.Logging.Level)
	var sender logx.AlertSender
	if cfg.Alerts.Enabled {
		as, err := telegram.NewAlertSender(cfg.Alerts.Token)
		if err != nil {
			bootLog.Warn("alerts disabled: telegram sender unavailable", logx.Err(err))
		} else {
			sender = as
		}
	}
	logSvc, root := logx.New(mapLogConfig(cfg), sender)
	log := root.With(logx.String("comp", "app"))

	a := &App{cfgm: cfgm, log: log, logs: logSvc, updates: make(chan kit.Update, 256)}
	if err := a.build(ctx, cfg, root); err != nil {
		a.closeResources()
		logSvc.Close()
		return nil, err
	}
	return a, nil
}

// build constructs every component from cfg. Configs are already validated.
func (a *App) build(ctx context.Context, cfg *config.Config, root logx.Logger) error {
	if sc, enabled, _ := mapStorageConfig(cfg); enabled {
		st, err := storage.Open(sc, root)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		a.store = st
		a.log.Info("storage enabled", logx.String("driver", sc.Driver))
	} else {
		a.log.Warn("storage disabled; /setup, /poll and /migrate-emails will fail")
	}

	if bc, ok, _ := mapBackendConfig(cfg); ok {
		c, err := backend.New(bc, root)
		if err != nil {
			return err
		}
		a.jobs = c
	}

	ad, err := discord.New(discord.Config{
		Token:   cfg.Discord.Token,
		AppID:   cfg.Discord.ClientID,
		GuildID: cfg.Discord.GuildID,
	}, root.With(logx.String("comp", "discord")))
	if err != nil {
		return err
	}
	a.adapter = ad
	rest := discord.NewREST(ad.Session())

	cc, _ := mapCacheConfig(cfg)
	cache, closeCache := openCache(ctx, cc, root)
	a.closeCache = closeCache

	deps := msgsync.Deps{
		Token:            cfg.Discord.Token,
		DefaultChannelID: cfg.Discord.HistoryChannelID,
		History:          rest,
		Webhooks:         rest,
		Cache:            cache,
		Log:              root,
	}
	opts, _ := mapBatchOptions(cfg)
	a.history = msgsync.NewHistoryService(deps)
	a.batch = msgsync.NewBatchRunner(deps, opts)

	apiCfg, _ := mapAPIConfig(cfg)
	a.api, err = httpapi.New(apiCfg, a.history, a.batch, root)
	if err != nil {
		return err
	}

	pc, sc, _ := mapPollerConfig(cfg)
	a.sched = scheduler.New(sc, root)
	a.poll = poller.New(pc, a.store, a.jobs, root)

	prof, _ := mapPprofConfig(cfg)
	a.prof = pprof.New(prof, root)

	reg, err := a.registry()
	if err != nil {
		return err
	}
	a.disp = commands.NewDispatcher(reg, ad, ad, root, commands.DispatcherConfig{})
	return nil
}

func (a *App) registry() (*commands.Registry, error) {
	reg := commands.NewRegistry()
	entries := []struct {
		kind commands.Kind
		h    commands.Handler
	}{
		{commands.KindPing, commands.Ping{}},
		{commands.KindEcho, commands.Echo{}},
		{commands.KindSetup, commands.Setup{Users: a.store, Webhooks: a.adapter}},
		{commands.KindPoll, commands.BackendJob{Kind: commands.KindPoll, Users: a.store, Jobs: a.jobs}},
		{commands.KindMigrate, commands.BackendJob{Kind: commands.KindMigrate, Users: a.store, Jobs: a.jobs}},
		{commands.KindHistory, commands.History{Sync: a.history}},
	}
	for _, e := range entries {
		if err := reg.Register(e.kind, e.h); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error { return validate(cfg) })

	runCtx := a.sup.Context()
	a.sup.GoRestart("commands.dispatch", func(c context.Context) error {
		return a.disp.Run(c, a.updates)
	}, rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second))

	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	if err := a.api.Start(runCtx); err != nil {
		return fmt.Errorf("http api: %w", err)
	}
	if err := a.schedulePoller(a.cfgm.Get()); err != nil {
		return err
	}
	if err := a.prof.Start(runCtx); err != nil {
		// profiling is optional
		a.log.Warn("pprof not started", logx.Err(err))
	}
	if a.sched.Enabled() {
		a.sched.Start(runCtx)
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

func (a *App) schedulePoller(cfg *config.Config) error {
	pc, _, err := mapPollerConfig(cfg)
	if err != nil {
		return err
	}
	if !pc.Enabled {
		a.sched.Remove(pollerJob)
		return nil
	}
	return a.sched.Add(pollerJob, pc.Schedule, pc.Timeout, func(ctx context.Context) error {
		_, err := a.poll.Sweep(ctx)
		return err
	})
}

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// keep only the newest of a burst
			for drained := false; !drained; {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					drained = true
				}
			}
			a.apply(ctx, lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

// restartOnly lists sections whose changes need a process restart.
var restartOnly = map[string]bool{"discord": true, "storage": true, "backend": true, "cache": true}

func (a *App) apply(ctx context.Context, prev, next *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	for _, s := range sections {
		if restartOnly[s] {
			a.log.Warn("config section changed; restart required for it to take effect", logx.String("section", s))
		}
	}
	if prev.Alerts.Token != next.Alerts.Token {
		a.log.Warn("alerts token changed; restart required for it to take effect")
	}

	a.logs.Apply(mapLogConfig(next))

	if opts, err := mapBatchOptions(next); err == nil {
		a.batch.SetOptions(opts)
	}

	if apiCfg, err := mapAPIConfig(next); err == nil {
		if err := a.api.Reconfigure(ctx, apiCfg); err != nil {
			a.log.Warn("http api reconfigure failed", logx.Err(err))
		}
	}

	if pc, err := mapPprofConfig(next); err == nil {
		if err := a.prof.Reconfigure(ctx, pc); err != nil {
			a.log.Warn("pprof reconfigure failed", logx.Err(err))
		}
	}

	if pc, sc, err := mapPollerConfig(next); err == nil {
		wasEnabled := a.sched.Enabled()
		a.poll.Apply(pc)
		a.sched.Apply(sc)
		if err := a.schedulePoller(next); err != nil {
			a.log.Warn("poller schedule rejected", logx.Err(err))
		}
		switch {
		case wasEnabled && !sc.Enabled:
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			a.sched.Stop(stopCtx)
			cancel()
			a.log.Info("poller disabled via config")
		case !wasEnabled && sc.Enabled:
			a.sched.Start(ctx)
			a.log.Info("poller enabled via config")
		}
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		a.closeResources()
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sup.Cancel()

	a.step(ctx, "http api", 3*time.Second, a.api.Stop)
	a.step(ctx, "pprof", 1*time.Second, a.prof.Stop)
	a.step(ctx, "scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	a.step(ctx, "adapter", 2*time.Second, a.adapter.Stop)
	// dispatcher, config watch/reload
	a.step(ctx, "supervisor", 3*time.Second, a.sup.Wait)
	a.closeResources()

	a.log.Info("stopped")
	a.logs.Close()
	return nil
}

func (a *App) closeResources() {
	if a.closeCache != nil {
		if err := a.closeCache(); err != nil {
			a.log.Warn("cache close failed", logx.Err(err))
		}
		a.closeCache = nil
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
		a.store = nil
	}
}

// step runs one shutdown step bounded by max and by the caller's deadline.
// A step that overruns is logged and left behind.
func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name),
			logx.Duration("elapsed", time.Since(start)),
			logx.Err(stepCtx.Err()),
		)
	}
}
