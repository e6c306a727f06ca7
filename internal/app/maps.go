package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"jobpulse/internal/backend"
	"jobpulse/internal/config"
	"jobpulse/internal/httpapi"
	"jobpulse/internal/msgsync"
	"jobpulse/internal/observability/pprof"
	"jobpulse/internal/poller"
	"jobpulse/internal/storage"
	"jobpulse/internal/task/scheduler"
	logx "jobpulse/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Alerts: logx.AlertConfig{
			Enabled:    cfg.Alerts.Enabled && strings.TrimSpace(cfg.Alerts.Token) != "",
			ChatID:     cfg.Alerts.ChatID,
			ThreadID:   cfg.Alerts.ThreadID,
			MinLevel:   cfg.Alerts.MinLevel,
			RatePerSec: cfg.Alerts.RatePerSec,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "file":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	case "postgres", "postgresql":
		if strings.TrimSpace(sc.DSN) == "" {
			return storage.Config{}, false, fmt.Errorf("storage.dsn is required when storage.driver=postgres")
		}
		return storage.Config{Driver: "postgres", DSN: strings.TrimSpace(sc.DSN)}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

// mapBackendConfig reports ok=false when no backend URL is configured.
func mapBackendConfig(cfg *config.Config) (backend.Config, bool, error) {
	url := strings.TrimSpace(cfg.Backend.URL)
	timeout, err := config.ParseDurationOrDefault("backend.timeout", cfg.Backend.Timeout, backend.DefaultTimeout)
	if err != nil {
		return backend.Config{}, false, err
	}
	if cfg.Backend.MaxRetries < 0 {
		return backend.Config{}, false, fmt.Errorf("backend.max_retries must be >= 0")
	}
	return backend.Config{URL: url, Timeout: timeout, MaxRetries: cfg.Backend.MaxRetries}, url != "", nil
}

func mapBatchOptions(cfg *config.Config) (msgsync.BatchOptions, error) {
	if cfg.Sync.UpdateWorkers < 0 {
		return msgsync.BatchOptions{}, fmt.Errorf("sync.update_workers must be >= 0")
	}
	timeout, err := config.ParseDurationField("sync.item_timeout", cfg.Sync.ItemTimeout)
	if err != nil {
		return msgsync.BatchOptions{}, err
	}
	return msgsync.BatchOptions{Workers: cfg.Sync.UpdateWorkers, ItemTimeout: timeout}, nil
}

type cacheConfig struct {
	Driver string // memory | redis | none
	TTL    time.Duration
	Addr   string
	DB     int
	Prefix string
}

func mapCacheConfig(cfg *config.Config) (cacheConfig, error) {
	if cfg.Cache == nil {
		return cacheConfig{Driver: "memory"}, nil
	}
	c := cfg.Cache
	ttl, err := config.ParseDurationField("cache.ttl", c.TTL)
	if err != nil {
		return cacheConfig{}, err
	}
	driver := strings.ToLower(strings.TrimSpace(c.Driver))
	switch driver {
	case "", "memory":
		driver = "memory"
	case "none":
	case "redis":
		if strings.TrimSpace(c.Addr) == "" {
			return cacheConfig{}, fmt.Errorf("cache.addr is required when cache.driver=redis")
		}
	default:
		return cacheConfig{}, fmt.Errorf("unknown cache.driver: %s", c.Driver)
	}
	return cacheConfig{Driver: driver, TTL: ttl, Addr: strings.TrimSpace(c.Addr), DB: c.DB, Prefix: c.Prefix}, nil
}

// openCache builds the channel cache. The returned close func is never nil.
func openCache(ctx context.Context, cc cacheConfig, log logx.Logger) (msgsync.ChannelCache, func() error) {
	nop := func() error { return nil }
	switch cc.Driver {
	case "none":
		return msgsync.NopCache{}, nop
	case "redis":
		rc := msgsync.NewRedisCache(cc.Addr, cc.DB, cc.Prefix, cc.TTL, log)
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := rc.Ping(pctx); err != nil {
			// lookups degrade to misses until redis is reachable
			log.Warn("redis cache unreachable", logx.String("addr", cc.Addr), logx.Err(err))
		}
		return rc, rc.Close
	default:
		return msgsync.NewMemoryCache(cc.TTL), nop
	}
}

func mapAPIConfig(cfg *config.Config) (httpapi.Config, error) {
	a := cfg.API
	read, err := config.ParseDurationOrDefault("api.read_timeout", a.ReadTimeout, 10*time.Second)
	if err != nil {
		return httpapi.Config{}, err
	}
	write, err := config.ParseDurationOrDefault("api.write_timeout", a.WriteTimeout, 2*time.Minute)
	if err != nil {
		return httpapi.Config{}, err
	}
	idle, err := config.ParseDurationOrDefault("api.idle_timeout", a.IdleTimeout, time.Minute)
	if err != nil {
		return httpapi.Config{}, err
	}
	if a.Enabled && strings.TrimSpace(a.Token) == "" {
		return httpapi.Config{}, fmt.Errorf("api.token is required when api.enabled=true")
	}
	return httpapi.Config{
		Enabled:      a.Enabled,
		Addr:         a.Addr,
		Token:        a.Token,
		ReadTimeout:  read,
		WriteTimeout: write,
		IdleTimeout:  idle,
	}, nil
}

func mapPollerConfig(cfg *config.Config) (poller.Config, scheduler.Config, error) {
	if cfg.Poller == nil {
		return poller.Config{}, scheduler.Config{}, nil
	}
	p := cfg.Poller
	spec := strings.TrimSpace(p.Schedule)
	if spec == "" {
		spec = poller.DefaultSchedule
	}
	if _, err := scheduler.ParseSchedule(spec); err != nil {
		return poller.Config{}, scheduler.Config{}, fmt.Errorf("poller.schedule: %w", err)
	}
	if tz := strings.TrimSpace(p.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return poller.Config{}, scheduler.Config{}, fmt.Errorf("poller.timezone: invalid %q: %w", tz, err)
		}
	}
	if p.RatePerSec < 0 {
		return poller.Config{}, scheduler.Config{}, fmt.Errorf("poller.rate_per_sec must be >= 0")
	}
	return poller.Config{
			Enabled:       p.Enabled,
			Schedule:      spec,
			RatePerSecond: float64(p.RatePerSec),
		}, scheduler.Config{
			Enabled:  p.Enabled,
			Timezone: p.Timezone,
		}, nil
}

func mapPprofConfig(cfg *config.Config) (pprof.Config, error) {
	if cfg.Pprof == nil {
		return pprof.Config{}, nil
	}
	p := cfg.Pprof
	pc := pprof.Config{
		Enabled:              p.Enabled,
		Addr:                 p.Addr,
		Prefix:               p.Prefix,
		Token:                p.Token,
		AllowInsecure:        p.AllowInsecure,
		BlockProfileRate:     p.BlockProfileRate,
		MutexProfileFraction: p.MutexProfileFraction,
	}
	if err := pprof.Validate(pc); err != nil {
		return pprof.Config{}, fmt.Errorf("pprof: %w", err)
	}
	return pc, nil
}

// validate rejects configs the app cannot run with. It is used both at
// startup and before a hot reload is committed.
func validate(cfg *config.Config) error {
	if cfg == nil {
		return &msgsync.ConfigurationError{Field: "config"}
	}
	if strings.TrimSpace(cfg.Discord.Token) == "" {
		return &msgsync.ConfigurationError{Field: "discord.token"}
	}
	if _, _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, _, err := mapBackendConfig(cfg); err != nil {
		return err
	}
	if _, err := mapBatchOptions(cfg); err != nil {
		return err
	}
	if _, err := mapCacheConfig(cfg); err != nil {
		return err
	}
	if _, err := mapAPIConfig(cfg); err != nil {
		return err
	}
	if _, _, err := mapPollerConfig(cfg); err != nil {
		return err
	}
	if _, err := mapPprofConfig(cfg); err != nil {
		return err
	}
	if cfg.Alerts.Enabled && cfg.Alerts.ChatID == 0 {
		return fmt.Errorf("alerts.chat_id is required when alerts.enabled=true")
	}
	return nil
}
