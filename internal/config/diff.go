package config

import (
	"sort"
	"strings"

	logx "jobpulse/pkg/logx"
)

// SummarizeConfigChange returns a sorted list of changed sections and safe
// structured fields for logging. Secrets (tokens, DSNs) are only reported as
// "set" booleans.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 16)
	trim := strings.TrimSpace

	if oldCfg.Discord.Token != newCfg.Discord.Token ||
		trim(oldCfg.Discord.ClientID) != trim(newCfg.Discord.ClientID) ||
		trim(oldCfg.Discord.GuildID) != trim(newCfg.Discord.GuildID) ||
		trim(oldCfg.Discord.HistoryChannelID) != trim(newCfg.Discord.HistoryChannelID) {
		changed = append(changed, "discord")
		attrs = append(attrs,
			logx.Bool("discord.token_set", trim(newCfg.Discord.Token) != ""),
			logx.String("discord.guild_id", trim(newCfg.Discord.GuildID)),
			logx.String("discord.history_channel_id", trim(newCfg.Discord.HistoryChannelID)),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Alerts != newCfg.Alerts {
		changed = append(changed, "alerts")
		attrs = append(attrs,
			logx.Bool("alerts.enabled", newCfg.Alerts.Enabled),
			logx.Bool("alerts.token_set", trim(newCfg.Alerts.Token) != ""),
			logx.String("alerts.min_level", newCfg.Alerts.MinLevel),
		)
	}

	oS, nS := derefStorage(oldCfg.Storage), derefStorage(newCfg.Storage)
	if trim(oS.Driver) != trim(nS.Driver) || trim(oS.Path) != trim(nS.Path) ||
		oS.DSN != nS.DSN || trim(oS.BusyTimeout) != trim(nS.BusyTimeout) {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", trim(nS.Driver)),
			logx.Bool("storage.path_set", trim(nS.Path) != ""),
			logx.Bool("storage.dsn_set", trim(nS.DSN) != ""),
		)
	}

	if oldCfg.Backend != newCfg.Backend {
		changed = append(changed, "backend")
		attrs = append(attrs,
			logx.Bool("backend.url_set", trim(newCfg.Backend.URL) != ""),
			logx.String("backend.timeout", trim(newCfg.Backend.Timeout)),
			logx.Int("backend.max_retries", newCfg.Backend.MaxRetries),
		)
	}

	if oldCfg.Sync != newCfg.Sync {
		changed = append(changed, "sync")
		attrs = append(attrs,
			logx.Int("sync.update_workers", newCfg.Sync.UpdateWorkers),
			logx.String("sync.item_timeout", trim(newCfg.Sync.ItemTimeout)),
		)
	}

	oC, nC := derefCache(oldCfg.Cache), derefCache(newCfg.Cache)
	if oC != nC {
		changed = append(changed, "cache")
		attrs = append(attrs,
			logx.String("cache.driver", trim(nC.Driver)),
			logx.String("cache.ttl", trim(nC.TTL)),
		)
	}

	if oldCfg.API != newCfg.API {
		changed = append(changed, "api")
		attrs = append(attrs,
			logx.Bool("api.enabled", newCfg.API.Enabled),
			logx.String("api.addr", trim(newCfg.API.Addr)),
			logx.Bool("api.token_set", trim(newCfg.API.Token) != ""),
		)
	}

	oP, nP := derefPoller(oldCfg.Poller), derefPoller(newCfg.Poller)
	if oP != nP {
		changed = append(changed, "poller")
		attrs = append(attrs,
			logx.Bool("poller.enabled", nP.Enabled),
			logx.String("poller.schedule", trim(nP.Schedule)),
		)
	}

	oF, nF := derefPprof(oldCfg.Pprof), derefPprof(newCfg.Pprof)
	if oF != nF {
		changed = append(changed, "pprof")
		attrs = append(attrs,
			logx.Bool("pprof.enabled", nF.Enabled),
			logx.String("pprof.addr", trim(nF.Addr)),
			logx.Bool("pprof.token_set", trim(nF.Token) != ""),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

func derefStorage(s *StorageConfig) StorageConfig {
	if s == nil {
		return StorageConfig{}
	}
	return *s
}

func derefCache(c *CacheConfig) CacheConfig {
	if c == nil {
		return CacheConfig{}
	}
	return *c
}

func derefPoller(p *PollerConfig) PollerConfig {
	if p == nil {
		return PollerConfig{}
	}
	return *p
}

func derefPprof(p *PprofConfig) PprofConfig {
	if p == nil {
		return PprofConfig{}
	}
	return *p
}
