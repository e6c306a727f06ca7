package config

// Config is the on-disk configuration (JSON or YAML).
//
// Secrets may be left empty in the file and supplied through the
// environment instead (see applyEnv).
type Config struct {
	Discord DiscordConfig `json:"discord"`
	Logging LoggingConfig `json:"logging"`
	Alerts  AlertsConfig  `json:"alerts,omitempty"`

	Storage *StorageConfig `json:"storage,omitempty"`
	Backend BackendConfig  `json:"backend"`
	Sync    SyncConfig     `json:"sync"`
	Cache   *CacheConfig   `json:"cache,omitempty"`
	API     APIConfig      `json:"api"`
	Poller  *PollerConfig  `json:"poller,omitempty"`
	Pprof   *PprofConfig   `json:"pprof,omitempty"`
}

type DiscordConfig struct {
	Token string `json:"token"`
	// ClientID is the application id used for slash command registration.
	ClientID string `json:"client_id"`
	// GuildID restricts command registration to one guild (faster propagation
	// while developing). Empty registers global commands.
	GuildID string `json:"guild_id,omitempty"`
	// HistoryChannelID is the default channel for retrieval queries that do
	// not name one.
	HistoryChannelID string `json:"history_channel_id,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// AlertsConfig forwards WARN+ log lines to an operator Telegram chat.
type AlertsConfig struct {
	Enabled    bool   `json:"enabled"`
	Token      string `json:"token,omitempty"` // telegram bot token (do not log)
	ChatID     int64  `json:"chat_id,omitempty"`
	ThreadID   int    `json:"thread_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// StorageConfig controls the user linkage table.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/jobpulse.sqlite" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"` // sqlite file or file-driver snapshot
	DSN         string `json:"dsn,omitempty"`  // postgres only (do not log)
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type BackendConfig struct {
	URL        string `json:"url"`
	Timeout    string `json:"timeout,omitempty"`
	MaxRetries int    `json:"max_retries,omitempty"`
}

// SyncConfig tunes the message synchronization subsystem.
type SyncConfig struct {
	// UpdateWorkers > 1 processes batch update items in parallel.
	// Outcome order always matches request order.
	UpdateWorkers int `json:"update_workers,omitempty"`
	// ItemTimeout bounds a single batch item's pipeline (Go duration string).
	ItemTimeout string `json:"item_timeout,omitempty"`
}

// CacheConfig selects the resolved-channel cache backend.
//
// Driver values: "memory" (default), "redis", "none".
type CacheConfig struct {
	Driver string `json:"driver"`
	TTL    string `json:"ttl,omitempty"`
	Addr   string `json:"addr,omitempty"` // redis only
	DB     int    `json:"db,omitempty"`   // redis only
	Prefix string `json:"prefix,omitempty"`
}

// APIConfig controls the HTTP service (batch update + retrieval).
//
// Security note: prefer binding to localhost unless a token is set.
type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`  // default: "127.0.0.1:8080"
	Token   string `json:"token,omitempty"` // shared bearer secret (do not log)

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

// PollerConfig schedules periodic backend polling for every linked user.
type PollerConfig struct {
	Enabled bool `json:"enabled"`
	// Schedule accepts cron ("*/15 * * * *", "@hourly"), HH:MM intervals
	// ("00:30") or Go durations ("15m").
	Schedule   string `json:"schedule"`
	Timezone   string `json:"timezone,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// PprofConfig controls the optional profiling listener.
//
// A non-loopback addr requires a token or allow_insecure.
type PprofConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"` // default: "127.0.0.1:6060"
	Prefix        string `json:"prefix,omitempty"`
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`

	BlockProfileRate     int `json:"block_profile_rate,omitempty"`
	MutexProfileFraction int `json:"mutex_profile_fraction,omitempty"`
}
