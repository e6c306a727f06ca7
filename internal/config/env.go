package config

import (
	"os"
	"strings"
)

// Environment variables that fill empty secret fields. File values win.
const (
	EnvDiscordToken = "DISCORD_TOKEN"
	EnvClientID     = "CLIENT_ID"
	EnvBackendURL   = "BACKEND_URL"
	EnvAPIToken     = "JOBPULSE_API_TOKEN"
	EnvAlertsToken  = "TELEGRAM_TOKEN"
	EnvStorageDSN   = "DATABASE_URL"
)

func applyEnv(cfg *Config, getenv func(string) string) {
	if cfg == nil {
		return
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	fill := func(dst *string, key string) {
		if strings.TrimSpace(*dst) != "" {
			return
		}
		*dst = strings.TrimSpace(getenv(key))
	}
	fill(&cfg.Discord.Token, EnvDiscordToken)
	fill(&cfg.Discord.ClientID, EnvClientID)
	fill(&cfg.Backend.URL, EnvBackendURL)
	fill(&cfg.API.Token, EnvAPIToken)
	fill(&cfg.Alerts.Token, EnvAlertsToken)
	if cfg.Storage != nil && strings.EqualFold(strings.TrimSpace(cfg.Storage.Driver), "postgres") {
		fill(&cfg.Storage.DSN, EnvStorageDSN)
	}
}
