package storage

import (
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrNotFound = errors.New("user not found")
)

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file at Path
//   - "postgres": PostgreSQL at DSN
//   - "file": JSON snapshot at Path
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	DSN         string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// User is one row of the linkage table. Discord fields are empty until the
// user ran /setup.
type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	DiscordID string `json:"discord_id,omitempty"`
	GuildID   string `json:"guild_id,omitempty"`
	Webhook   string `json:"discord_webhook,omitempty"`
}

func (u User) Linked() bool { return u.DiscordID != "" && u.GuildID != "" }

// Link is what /setup records for a user.
type Link struct {
	DiscordID string
	GuildID   string
	Webhook   string
}
