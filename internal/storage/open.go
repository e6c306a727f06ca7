package storage

import (
	"context"
	"errors"
	"strings"

	logx "jobpulse/pkg/logx"
)

// Store is the user linkage API used by commands and the poller.
type Store interface {
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByDiscord(ctx context.Context, discordID, guildID string) (User, error)
	// LinkDiscord records the Discord side of an existing user. ErrNotFound
	// when no user has that email.
	LinkDiscord(ctx context.Context, email string, l Link) (User, error)
	ListLinked(ctx context.Context) ([]User, error)
	// Upsert inserts or replaces a user by email and returns it with its id.
	Upsert(ctx context.Context, u User) (User, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "storage"), logx.String("driver", driver))

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "postgres", "postgresql":
		return openPostgres(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

func normEmail(s string) string { return strings.TrimSpace(s) }
