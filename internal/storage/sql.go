package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"strconv"
	"strings"

	logx "jobpulse/pkg/logx"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// sqlStore serves both SQL drivers. Queries are written with '?' and rebound
// for drivers that number their placeholders.
type sqlStore struct {
	db       *sql.DB
	log      logx.Logger
	numbered bool // $1, $2... placeholders
}

const userCols = `id, email, discord_id, guild_id, discord_webhook`

func (s *sqlStore) migrate(ctx context.Context, file string) error {
	b, err := migrationsFS.ReadFile("migrations/" + file)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqlStore) q(query string) string {
	if !s.numbered {
		return query
	}
	return rebind(query)
}

// rebind rewrites '?' placeholders as $1, $2...
func rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (s *sqlStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(r rowScanner) (User, error) {
	var (
		u                          User
		discordID, guildID, hookID sql.NullString
	)
	if err := r.Scan(&u.ID, &u.Email, &discordID, &guildID, &hookID); err != nil {
		return User{}, err
	}
	u.DiscordID, u.GuildID, u.Webhook = discordID.String, guildID.String, hookID.String
	return u, nil
}

func (s *sqlStore) getOne(ctx context.Context, query string, args ...any) (User, error) {
	if s == nil || s.db == nil {
		return User{}, ErrDisabled
	}
	u, err := scanUser(s.db.QueryRowContext(ctx, s.q(query), args...))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (s *sqlStore) GetByEmail(ctx context.Context, email string) (User, error) {
	return s.getOne(ctx, `SELECT `+userCols+` FROM users WHERE email = ?`, normEmail(email))
}

func (s *sqlStore) GetByDiscord(ctx context.Context, discordID, guildID string) (User, error) {
	return s.getOne(ctx, `SELECT `+userCols+` FROM users WHERE discord_id = ? AND guild_id = ?`, discordID, guildID)
}

func (s *sqlStore) LinkDiscord(ctx context.Context, email string, l Link) (User, error) {
	if s == nil || s.db == nil {
		return User{}, ErrDisabled
	}
	email = normEmail(email)
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE users SET discord_id = ?, guild_id = ?, discord_webhook = ? WHERE email = ?`),
		nullStr(l.DiscordID), nullStr(l.GuildID), nullStr(l.Webhook), email,
	)
	if err != nil {
		return User{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return User{}, ErrNotFound
	}
	s.log.Debug("user linked", logx.String("discord_id", l.DiscordID), logx.String("guild_id", l.GuildID))
	return s.GetByEmail(ctx, email)
}

func (s *sqlStore) ListLinked(ctx context.Context) ([]User, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+userCols+` FROM users
		WHERE discord_id IS NOT NULL AND discord_id <> '' AND guild_id IS NOT NULL AND guild_id <> ''
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *sqlStore) Upsert(ctx context.Context, u User) (User, error) {
	if s == nil || s.db == nil {
		return User{}, ErrDisabled
	}
	u.Email = normEmail(u.Email)
	if u.Email == "" {
		return User{}, errors.New("email is required")
	}
	err := s.db.QueryRowContext(ctx, s.q(`INSERT INTO users(email, discord_id, guild_id, discord_webhook)
		VALUES(?,?,?,?)
		ON CONFLICT(email) DO UPDATE SET
			discord_id = excluded.discord_id,
			guild_id = excluded.guild_id,
			discord_webhook = excluded.discord_webhook
		RETURNING id`),
		u.Email, nullStr(u.DiscordID), nullStr(u.GuildID), nullStr(u.Webhook),
	).Scan(&u.ID)
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
