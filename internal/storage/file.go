package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	logx "jobpulse/pkg/logx"
)

// fileStore keeps every user in memory and rewrites a JSON snapshot on each
// change (write to .tmp, then rename). Meant for small single-host setups.
type fileStore struct {
	log  logx.Logger
	path string

	mu     sync.Mutex
	users  map[string]User // by email
	nextID int64
	closed bool
}

type fileSnapshot struct {
	NextID int64  `json:"next_id"`
	Users  []User `json:"users"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{log: log, path: path, users: map[string]User{}, nextID: 1}
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		var snap fileSnapshot
		if err := json.Unmarshal(b, &snap); err != nil {
			return nil, err
		}
		for _, u := range snap.Users {
			s.users[u.Email] = u
			if u.ID >= s.nextID {
				s.nextID = u.ID + 1
			}
		}
		if snap.NextID > s.nextID {
			s.nextID = snap.NextID
		}
	}
	return s, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fileStore) GetByEmail(_ context.Context, email string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return User{}, ErrDisabled
	}
	u, ok := s.users[normEmail(email)]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *fileStore) GetByDiscord(_ context.Context, discordID, guildID string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return User{}, ErrDisabled
	}
	// lowest id wins, like the SQL drivers
	var (
		best  User
		found bool
	)
	for _, u := range s.users {
		if u.DiscordID == discordID && u.GuildID == guildID && (!found || u.ID < best.ID) {
			best, found = u, true
		}
	}
	if !found {
		return User{}, ErrNotFound
	}
	return best, nil
}

func (s *fileStore) LinkDiscord(_ context.Context, email string, l Link) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return User{}, ErrDisabled
	}
	email = normEmail(email)
	u, ok := s.users[email]
	if !ok {
		return User{}, ErrNotFound
	}
	u.DiscordID, u.GuildID, u.Webhook = l.DiscordID, l.GuildID, l.Webhook
	s.users[email] = u
	if err := s.persistLocked(); err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *fileStore) ListLinked(_ context.Context) ([]User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrDisabled
	}
	var out []User
	for _, u := range s.users {
		if u.Linked() {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fileStore) Upsert(_ context.Context, u User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return User{}, ErrDisabled
	}
	u.Email = normEmail(u.Email)
	if u.Email == "" {
		return User{}, errors.New("email is required")
	}
	if old, ok := s.users[u.Email]; ok {
		u.ID = old.ID
	} else {
		u.ID = s.nextID
		s.nextID++
	}
	s.users[u.Email] = u
	if err := s.persistLocked(); err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *fileStore) persistLocked() error {
	snap := fileSnapshot{NextID: s.nextID, Users: make([]User, 0, len(s.users))}
	for _, u := range s.users {
		snap.Users = append(snap.Users, u)
	}
	sort.Slice(snap.Users, func(i, j int) bool { return snap.Users[i].ID < snap.Users[j].ID })

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.log.Warn("user snapshot rename failed", logx.Err(err))
		return err
	}
	return nil
}
