package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	logx "jobpulse/pkg/logx"
)

// Config is the configuration for the job backend client.
type Config struct {
	URL        string
	Timeout    time.Duration
	MaxRetries int
}

const (
	DefaultTimeout    = 30 * time.Second
	DefaultRetryDelay = 200 * time.Millisecond
	maxErrBody        = 1024
)

// Jobs is what the bot asks of the backend for one user.
type Jobs interface {
	PollEmails(ctx context.Context, userID int64) (json.RawMessage, error)
	MigrateEmails(ctx context.Context, userID int64) (json.RawMessage, error)
}

// StatusError is a non-2xx backend response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend: status %d: %s", e.Status, e.Body)
}

type Client struct {
	cfg    Config
	client *http.Client
	log    logx.Logger
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	cfg.URL = strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if cfg.URL == "" {
		return nil, errors.New("backend url is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log.With(logx.String("comp", "backend")),
	}, nil
}

// PollEmails asks the backend to scan the user's mailbox for job updates.
func (c *Client) PollEmails(ctx context.Context, userID int64) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/job/poll-emails", userID)
}

// MigrateEmails asks the backend to relabel already processed mail.
func (c *Client) MigrateEmails(ctx context.Context, userID int64) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/job/migrate", userID)
}

func (c *Client) do(ctx context.Context, method, path string, userID int64) (json.RawMessage, error) {
	sleepOnRetry := func(attempt int) bool {
		if attempt >= c.cfg.MaxRetries {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Duration(attempt) * DefaultRetryDelay):
			return true
		}
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		out, retry, err := c.once(ctx, method, path, userID)
		if err == nil {
			return out, nil
		}
		lastErr = err
		c.log.Debug("backend call failed", logx.String("path", path), logx.Int("attempt", attempt), logx.Err(err))
		if !retry || !sleepOnRetry(attempt) {
			break
		}
	}
	return nil, fmt.Errorf("%s %s: %w", method, path, lastErr)
}

// once performs a single request. retry reports whether the failure is
// worth another attempt (network errors and 5xx).
func (c *Client) once(ctx context.Context, method, path string, userID int64) (json.RawMessage, bool, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.URL+path, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("userid", strconv.FormatInt(userID, 10))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, true, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b := strings.TrimSpace(string(body))
		if len(b) > maxErrBody {
			b = b[:maxErrBody]
		}
		return nil, resp.StatusCode >= 500, &StatusError{Status: resp.StatusCode, Body: b}
	}
	if len(body) == 0 {
		return nil, false, nil
	}
	if !json.Valid(body) {
		return nil, false, errors.New("decode response: invalid json")
	}
	return json.RawMessage(body), false, nil
}
