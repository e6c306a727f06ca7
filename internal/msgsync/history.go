package msgsync

import (
	"context"
	"strings"
	"time"

	logx "jobpulse/pkg/logx"
)

// HistoryService answers retrieval queries: walk, classify, assemble.
type HistoryService struct {
	token          string
	defaultChannel string
	pag            *Paginator
	log            logx.Logger
}

// Deps is the explicit context every msgsync component is built from.
type Deps struct {
	// Token is the bot credential the transport authenticates with. It is only
	// checked for presence here.
	Token            string
	DefaultChannelID string

	History  HistoryAPI
	Webhooks WebhookAPI
	Cache    ChannelCache

	Log logx.Logger
}

func NewHistoryService(d Deps) *HistoryService {
	log := d.Log.With(logx.String("comp", "msgsync.history"))
	return &HistoryService{
		token:          strings.TrimSpace(d.Token),
		defaultChannel: strings.TrimSpace(d.DefaultChannelID),
		pag:            NewPaginator(d.History, log),
		log:            log,
	}
}

// Query runs one retrieval. A missing token or channel fails with a
// ConfigurationError before anything is fetched.
func (s *HistoryService) Query(ctx context.Context, q RetrievalQuery) (RetrievalResult, error) {
	if s == nil || s.token == "" || s.pag == nil || s.pag.api == nil {
		return RetrievalResult{}, &ConfigurationError{Field: "discord.token"}
	}
	channelID := strings.TrimSpace(q.ChannelID)
	if channelID == "" {
		channelID = s.defaultChannel
	}
	if channelID == "" {
		return RetrievalResult{}, &ConfigurationError{Field: "channel id"}
	}

	var matched []Message
	stats, err := s.pag.Walk(ctx, channelID, q.Cutoff, func(m Message) bool {
		if IsDomainUpdate(m) {
			matched = append(matched, m)
		}
		return true
	})
	if err != nil {
		s.log.Warn("history query failed", logx.String("channel_id", channelID), logx.Err(err))
		return RetrievalResult{}, err
	}

	res := Assemble(matched, q.Page, q.Limit)
	res.Stop = stats.Stop
	res.Batches = stats.Batches
	if stats.Stop == StopCap {
		s.log.Info("history walk hit batch cap", logx.String("channel_id", channelID), logx.Int("total", res.Total))
	}
	return res, nil
}

// ParseCutoff accepts RFC3339 timestamps and YYYY-MM-DD dates (UTC midnight).
// An empty string means no cutoff.
func ParseCutoff(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, &ValidationError{Field: "date", Reason: "expected YYYY-MM-DD or RFC3339"}
}
