package msgsync

import (
	"context"
	"encoding/json"
	"time"
)

// Message is one fetched channel message. Messages are never modified after
// the transport hands them over.
type Message struct {
	// ID is a snowflake; numeric order equals creation order.
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Content   string          `json:"content"`
	Embeds    []Embed         `json:"embeds"`
	Raw       json.RawMessage `json:"-"`
}

// Embed is a structured message card. It is a value type: Patch returns a new
// Embed instead of editing one in place.
type Embed struct {
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Color       *int    `json:"color,omitempty"`
	Fields      []Field `json:"fields,omitempty"`
	Footer      *Footer `json:"footer,omitempty"`

	// Extra carries embed attributes this package never edits (url, author,
	// image, thumbnail...) so a write-back keeps them.
	Extra json.RawMessage `json:"-"`
}

type Footer struct {
	Text    string `json:"text"`
	IconURL string `json:"icon_url,omitempty"`
}

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// RetrievalQuery selects the update cards of one channel newer than Cutoff.
// Page and Limit only shape the returned window, never the walk.
type RetrievalQuery struct {
	Cutoff    time.Time
	Page      int
	Limit     int
	ChannelID string
}

type RetrievalResult struct {
	Page       int       `json:"page"`
	Total      int       `json:"total"`
	TotalPages int       `json:"totalPages"`
	Messages   []Message `json:"messages"`

	Stop    StopReason `json:"-"`
	Batches int        `json:"-"`
}

// UpdateRequest asks for the Status/Date fields of a posted card to be synced.
type UpdateRequest struct {
	MessageID  string  `json:"messageId"`
	WebhookURL string  `json:"webhookUrl"`
	Status     *string `json:"status,omitempty"`
	Date       *string `json:"date,omitempty"`
}

// UpdateOutcome reports one UpdateRequest. Failures are data, not errors.
type UpdateOutcome struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId"`
	ChannelID string `json:"channelId,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorKind Kind   `json:"errorKind,omitempty"`
}

// HistoryAPI returns up to limit messages of a channel, newest first, strictly
// older than beforeID when it is set.
type HistoryAPI interface {
	ChannelMessages(ctx context.Context, channelID string, limit int, beforeID string) ([]Message, error)
}

// WebhookAPI is the webhook-scoped part of the chat REST API used by the
// write path.
type WebhookAPI interface {
	WebhookChannel(ctx context.Context, webhookID, token string) (string, error)
	WebhookMessage(ctx context.Context, webhookID, token, messageID string) (*Message, error)
	EditWebhookMessage(ctx context.Context, webhookID, token, messageID string, embeds []Embed) error
}
