package discord

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"jobpulse/internal/msgsync"
)

// REST implements the msgsync read and write APIs on a discordgo session.
// Rate-limited requests are queued and retried by discordgo's bucket logic;
// callers only see the final outcome.
type REST struct {
	s *discordgo.Session
}

func NewREST(s *discordgo.Session) *REST { return &REST{s: s} }

var (
	_ msgsync.HistoryAPI = (*REST)(nil)
	_ msgsync.WebhookAPI = (*REST)(nil)
)

func (r *REST) ChannelMessages(ctx context.Context, channelID string, limit int, beforeID string) ([]msgsync.Message, error) {
	msgs, err := r.s.ChannelMessages(channelID, limit, beforeID, "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapErr("fetch channel messages", "channel", channelID, err)
	}
	out := make([]msgsync.Message, 0, len(msgs))
	for _, m := range msgs {
		if m != nil {
			out = append(out, toMessage(m))
		}
	}
	return out, nil
}

func (r *REST) WebhookChannel(ctx context.Context, webhookID, token string) (string, error) {
	w, err := r.s.WebhookWithToken(webhookID, token, discordgo.WithContext(ctx))
	if err != nil {
		return "", mapErr("get webhook", "webhook", webhookID, err)
	}
	return w.ChannelID, nil
}

func (r *REST) WebhookMessage(ctx context.Context, webhookID, token, messageID string) (*msgsync.Message, error) {
	m, err := r.s.WebhookMessage(webhookID, token, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapErr("get webhook message", "message", messageID, err)
	}
	out := toMessage(m)
	return &out, nil
}

func (r *REST) EditWebhookMessage(ctx context.Context, webhookID, token, messageID string, embeds []msgsync.Embed) error {
	des := make([]*discordgo.MessageEmbed, 0, len(embeds))
	for _, e := range embeds {
		des = append(des, fromEmbed(e))
	}
	_, err := r.s.WebhookMessageEdit(webhookID, token, messageID, &discordgo.WebhookEdit{Embeds: &des}, discordgo.WithContext(ctx))
	if err != nil {
		return mapErr("edit webhook message", "message", messageID, err)
	}
	return nil
}

const maxErrBody = 512

// mapErr turns 404s and unknown-entity codes into NotFoundError and every
// other failure into TransportError.
func mapErr(op, resource, id string, err error) error {
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return &msgsync.TransportError{Op: op, Err: err}
	}
	status, code := 0, 0
	if rest.Response != nil {
		status = rest.Response.StatusCode
	}
	if rest.Message != nil {
		code = rest.Message.Code
	}
	switch {
	case status == http.StatusNotFound,
		code == discordgo.ErrCodeUnknownWebhook,
		code == discordgo.ErrCodeUnknownMessage,
		code == discordgo.ErrCodeUnknownChannel:
		return &msgsync.NotFoundError{Resource: resource, ID: id, Err: err}
	}
	body := string(rest.ResponseBody)
	if len(body) > maxErrBody {
		body = body[:maxErrBody]
	}
	return &msgsync.TransportError{Op: op, Status: status, Body: body, Err: err}
}

func toMessage(m *discordgo.Message) msgsync.Message {
	out := msgsync.Message{ID: m.ID, Timestamp: m.Timestamp, Content: m.Content}
	if raw, err := json.Marshal(m); err == nil {
		out.Raw = raw
	}
	for _, e := range m.Embeds {
		if e != nil {
			out.Embeds = append(out.Embeds, toEmbed(e))
		}
	}
	return out
}

func toEmbed(e *discordgo.MessageEmbed) msgsync.Embed {
	out := msgsync.Embed{Title: e.Title, Description: e.Description}
	// discordgo's Color is a plain int tagged omitempty, so an explicitly black
	// card (0) is indistinguishable from no color. It reads back as absent and
	// Patch gives it DefaultColor; sending 0 back would be dropped anyway.
	if e.Color != 0 {
		c := e.Color
		out.Color = &c
	}
	for _, f := range e.Fields {
		if f != nil {
			out.Fields = append(out.Fields, msgsync.Field{Name: f.Name, Value: f.Value, Inline: f.Inline})
		}
	}
	if e.Footer != nil {
		out.Footer = &msgsync.Footer{Text: e.Footer.Text, IconURL: e.Footer.IconURL}
	}

	rest := *e
	rest.Title, rest.Description, rest.Color = "", "", 0
	rest.Fields, rest.Footer = nil, nil
	if raw, err := json.Marshal(&rest); err == nil && string(raw) != "{}" {
		out.Extra = raw
	}
	return out
}

func fromEmbed(e msgsync.Embed) *discordgo.MessageEmbed {
	var out discordgo.MessageEmbed
	if len(e.Extra) > 0 {
		_ = json.Unmarshal(e.Extra, &out)
	}
	out.Title = e.Title
	out.Description = e.Description
	if e.Color != nil {
		out.Color = *e.Color
	}
	out.Fields = make([]*discordgo.MessageEmbedField, 0, len(e.Fields))
	for _, f := range e.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	if e.Footer != nil {
		out.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer.Text, IconURL: e.Footer.IconURL}
	}
	return &out
}
