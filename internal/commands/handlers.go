package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"jobpulse/internal/backend"
	"jobpulse/internal/msgsync"
	"jobpulse/internal/storage"
	kit "jobpulse/internal/transport"
	logx "jobpulse/pkg/logx"
)

const WebhookName = "Job Pulse Webhook"

type Ping struct{}

func (Ping) Spec() kit.CommandSpec {
	return kit.CommandSpec{Name: KindPing.Name(), Description: "Replies with Pong!"}
}

func (Ping) Execute(context.Context, *Request) (Response, error) {
	return Response{Text: "Pong!"}, nil
}

type Echo struct{}

func (Echo) Spec() kit.CommandSpec {
	return kit.CommandSpec{
		Name:        KindEcho.Name(),
		Description: "Echoes your input",
		Options:     []kit.OptionSpec{{Name: "message", Description: "The message to echo", Type: kit.OptionString, Required: true}},
	}
}

func (Echo) Execute(_ context.Context, req *Request) (Response, error) {
	return Response{Text: "You said: " + req.Cmd.Option("message")}, nil
}

// Setup links the caller's backend account (by email) to this guild and
// channel, creating a posting webhook when the account has none yet.
type Setup struct {
	Users    storage.Store
	Webhooks kit.WebhookCreator
}

func (Setup) Spec() kit.CommandSpec {
	return kit.CommandSpec{
		Name:        KindSetup.Name(),
		Description: "Setup the bot on this Channel",
		Options:     []kit.OptionSpec{{Name: "email", Description: "Enter your registered email", Type: kit.OptionString, Required: true}},
	}
}

func (s Setup) Execute(ctx context.Context, req *Request) (Response, error) {
	cmd := req.Cmd
	if cmd.ChannelID == "" {
		return ephemeral("Error: Could not retrieve the channel."), nil
	}
	if cmd.AppPermissions&kit.PermissionManageChannels == 0 {
		return ephemeral("I need the `MANAGE_CHANNELS` permission to modify channel settings."), nil
	}
	email := strings.TrimSpace(cmd.Option("email"))
	if email == "" {
		return ephemeral("Please provide your registered email."), nil
	}
	failed := ephemeral("There was an error setting up the bot!")
	if s.Users == nil {
		return failed, storage.ErrDisabled
	}

	user, err := s.Users.GetByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return ephemeral("Email not found. Please register first."), nil
	}
	if err != nil {
		return failed, fmt.Errorf("lookup user: %w", err)
	}

	webhook := user.Webhook
	if webhook == "" && s.Webhooks != nil {
		webhook, err = s.Webhooks.CreateWebhook(ctx, cmd.ChannelID, WebhookName)
		if err != nil {
			req.Log.Warn("webhook create failed", logx.String("channel_id", cmd.ChannelID), logx.Err(err))
			webhook = ""
		} else {
			req.Log.Info("webhook created", logx.String("channel_id", cmd.ChannelID))
		}
	}

	if _, err := s.Users.LinkDiscord(ctx, email, storage.Link{DiscordID: cmd.UserID, GuildID: cmd.GuildID, Webhook: webhook}); err != nil {
		return failed, fmt.Errorf("link user: %w", err)
	}
	return Response{Text: "Bot successfully set up and linked to your account!"}, nil
}

// BackendJob runs one backend job (poll or migrate) for the calling user.
type BackendJob struct {
	Kind  Kind // KindPoll or KindMigrate
	Users storage.Store
	Jobs  backend.Jobs
}

func (j BackendJob) Spec() kit.CommandSpec {
	desc := "Poll for new emails"
	if j.Kind == KindMigrate {
		desc = "Migrate Existing Emails to the new label"
	}
	return kit.CommandSpec{Name: j.Kind.Name(), Description: desc}
}

func (j BackendJob) Execute(ctx context.Context, req *Request) (Response, error) {
	okText, failText := "✅ Successfully polled emails", "❌ Failed to poll emails"
	if j.Kind == KindMigrate {
		okText, failText = "✅ Successfully migrated emails", "❌ Failed to migrate emails"
	}
	notFound := ephemeral("User not found. Please register first.")
	if j.Users == nil {
		return notFound, storage.ErrDisabled
	}
	user, err := j.Users.GetByDiscord(ctx, req.Cmd.UserID, req.Cmd.GuildID)
	if errors.Is(err, storage.ErrNotFound) {
		return notFound, nil
	}
	if err != nil {
		return notFound, fmt.Errorf("lookup user: %w", err)
	}

	if req.Defer != nil {
		if err := req.Defer(ctx); err != nil {
			return Response{}, fmt.Errorf("defer reply: %w", err)
		}
	}
	res := Response{Text: failText, Deferred: req.Defer != nil}

	if j.Jobs == nil {
		return res, errors.New("backend not configured")
	}
	switch j.Kind {
	case KindMigrate:
		_, err = j.Jobs.MigrateEmails(ctx, user.ID)
	default:
		_, err = j.Jobs.PollEmails(ctx, user.ID)
	}
	if err != nil {
		return res, err
	}
	res.Text = okText
	return res, nil
}

// HistoryQuerier is the read path of message sync.
type HistoryQuerier interface {
	Query(ctx context.Context, q msgsync.RetrievalQuery) (msgsync.RetrievalResult, error)
}

const maxHistoryLimit = 25

// History lists the job update cards posted in the current channel.
type History struct {
	Sync HistoryQuerier
}

func (History) Spec() kit.CommandSpec {
	return kit.CommandSpec{
		Name:        KindHistory.Name(),
		Description: "List job updates posted in this channel",
		Options: []kit.OptionSpec{
			{Name: "date", Description: "Only updates since this date (YYYY-MM-DD)", Type: kit.OptionString},
			{Name: "page", Description: "Page number (default 1)", Type: kit.OptionInteger},
			{Name: "limit", Description: "Updates per page (default 10)", Type: kit.OptionInteger},
		},
	}
}

func (h History) Execute(ctx context.Context, req *Request) (Response, error) {
	cutoff, err := msgsync.ParseCutoff(req.Cmd.Option("date"))
	if err != nil {
		return ephemeral("Invalid date, use YYYY-MM-DD."), nil
	}
	page := atoiOr(req.Cmd.Option("page"), msgsync.DefaultPage)
	limit := min(atoiOr(req.Cmd.Option("limit"), msgsync.DefaultLimit), maxHistoryLimit)
	if h.Sync == nil {
		return ephemeral("❌ Failed to fetch job updates"), errors.New("history not configured")
	}

	if req.Defer != nil {
		if err := req.Defer(ctx); err != nil {
			return Response{}, fmt.Errorf("defer reply: %w", err)
		}
	}
	res := Response{Deferred: req.Defer != nil}

	result, err := h.Sync.Query(ctx, msgsync.RetrievalQuery{Cutoff: cutoff, Page: page, Limit: limit, ChannelID: req.Cmd.ChannelID})
	if err != nil {
		res.Text = "❌ Failed to fetch job updates"
		return res, err
	}
	res.Text = FormatHistory(result)
	return res, nil
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return def
	}
	return n
}

func ephemeral(text string) Response { return Response{Text: text, Ephemeral: true} }
