package discord

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	rtsup "jobpulse/internal/runtime/supervisor"
	kit "jobpulse/internal/transport"
	logx "jobpulse/pkg/logx"
)

type Config struct {
	Token string
	// AppID is the application id used for command registration. When empty
	// the bot user id learned on Ready is used.
	AppID string
	// GuildID scopes command registration to one guild.
	GuildID string
}

// Adapter owns the gateway session and turns gateway events into
// transport updates.
type Adapter struct {
	cfg Config
	log logx.Logger

	s *discordgo.Session

	out     atomic.Value // chan<- kit.Update
	runMu   sync.Mutex
	running bool
	sup     *rtsup.Supervisor

	droppedUpdates uint64

	botUserID atomic.Value // string

	// guilds announced in Ready; a GuildCreate for any other id is a new join
	knownMu sync.Mutex
	known   map[string]struct{}
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("discord token is empty")
	}
	s, err := discordgo.New("Bot " + strings.TrimSpace(cfg.Token))
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{cfg: cfg, log: log, s: s, known: map[string]struct{}{}}
	var nilOut chan<- kit.Update
	a.out.Store(nilOut)
	a.botUserID.Store("")
	a.registerHandlers()
	return a, nil
}

// Session exposes the underlying session for the REST client.
func (a *Adapter) Session() *discordgo.Session { return a.s }

func (a *Adapter) BotUserID() string {
	id, _ := a.botUserID.Load().(string)
	return id
}

func (a *Adapter) registerHandlers() {
	a.s.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		if r.User != nil {
			a.botUserID.Store(r.User.ID)
		}
		a.knownMu.Lock()
		for _, g := range r.Guilds {
			a.known[g.ID] = struct{}{}
		}
		a.knownMu.Unlock()

		up := kit.Update{Kind: kit.UpdateReady, Ready: &kit.Ready{Guilds: len(r.Guilds)}}
		if r.User != nil {
			up.Ready.BotUserID = r.User.ID
			up.Ready.Username = r.User.Username
		}
		a.sendUpdate(up)
	})

	a.s.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type != discordgo.InteractionApplicationCommand {
			return
		}
		a.sendUpdate(kit.Update{Kind: kit.UpdateCommand, Command: commandFromInteraction(i.Interaction)})
	})

	a.s.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Message == nil || m.Author == nil {
			return
		}
		a.sendUpdate(kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{
			ID:         m.ID,
			ChannelID:  m.ChannelID,
			GuildID:    m.GuildID,
			AuthorID:   m.Author.ID,
			AuthorName: m.Author.Username,
			AuthorBot:  m.Author.Bot,
			Content:    m.Content,
		}})
	})

	a.s.AddHandler(func(_ *discordgo.Session, g *discordgo.GuildCreate) {
		if g.Guild == nil || g.Unavailable {
			return
		}
		a.knownMu.Lock()
		_, seen := a.known[g.ID]
		a.known[g.ID] = struct{}{}
		a.knownMu.Unlock()
		if seen {
			return
		}
		a.sendUpdate(kit.Update{Kind: kit.UpdateGuildJoin, Guild: &kit.Guild{
			ID:              g.ID,
			Name:            g.Name,
			NoticeChannelID: noticeChannel(g.Guild),
		}})
	})
}

func noticeChannel(g *discordgo.Guild) string {
	if g.SystemChannelID != "" {
		return g.SystemChannelID
	}
	for _, ch := range g.Channels {
		if ch != nil && ch.Type == discordgo.ChannelTypeGuildText {
			return ch.ID
		}
	}
	return ""
}

func commandFromInteraction(i *discordgo.Interaction) *kit.Command {
	data := i.ApplicationCommandData()
	cmd := &kit.Command{
		ID:             i.ID,
		Token:          i.Token,
		AppID:          i.AppID,
		Name:           data.Name,
		Options:        make(map[string]string, len(data.Options)),
		GuildID:        i.GuildID,
		ChannelID:      i.ChannelID,
		AppPermissions: i.AppPermissions,
	}
	switch {
	case i.Member != nil && i.Member.User != nil:
		cmd.UserID = i.Member.User.ID
	case i.User != nil:
		cmd.UserID = i.User.ID
	}
	for _, o := range data.Options {
		switch o.Type {
		case discordgo.ApplicationCommandOptionString:
			cmd.Options[o.Name] = o.StringValue()
		case discordgo.ApplicationCommandOptionInteger:
			cmd.Options[o.Name] = strconv.FormatInt(o.IntValue(), 10)
		}
	}
	return cmd
}

func (a *Adapter) sendUpdate(up kit.Update) {
	out, _ := a.out.Load().(chan<- kit.Update)
	if out == nil {
		return
	}
	select {
	case out <- up:
	default:
		atomic.AddUint64(&a.droppedUpdates, 1)
	}
}

// Start opens the gateway. discordgo reconnects on its own, so only the drop
// reporter runs under the supervisor.
func (a *Adapter) Start(ctx context.Context, out chan<- kit.Update) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.out.Store(out)
	if err := a.s.Open(); err != nil {
		var nilOut chan<- kit.Update
		a.out.Store(nilOut)
		a.runMu.Unlock()
		return err
	}
	a.running = true
	a.sup = rtsup.New(ctx,
		rtsup.WithLogger(a.log.With(logx.String("comp", "discord.adapter"))),
		rtsup.WithCancelOnError(false),
	)
	sup := a.sup
	a.runMu.Unlock()

	sup.Go0("updates.drop_report", func(c context.Context) {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		report := func() {
			if n := atomic.SwapUint64(&a.droppedUpdates, 0); n > 0 {
				a.log.Warn("incoming updates dropped (channel full)", logx.Uint64("count", n), logx.Int("chan_cap", cap(out)))
			}
		}
		for {
			select {
			case <-c.Done():
				report()
				return
			case <-ticker.C:
				report()
			}
		}
	})

	a.log.Info("gateway connected")
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	sup := a.sup
	a.sup = nil
	wasRunning := a.running
	a.running = false
	var nilOut chan<- kit.Update
	a.out.Store(nilOut)
	a.runMu.Unlock()

	if !wasRunning {
		return nil
	}
	if err := a.s.Close(); err != nil {
		a.log.Warn("gateway close failed", logx.Err(err))
	}
	if sup != nil {
		if err := sup.Stop(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			a.log.Debug("adapter supervisor stopped with error", logx.Err(err))
		}
	}
	a.log.Info("gateway closed")
	return nil
}

func interaction(cmd *kit.Command) *discordgo.Interaction {
	return &discordgo.Interaction{ID: cmd.ID, Token: cmd.Token, AppID: cmd.AppID}
}

func (a *Adapter) Reply(ctx context.Context, cmd *kit.Command, text string, ephemeral bool) error {
	data := &discordgo.InteractionResponseData{Content: text}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return a.s.InteractionRespond(interaction(cmd), &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}, discordgo.WithContext(ctx))
}

func (a *Adapter) Defer(ctx context.Context, cmd *kit.Command) error {
	return a.s.InteractionRespond(interaction(cmd), &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}, discordgo.WithContext(ctx))
}

func (a *Adapter) EditReply(ctx context.Context, cmd *kit.Command, text string) error {
	_, err := a.s.InteractionResponseEdit(interaction(cmd), &discordgo.WebhookEdit{Content: &text}, discordgo.WithContext(ctx))
	return err
}

func (a *Adapter) SendMessage(ctx context.Context, channelID, text string) error {
	_, err := a.s.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	return err
}

func (a *Adapter) CreateWebhook(ctx context.Context, channelID, name string) (string, error) {
	w, err := a.s.WebhookCreate(channelID, name, "", discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return discordgo.EndpointWebhookToken(w.ID, w.Token), nil
}

func (a *Adapter) RegisterCommands(ctx context.Context, cmds []kit.CommandSpec) error {
	appID := strings.TrimSpace(a.cfg.AppID)
	if appID == "" {
		appID = a.BotUserID()
	}
	if appID == "" {
		return errors.New("discord application id unknown")
	}
	_, err := a.s.ApplicationCommandBulkOverwrite(appID, a.cfg.GuildID, toApplicationCommands(cmds), discordgo.WithContext(ctx))
	return err
}

func toApplicationCommands(cmds []kit.CommandSpec) []*discordgo.ApplicationCommand {
	out := make([]*discordgo.ApplicationCommand, 0, len(cmds))
	for _, c := range cmds {
		ac := &discordgo.ApplicationCommand{Name: c.Name, Description: c.Description}
		for _, o := range c.Options {
			t := discordgo.ApplicationCommandOptionString
			if o.Type == kit.OptionInteger {
				t = discordgo.ApplicationCommandOptionInteger
			}
			ac.Options = append(ac.Options, &discordgo.ApplicationCommandOption{
				Type:        t,
				Name:        o.Name,
				Description: o.Description,
				Required:    o.Required,
			})
		}
		out = append(out, ac)
	}
	return out
}
