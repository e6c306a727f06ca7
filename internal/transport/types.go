package transport

import "context"

type UpdateKind string

const (
	UpdateCommand   UpdateKind = "command"
	UpdateMessage   UpdateKind = "message"
	UpdateGuildJoin UpdateKind = "guild_join"
	UpdateReady     UpdateKind = "ready"
)

type Update struct {
	Kind    UpdateKind
	Command *Command
	Message *Message
	Guild   *Guild
	Ready   *Ready
}

// Command is one slash command invocation.
type Command struct {
	// ID and Token identify the interaction; Token is needed to answer it.
	ID    string
	Token string
	AppID string

	Name      string
	Options   map[string]string // integer options are rendered in base 10
	UserID    string
	GuildID   string
	ChannelID string

	// AppPermissions are the bot's resolved permissions in ChannelID.
	AppPermissions int64
}

func (c *Command) Option(name string) string {
	if c == nil || c.Options == nil {
		return ""
	}
	return c.Options[name]
}

type Message struct {
	ID         string
	ChannelID  string
	GuildID    string
	AuthorID   string
	AuthorName string
	AuthorBot  bool
	Content    string
}

// Guild is a guild the bot was just added to.
type Guild struct {
	ID   string
	Name string
	// NoticeChannelID is the system channel, or the first text channel when the
	// guild has none. Empty when neither exists.
	NoticeChannelID string
}

type Ready struct {
	BotUserID string
	Username  string
	Guilds    int
}

// PermissionManageChannels mirrors the chat platform's MANAGE_CHANNELS bit.
const PermissionManageChannels int64 = 1 << 4

type OptionType int

const (
	OptionString OptionType = iota + 1
	OptionInteger
)

type OptionSpec struct {
	Name        string
	Description string
	Type        OptionType
	Required    bool
}

// CommandSpec describes a slash command for registration.
type CommandSpec struct {
	Name        string
	Description string
	Options     []OptionSpec
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error
}

// Responder answers commands and posts channel messages.
type Responder interface {
	Reply(ctx context.Context, cmd *Command, text string, ephemeral bool) error
	Defer(ctx context.Context, cmd *Command) error
	EditReply(ctx context.Context, cmd *Command, text string) error
	SendMessage(ctx context.Context, channelID, text string) error
}

// WebhookCreator creates a posting webhook in a channel and returns its URL.
type WebhookCreator interface {
	CreateWebhook(ctx context.Context, channelID, name string) (string, error)
}

// CommandRegistrar replaces the registered slash commands.
type CommandRegistrar interface {
	RegisterCommands(ctx context.Context, cmds []CommandSpec) error
}
