package commands

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	rtsup "jobpulse/internal/runtime/supervisor"
	kit "jobpulse/internal/transport"
	logx "jobpulse/pkg/logx"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultQueueSize = 256

	genericFailure = "There was an error executing this command!"
	greeting       = "hello bot"
	greetingReply  = "Hello there!"
)

type DispatcherConfig struct {
	Workers   int
	QueueSize int
	// Timeout bounds one command, including backend calls.
	Timeout time.Duration
}

// Dispatcher routes transport updates to command handlers on a bounded
// worker pool.
type Dispatcher struct {
	reg   *Registry
	out   kit.Responder
	cmds  kit.CommandRegistrar
	log   logx.Logger
	cfg   DispatcherConfig
	jobs  chan func()
	newID func() string
}

// NewDispatcher builds a dispatcher. cmds may be nil when command
// registration is handled elsewhere.
func NewDispatcher(reg *Registry, out kit.Responder, cmds kit.CommandRegistrar, log logx.Logger, cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = max(runtime.NumCPU(), 2)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{
		reg:   reg,
		out:   out,
		cmds:  cmds,
		log:   log.With(logx.String("comp", "commands")),
		cfg:   cfg,
		jobs:  make(chan func(), cfg.QueueSize),
		newID: func() string { return uuid.NewString() },
	}
}

// Run consumes updates until ctx is done or the channel closes. Running
// commands get up to Timeout to finish; queued ones are dropped.
func (d *Dispatcher) Run(ctx context.Context, updates <-chan kit.Update) error {
	sup := rtsup.New(ctx, rtsup.WithLogger(d.log))
	for i := 0; i < d.cfg.Workers; i++ {
		sup.Go0(fmt.Sprintf("commands.worker.%d", i), func(ctx context.Context) {
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-d.jobs:
					job()
				}
			}
		})
	}
	d.log.Info("command dispatcher started", logx.Int("workers", d.cfg.Workers), logx.Int("job_queue_cap", cap(d.jobs)))

	defer func() {
		sup.Cancel()
		wctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
		defer cancel()
		_ = sup.Wait(wctx)
		d.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			d.enqueue(sup.Context(), up)
		}
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, up kit.Update) {
	select {
	case d.jobs <- func() { d.Handle(ctx, up) }:
	default:
		d.log.Warn("command queue full", logx.String("kind", string(up.Kind)))
		if up.Kind == kit.UpdateCommand && up.Command != nil {
			_ = d.out.Reply(ctx, up.Command, "Busy, try again in a moment.", true)
		}
	}
}

// Handle processes one update synchronously.
func (d *Dispatcher) Handle(ctx context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateReady:
		d.onReady(ctx, up.Ready)
	case kit.UpdateCommand:
		d.onCommand(ctx, up.Command)
	case kit.UpdateMessage:
		d.onMessage(ctx, up.Message)
	case kit.UpdateGuildJoin:
		d.onGuildJoin(ctx, up.Guild)
	}
}

func (d *Dispatcher) onReady(ctx context.Context, r *kit.Ready) {
	if r != nil {
		d.log.Info("logged in", logx.String("user", r.Username), logx.Int("guilds", r.Guilds))
	}
	if d.cmds == nil || d.reg == nil {
		return
	}
	specs := d.reg.Specs()
	if err := d.cmds.RegisterCommands(ctx, specs); err != nil {
		d.log.Error("command registration failed", logx.Err(err))
		return
	}
	d.log.Info("commands registered", logx.Int("count", len(specs)))
}

func (d *Dispatcher) onMessage(ctx context.Context, m *kit.Message) {
	if m == nil || m.AuthorBot {
		return
	}
	if strings.ToLower(strings.TrimSpace(m.Content)) != greeting {
		return
	}
	if err := d.out.SendMessage(ctx, m.ChannelID, greetingReply); err != nil {
		d.log.Warn("greeting failed", logx.String("channel_id", m.ChannelID), logx.Err(err))
	}
}

func (d *Dispatcher) onGuildJoin(ctx context.Context, g *kit.Guild) {
	if g == nil {
		return
	}
	log := d.log.With(logx.String("guild_id", g.ID), logx.String("guild", g.Name))
	log.Info("joined guild")
	if g.NoticeChannelID == "" {
		log.Warn("no channel for setup instructions")
		return
	}
	if err := d.out.SendMessage(ctx, g.NoticeChannelID, SetupInstructions); err != nil {
		log.Warn("setup instructions failed", logx.Err(err))
	}
}

func (d *Dispatcher) onCommand(root context.Context, cmd *kit.Command) {
	if cmd == nil {
		return
	}
	rid := d.newID()
	log := d.log.With(
		logx.String("rid", rid),
		logx.String("cmd", cmd.Name),
		logx.String("user_id", cmd.UserID),
		logx.String("guild_id", cmd.GuildID),
		logx.String("channel_id", cmd.ChannelID),
	)

	var h Handler
	if d.reg != nil {
		_, h, _ = d.reg.Lookup(cmd.Name)
	}
	if h == nil {
		log.Warn("unknown command")
		_ = d.out.Reply(root, cmd, genericFailure, true)
		return
	}

	ctx, cancel := context.WithTimeout(root, d.cfg.Timeout)
	defer cancel()

	deferred := false
	req := &Request{
		Cmd:   cmd,
		ReqID: rid,
		Log:   log,
		Defer: func(ctx context.Context) error {
			if deferred {
				return nil
			}
			if err := d.out.Defer(ctx, cmd); err != nil {
				return err
			}
			deferred = true
			return nil
		},
	}

	start := time.Now()
	res, err := execute(ctx, h, req)
	dur := time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn("command timed out", logx.Duration("dur", dur), logx.Err(err))
		} else {
			log.Error("command failed", logx.Duration("dur", dur), logx.Err(err))
		}
		if res.Text == "" {
			res = Response{Text: genericFailure, Ephemeral: true}
		}
	} else {
		log.Debug("command ok", logx.Duration("dur", dur))
	}

	// the reply must go out even when the command consumed its deadline
	rctx, rcancel := context.WithTimeout(context.WithoutCancel(root), 10*time.Second)
	defer rcancel()
	if deferred {
		err = d.out.EditReply(rctx, cmd, res.Text)
	} else {
		err = d.out.Reply(rctx, cmd, res.Text, res.Ephemeral)
	}
	if err != nil {
		log.Warn("reply failed", logx.Bool("deferred", deferred), logx.Err(err))
	}
}

func execute(ctx context.Context, h Handler, req *Request) (res Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			req.Log.Error("panic in command", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			res, err = Response{}, fmt.Errorf("panic: %v", r)
		}
	}()
	return h.Execute(ctx, req)
}
