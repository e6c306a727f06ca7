package commands

import (
	"context"
	"fmt"

	kit "jobpulse/internal/transport"
	logx "jobpulse/pkg/logx"
)

// Kind enumerates the slash commands the bot understands.
type Kind int

const (
	KindPing Kind = iota + 1
	KindEcho
	KindSetup
	KindPoll
	KindMigrate
	KindHistory
)

var kindNames = map[Kind]string{
	KindPing:    "ping",
	KindEcho:    "echo",
	KindSetup:   "setup",
	KindPoll:    "poll",
	KindMigrate: "migrate-emails",
	KindHistory: "history",
}

// Name is the slash command name.
func (k Kind) Name() string { return kindNames[k] }

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func KindFromName(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

type Request struct {
	Cmd   *kit.Command
	ReqID string
	Log   logx.Logger

	// Defer acknowledges the command so the handler may take longer than the
	// platform's reply deadline. The final text is then sent as an edit.
	Defer func(ctx context.Context) error
}

type Response struct {
	Text      string
	Ephemeral bool
	// Deferred means the handler called Request.Defer.
	Deferred bool
}

// Handler executes one command kind.
type Handler interface {
	Spec() kit.CommandSpec
	Execute(ctx context.Context, req *Request) (Response, error)
}

// Registry maps command kinds to handlers. Registration happens once at
// startup; lookups are read-only afterwards.
type Registry struct {
	handlers map[Kind]Handler
	order    []Kind
}

func NewRegistry() *Registry {
	return &Registry{handlers: map[Kind]Handler{}}
}

func (r *Registry) Register(k Kind, h Handler) error {
	if _, ok := kindNames[k]; !ok {
		return fmt.Errorf("unknown command kind %d", int(k))
	}
	if h == nil {
		return fmt.Errorf("nil handler for %s", k)
	}
	if spec := h.Spec(); spec.Name != k.Name() {
		return fmt.Errorf("handler spec %q does not match kind %s", spec.Name, k)
	}
	if _, dup := r.handlers[k]; dup {
		return fmt.Errorf("command %s registered twice", k)
	}
	r.handlers[k] = h
	r.order = append(r.order, k)
	return nil
}

func (r *Registry) Lookup(name string) (Kind, Handler, bool) {
	k, ok := KindFromName(name)
	if !ok {
		return 0, nil, false
	}
	h, ok := r.handlers[k]
	return k, h, ok
}

// Specs returns the registered command definitions in registration order.
func (r *Registry) Specs() []kit.CommandSpec {
	out := make([]kit.CommandSpec, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.handlers[k].Spec())
	}
	return out
}
