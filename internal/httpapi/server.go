package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"jobpulse/internal/msgsync"
	rtsup "jobpulse/internal/runtime/supervisor"
	logx "jobpulse/pkg/logx"
)

// Config controls the HTTP service that exposes message sync.
//
// Every /api route requires "Authorization: Bearer <Token>". An empty Token
// rejects all API calls.
type Config struct {
	Enabled bool
	Addr    string
	Token   string

	MaxBodyBytes int64

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

const (
	DefaultAddr         = "127.0.0.1:8080"
	DefaultMaxBodyBytes = 1 << 20
)

// Querier is the read path.
type Querier interface {
	Query(ctx context.Context, q msgsync.RetrievalQuery) (msgsync.RetrievalResult, error)
}

// Updater is the write path.
type Updater interface {
	Run(ctx context.Context, reqs []msgsync.UpdateRequest) []msgsync.UpdateOutcome
}

type Service struct {
	mu  sync.Mutex
	log logx.Logger
	cfg Config

	query  Querier
	update Updater
	schema *jsonschema.Schema

	srv *http.Server
	sup *rtsup.Supervisor
}

func New(cfg Config, q Querier, u Updater, log logx.Logger) (*Service, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	sch, err := compileUpdatesSchema()
	if err != nil {
		return nil, err
	}
	return &Service{
		cfg:    normalize(cfg),
		query:  q,
		update: u,
		schema: sch,
		log:    log.With(logx.String("comp", "httpapi")),
	}, nil
}

func normalize(cfg Config) Config {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	cfg.Token = strings.TrimSpace(cfg.Token)
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return cfg
}

// Handler returns the routed handler with middleware applied.
func (s *Service) Handler() http.Handler {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()
	return s.routes(cfg)
}

func (s *Service) routes(cfg Config) http.Handler {
	r := mux.NewRouter()
	r.Use(s.withRequestID, s.withRecover)
	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(withBearer(cfg.Token))
	api.HandleFunc("/updates", s.postUpdates).Methods(http.MethodPost)
	api.HandleFunc("/messages", s.getMessages).Methods(http.MethodGet)
	return r
}

// Reconfigure applies cfg and starts, stops or restarts the server as needed.
// Safe to call during hot-reload.
func (s *Service) Reconfigure(ctx context.Context, cfg Config) error {
	cfg = normalize(cfg)
	s.mu.Lock()
	prev := s.cfg
	running := s.srv != nil
	s.cfg = cfg
	s.mu.Unlock()

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	switch {
	case !cfg.Enabled:
		return s.Stop(stopCtx)
	case !running:
		return s.Start(ctx)
	case prev != cfg:
		if err := s.Stop(stopCtx); err != nil {
			s.log.Warn("http api stop before restart failed", logx.Err(err))
		}
		return s.Start(ctx)
	}
	return nil
}

// Start listens and serves in the background. It is a no-op when disabled
// or already running.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled || s.srv != nil {
		return nil
	}
	cfg := s.cfg
	if cfg.Token == "" {
		s.log.Warn("api token is empty; every api call will be rejected")
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:      s.routes(cfg),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	s.srv = srv
	s.sup = rtsup.New(ctx, rtsup.WithLogger(s.log))

	s.sup.Go("http.serve", func(context.Context) error {
		err := srv.Serve(ln)
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	s.log.Info("http api started", logx.String("addr", ln.Addr().String()), logx.Bool("token_set", cfg.Token != ""))
	return nil
}

// Stop shuts the server down gracefully within ctx.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, sup := s.srv, s.sup
	s.srv, s.sup = nil, nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	err := srv.Shutdown(ctx)
	if err != nil {
		_ = srv.Close()
	}
	sup.Cancel()
	_ = sup.Wait(ctx)
	s.log.Info("http api stopped")
	return err
}
