// Package pprof serves the runtime profiler on an optional, separate
// listener.
package pprof

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	rtsup "jobpulse/internal/runtime/supervisor"
	logx "jobpulse/pkg/logx"
)

// Config controls the profiling listener.
//
// Prefer binding to localhost (the default). A non-loopback Addr needs a
// Token or AllowInsecure.
type Config struct {
	Enabled       bool
	Addr          string
	Prefix        string
	Token         string
	AllowInsecure bool

	BlockProfileRate     int
	MutexProfileFraction int
}

const (
	DefaultAddr   = "127.0.0.1:6060"
	DefaultPrefix = "/debug/pprof/"
)

var ErrInsecureBind = errors.New("pprof: non-loopback addr requires token or allow_insecure")

type Service struct {
	mu  sync.Mutex
	log logx.Logger
	cfg Config

	srv  *http.Server
	addr string
	sup  *rtsup.Supervisor
}

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: normalize(cfg), log: log.With(logx.String("comp", "pprof"))}
}

func normalize(cfg Config) Config {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	cfg.Prefix = normalizePrefix(cfg.Prefix)
	cfg.Token = strings.TrimSpace(cfg.Token)
	return cfg
}

// Validate rejects an insecure bind before anything listens.
func Validate(cfg Config) error {
	cfg = normalize(cfg)
	if cfg.Enabled && cfg.Token == "" && !cfg.AllowInsecure && !isLoopbackAddr(cfg.Addr) {
		return ErrInsecureBind
	}
	return nil
}

// Addr is the bound address while running.
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Reconfigure applies profiling rates and starts, stops or restarts the
// listener as needed.
func (s *Service) Reconfigure(ctx context.Context, cfg Config) error {
	cfg = normalize(cfg)
	applyRuntimeRates(cfg)

	s.mu.Lock()
	prev := s.cfg
	running := s.srv != nil
	s.cfg = cfg
	s.mu.Unlock()

	switch {
	case !cfg.Enabled:
		return s.Stop(ctx)
	case !running:
		return s.Start(ctx)
	case prev != cfg:
		if err := s.Stop(ctx); err != nil {
			s.log.Warn("pprof stop before restart failed", logx.Err(err))
		}
		return s.Start(ctx)
	}
	return nil
}

func applyRuntimeRates(cfg Config) {
	if cfg.BlockProfileRate >= 0 {
		runtime.SetBlockProfileRate(cfg.BlockProfileRate)
	}
	if cfg.MutexProfileFraction >= 0 {
		runtime.SetMutexProfileFraction(cfg.MutexProfileFraction)
	}
}

// Start is a no-op when disabled or already running.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := s.cfg
	if !cfg.Enabled || s.srv != nil {
		return nil
	}
	if err := Validate(cfg); err != nil {
		return err
	}
	if cfg.AllowInsecure && cfg.Token == "" && !isLoopbackAddr(cfg.Addr) {
		s.log.Warn("pprof running without token on non-loopback addr (insecure)", logx.String("addr", cfg.Addr))
	}
	applyRuntimeRates(cfg)

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           Handler(cfg.Prefix, cfg.Token),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.srv, s.addr = srv, ln.Addr().String()
	s.sup = rtsup.New(ctx, rtsup.WithLogger(s.log))
	s.sup.Go("pprof.serve", func(context.Context) error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	s.log.Info("pprof started",
		logx.String("addr", s.addr),
		logx.String("prefix", cfg.Prefix),
		logx.Bool("token_set", cfg.Token != ""),
	)
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, sup := s.srv, s.sup
	s.srv, s.sup, s.addr = nil, nil, ""
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
	s.log.Info("pprof stopped")
	return err
}

// Handler mounts the profiler under prefix. A non-empty token is required
// as a bearer header or ?token= query value.
func Handler(prefix, token string) http.Handler {
	prefix = normalizePrefix(prefix)
	base := strings.TrimSuffix(prefix, "/")

	r := mux.NewRouter()
	r.Use(withToken(strings.TrimSpace(token)))
	r.HandleFunc(base, func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, prefix, http.StatusPermanentRedirect)
	})
	r.HandleFunc(base+"/cmdline", hpprof.Cmdline)
	r.HandleFunc(base+"/profile", hpprof.Profile)
	r.HandleFunc(base+"/symbol", hpprof.Symbol)
	r.HandleFunc(base+"/trace", hpprof.Trace)
	// hpprof.Index resolves named profiles relative to /debug/pprof/
	r.PathPrefix(prefix).HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r2 := req.Clone(req.Context())
		r2.URL.Path = DefaultPrefix + strings.TrimPrefix(req.URL.Path, prefix)
		hpprof.Index(w, r2)
	})
	return r
}

func withToken(token string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.URL.Query().Get("token")
			if got == "" {
				got = strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func normalizePrefix(prefix string) string {
	p := strings.TrimSpace(prefix)
	if p == "" {
		return DefaultPrefix
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		// all interfaces
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
