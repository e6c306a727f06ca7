package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	logx "jobpulse/pkg/logx"
)

const headerRequestID = "X-Request-ID"

type ctxKey int

const keyRequestID ctxKey = iota

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(keyRequestID).(string)
	return id
}

func (s *Service) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(headerRequestID))
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		start := time.Now()
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), keyRequestID, id)))
		s.log.Debug("http request",
			logx.String("rid", id),
			logx.String("method", r.Method),
			logx.String("path", r.URL.Path),
			logx.Duration("dur", time.Since(start)),
		)
	})
}

func (s *Service) withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("panic in http handler",
					logx.String("rid", requestID(r.Context())),
					logx.String("path", r.URL.Path),
					logx.Any("panic", rec),
					logx.String("stack", string(debug.Stack())),
				)
				writeError(w, http.StatusInternalServerError, "internal error", "")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func withBearer(token string) func(http.Handler) http.Handler {
	tok := []byte(strings.TrimSpace(token))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const p = "Bearer "
			ah := r.Header.Get("Authorization")
			got := []byte(strings.TrimSpace(strings.TrimPrefix(ah, p)))
			if len(tok) == 0 || !strings.HasPrefix(ah, p) || subtle.ConstantTimeCompare(got, tok) != 1 {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeError(w, http.StatusUnauthorized, "unauthorized", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
