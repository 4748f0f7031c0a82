package idempotency

import (
	"context"
	"log/slog"
	"net/http"
)

const Header = "Idempotency-Key"

// Checker is the subset of Store the HTTP guard needs.
type Checker interface {
	Seen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

type keyer interface {
	RequestKey(route, clientKey string) string
}

// Guard rejects a replayed Idempotency-Key with 409. Requests without the
// header pass through. A key is kept only when its request succeeded, so a
// client may resend the same key after a rejected or failed attempt.
func Guard(log *slog.Logger, c Checker, route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := r.Header.Get(Header)
			if clientKey == "" || c == nil {
				next.ServeHTTP(w, r)
				return
			}
			key := route + ":" + clientKey
			if k, ok := c.(keyer); ok {
				key = k.RequestKey(route, clientKey)
			}

			seen, err := c.Seen(r.Context(), key)
			if err != nil {
				log.Error("idempotency check failed", "route", route, "err", err)
				http.Error(w, "idempotency store unavailable", http.StatusServiceUnavailable)
				return
			}
			if seen {
				log.Info("duplicate request rejected", "route", route, "key", clientKey)
				http.Error(w, "duplicate request", http.StatusConflict)
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			if rec.status < 200 || rec.status >= 300 {
				if err := c.Forget(r.Context(), key); err != nil {
					log.Warn("idempotency release failed", "route", route, "err", err)
				}
			}
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
