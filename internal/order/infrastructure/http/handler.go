package http

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/boutique-orders/internal/analytics"
	"github.com/dmehra2102/boutique-orders/internal/cart"
	"github.com/dmehra2102/boutique-orders/internal/loyalty"
	"github.com/dmehra2102/boutique-orders/internal/notify"
	"github.com/dmehra2102/boutique-orders/internal/order/application"
	"github.com/dmehra2102/boutique-orders/internal/session"
	"github.com/dmehra2102/boutique-orders/pkg/idempotency"
)

const (
	CookieName          = "boutique_session"
	AdminPasswordHeader = "X-Admin-Password"

	maxBody = 1 << 20
)

type Deps struct {
	Service       *application.Service
	Carts         *cart.Store
	Sessions      session.Store
	Tracker       *analytics.Tracker
	Ledger        *loyalty.Ledger
	Formatter     notify.Formatter
	Idempotency   idempotency.Checker
	AdminPassword string
	SessionTTL    time.Duration
}

type Handler struct {
	log    *slog.Logger
	deps   Deps
	tracer trace.Tracer
	now    func() time.Time
}

func NewHandler(log *slog.Logger, deps Deps) *Handler {
	return &Handler{
		log:    log,
		deps:   deps,
		tracer: otel.Tracer("boutique-http"),
		now:    time.Now,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, extractTrace)

	r.Get("/healthz", h.healthz)
	r.Post("/visits", h.withSession(h.recordVisit))
	r.Post("/price", h.price)

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.withSession(h.getCart))
		r.Delete("/", h.withSession(h.clearCart))
		r.Post("/items", h.withSession(h.addItem))
		r.Delete("/items/{index}", h.withSession(h.removeItem))
		r.Post("/save", h.withSession(h.saveCart))
		r.Post("/load/{code}", h.withSession(h.loadCart))
	})

	r.Post("/checkout/preview", h.withSession(h.preview))
	r.With(idempotency.Guard(h.log, h.deps.Idempotency, "checkout")).
		Post("/checkout", h.withSession(h.checkout))
	r.Get("/quotes/{id}/summary.txt", h.withSession(h.quoteSummary))
	r.Get("/quotes/{id}/quote.pdf", h.withSession(h.quotePDF))

	r.Mount("/admin", h.adminRoutes())
	return r
}

// extractTrace continues a trace started by the caller, if any.
func extractTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.deps.AdminPassword == "" {
			writeJSON(w, http.StatusForbidden, errorBody{Error: "admin console disabled"})
			return
		}
		given := r.Header.Get(AdminPasswordHeader)
		if subtle.ConstantTimeCompare([]byte(given), []byte(h.deps.AdminPassword)) != 1 {
			h.log.Warn("admin access denied", "path", r.URL.Path, "remote", r.RemoteAddr)
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "wrong admin password"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "body too large"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
