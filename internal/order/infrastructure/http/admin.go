package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dmehra2102/boutique-orders/internal/loyalty"
	"github.com/dmehra2102/boutique-orders/internal/order/domain"
	"github.com/dmehra2102/boutique-orders/internal/validation"
	"github.com/dmehra2102/boutique-orders/pkg/idempotency"
)

func (h *Handler) adminRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(h.requireAdmin)

	r.Get("/quotes", h.listQuotes)
	r.Get("/quotes/{id}", h.getQuote)
	r.With(idempotency.Guard(h.log, h.deps.Idempotency, "admin-confirm")).
		Post("/quotes/{id}/confirm", h.confirmQuote)
	r.Post("/quotes/{id}/cancel", h.cancelQuote)

	r.Get("/loyalty/{handle}", h.getLoyalty)
	r.Post("/loyalty/{handle}/credit", h.adjustLoyalty(true))
	r.Post("/loyalty/{handle}/debit", h.adjustLoyalty(false))

	r.Get("/analytics", h.analytics)
	return r
}

func (h *Handler) listQuotes(w http.ResponseWriter, r *http.Request) {
	quotes, err := h.deps.Service.ListQuotes(r.Context(), domain.Status(r.URL.Query().Get("status")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if quotes == nil {
		quotes = []domain.Quote{}
	}
	writeJSON(w, http.StatusOK, quotes)
}

func (h *Handler) getQuote(w http.ResponseWriter, r *http.Request) {
	q, err := h.deps.Service.GetQuote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) confirmQuote(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ConfirmPayment")
	defer span.End()
	id := chi.URLParam(r, "id")
	span.SetAttributes(attribute.String("quote.id", id))

	q, err := h.deps.Service.ConfirmPayment(ctx, id)
	if err != nil {
		h.fail(w, r.WithContext(ctx), err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) cancelQuote(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CancelQuote")
	defer span.End()
	r = r.WithContext(ctx)

	var req cancelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.Required("reason", req.Reason); err != nil {
		h.fail(w, r, err)
		return
	}
	q, err := h.deps.Service.CancelQuote(ctx, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

type loyaltyView struct {
	loyalty.Account
	Tier loyalty.Tier `json:"tier"`
}

func (h *Handler) getLoyalty(w http.ResponseWriter, r *http.Request) {
	a, err := h.deps.Ledger.Get(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loyaltyView{Account: a, Tier: a.Tier()})
}

type adjustRequest struct {
	Points int    `json:"points"`
	Reason string `json:"reason"`
}

func (h *Handler) adjustLoyalty(credit bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle := chi.URLParam(r, "handle")
		if err := validation.Handle(handle); err != nil {
			h.fail(w, r, err)
			return
		}
		var req adjustRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		reason := strings.TrimSpace(req.Reason)
		if reason == "" {
			reason = "admin"
		}

		var (
			a   loyalty.Account
			err error
		)
		if credit {
			a, err = h.deps.Ledger.Credit(r.Context(), handle, req.Points, reason)
		} else {
			a, err = h.deps.Ledger.Debit(r.Context(), handle, req.Points, reason)
		}
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, loyaltyView{Account: a, Tier: a.Tier()})
	}
}

func (h *Handler) analytics(w http.ResponseWriter, r *http.Request) {
	c, err := h.deps.Tracker.Snapshot(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
