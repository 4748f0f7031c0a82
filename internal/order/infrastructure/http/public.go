package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dmehra2102/boutique-orders/internal/cart"
	"github.com/dmehra2102/boutique-orders/internal/catalog"
	"github.com/dmehra2102/boutique-orders/internal/order/application"
	"github.com/dmehra2102/boutique-orders/internal/order/domain"
	"github.com/dmehra2102/boutique-orders/internal/session"
)

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Session)

// withSession resolves the visitor's session from its cookie, creating one
// when the cookie is missing or stale, and passes it to next.
func (h *Handler) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, fresh, err := h.session(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if fresh {
			if err := h.deps.Sessions.Save(r.Context(), sess); err != nil {
				h.fail(w, r, err)
				return
			}
		}
		http.SetCookie(w, &http.Cookie{
			Name:     CookieName,
			Value:    sess.ID,
			Path:     "/",
			MaxAge:   int(h.deps.SessionTTL.Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		next(w, r, sess)
	}
}

func (h *Handler) session(r *http.Request) (*session.Session, bool, error) {
	c, err := r.Cookie(CookieName)
	if err == nil && session.ValidID(c.Value) {
		sess, err := h.deps.Sessions.Load(r.Context(), c.Value)
		if err == nil {
			return sess, false, nil
		}
		if !errors.Is(err, session.ErrNotFound) {
			return nil, false, err
		}
	}
	return session.New(), true, nil
}

type cartView struct {
	Items []cart.LineItem `json:"items"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

func viewOf(c *cart.Cart) cartView {
	return cartView{Items: c.Items(), Count: c.Len(), Total: c.Total()}
}

func (h *Handler) saveAndShow(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := h.deps.Sessions.Save(r.Context(), sess); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess.Cart))
}

func (h *Handler) recordVisit(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := h.deps.Tracker.RecordVisit(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type priceView struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	BasePrice   decimal.Decimal `json:"base_price"`
	Price       decimal.Decimal `json:"price"`
}

func (h *Handler) price(w http.ResponseWriter, r *http.Request) {
	var spec catalog.Spec
	if !decodeJSON(w, r, &spec) {
		return
	}
	sel, err := spec.Build(h.now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, priceView{
		Title:       sel.Title(),
		Description: sel.Description(),
		BasePrice:   catalog.BasePrice(sel),
		Price:       catalog.Price(sel),
	})
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	writeJSON(w, http.StatusOK, viewOf(sess.Cart))
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var spec catalog.Spec
	if !decodeJSON(w, r, &spec) {
		return
	}
	sel, err := spec.Build(h.now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sess.Cart.Add(cart.NewLineItem(sel))
	h.saveAndShow(w, r, sess)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "index must be a number"})
		return
	}
	if _, err := sess.Cart.Remove(index); err != nil {
		h.fail(w, r, err)
		return
	}
	h.saveAndShow(w, r, sess)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	sess.Cart.Clear()
	h.saveAndShow(w, r, sess)
}

func (h *Handler) saveCart(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	code, err := h.deps.Carts.Save(r.Context(), sess.Cart)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"code": code})
}

func (h *Handler) loadCart(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	c, err := h.deps.Carts.Load(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sess.Cart = c
	h.saveAndShow(w, r, sess)
}

type checkoutRequest struct {
	Customer  domain.Customer `json:"customer"`
	Delivery  domain.Delivery `json:"delivery"`
	PromoCode string          `json:"promo_code"`
	Redeem    bool            `json:"redeem_points"`
}

func (c checkoutRequest) submit(items []cart.LineItem) application.SubmitRequest {
	return application.SubmitRequest{
		Items:     items,
		Customer:  c.Customer,
		Delivery:  c.Delivery,
		PromoCode: c.PromoCode,
		Redeem:    c.Redeem,
	}
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req checkoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	totals, err := h.deps.Service.Preview(r.Context(), req.submit(sess.Cart.Items()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	ctx, span := h.tracer.Start(r.Context(), "SubmitQuote")
	defer span.End()
	r = r.WithContext(ctx)

	var req checkoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sub, err := h.deps.Service.SubmitQuote(ctx, req.submit(sess.Cart.Items()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	span.SetAttributes(attribute.String("quote.id", sub.Quote.ID))

	sess.Cart.Clear()
	sess.Quotes = append(sess.Quotes, sub.Quote.ID)
	if err := h.deps.Sessions.Save(ctx, sess); err != nil {
		// The quote is stored; a stale cart is the only consequence.
		h.log.Error("session save after checkout failed", "quote_id", sub.Quote.ID, "err", err)
	}
	writeJSON(w, http.StatusCreated, sub)
}

// ownedQuote loads a quote the visitor submitted from this session.
func (h *Handler) ownedQuote(r *http.Request, sess *session.Session) (domain.Quote, error) {
	id := chi.URLParam(r, "id")
	if !sess.Owns(id) {
		return domain.Quote{}, domain.ErrNotFound
	}
	return h.deps.Service.GetQuote(r.Context(), id)
}

func (h *Handler) quoteSummary(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	q, err := h.ownedQuote(r, sess)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(h.deps.Formatter.Summary(q)))
}

func (h *Handler) quotePDF(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	q, err := h.ownedQuote(r, sess)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	data, err := h.deps.Formatter.PDF(q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+q.ID+`.pdf"`)
	_, _ = w.Write(data)
}
