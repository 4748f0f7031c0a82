package http

import (
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/boutique-orders/internal/cart"
	"github.com/dmehra2102/boutique-orders/internal/catalog"
	"github.com/dmehra2102/boutique-orders/internal/loyalty"
	"github.com/dmehra2102/boutique-orders/internal/order/domain"
	"github.com/dmehra2102/boutique-orders/internal/promo"
	"github.com/dmehra2102/boutique-orders/internal/validation"
)

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, validation.ErrValidation),
		errors.Is(err, catalog.ErrUnknownOption),
		errors.Is(err, promo.ErrPromoInvalid),
		errors.Is(err, promo.ErrPromoExpired),
		errors.Is(err, loyalty.ErrNonPositive),
		errors.Is(err, cart.ErrEmpty),
		errors.Is(err, domain.ErrEmptyCart):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, cart.ErrNotFound),
		errors.Is(err, cart.ErrIndexOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fields collects the per-field messages of a validation failure.
func fields(err error) map[string]string {
	out := map[string]string{}
	var walk func(error)
	walk = func(err error) {
		if ve, ok := err.(*validation.Error); ok {
			out[ve.Field] = ve.Err.Error()
			return
		}
		switch u := err.(type) {
		case interface{ Unwrap() []error }:
			for _, e := range u.Unwrap() {
				walk(e)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		}
	}
	walk(err)
	if len(out) == 0 {
		return nil
	}
	return out
}

// fail writes err as a JSON error. Server errors are logged and their detail
// withheld from the client.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	span := trace.SpanFromContext(r.Context())
	if status >= http.StatusInternalServerError {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeJSON(w, status, errorBody{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Fields: fields(err)})
}
