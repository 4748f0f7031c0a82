package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/boutique-orders/internal/analytics"
	"github.com/dmehra2102/boutique-orders/internal/cart"
	"github.com/dmehra2102/boutique-orders/internal/loyalty"
	"github.com/dmehra2102/boutique-orders/internal/notify"
	"github.com/dmehra2102/boutique-orders/internal/order/application"
	"github.com/dmehra2102/boutique-orders/internal/order/domain"
	"github.com/dmehra2102/boutique-orders/internal/promo"
	"github.com/dmehra2102/boutique-orders/internal/session"
	"github.com/dmehra2102/boutique-orders/pkg/docstore/jsonfile"
	"github.com/dmehra2102/boutique-orders/pkg/idempotency"
)

const password = "rose-admin"

type memIdem struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memIdem) Seen(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return true, nil
	}
	m.keys[key] = true
	return false, nil
}

func (m *memIdem) Forget(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

func newTestHandler(t *testing.T, adminPassword string) http.Handler {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	docs, err := jsonfile.Open(log, t.TempDir())
	require.NoError(t, err)
	require.NoError(t, promo.Seed(context.Background(), docs, promo.Defaults()))

	format := notify.NewFormatter("Atelier Rose", "owner@example.com")
	h := NewHandler(log, Deps{
		Service:       application.NewService(log, docs, domain.DefaultPolicy(), format),
		Carts:         cart.NewStore(docs),
		Sessions:      session.NewMemoryStore(time.Hour),
		Tracker:       analytics.NewTracker(docs),
		Ledger:        loyalty.NewLedger(log, docs),
		Formatter:     format,
		Idempotency:   &memIdem{keys: map[string]bool{}},
		AdminPassword: adminPassword,
		SessionTTL:    time.Hour,
	})
	return h.Routes()
}

// client carries the session cookie between requests like a browser.
type client struct {
	t      *testing.T
	h      http.Handler
	cookie *http.Cookie
}

func (c *client) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == CookieName {
			c.cookie = ck
		}
	}
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

var bouquet30 = map[string]any{"kind": "bouquet", "stems": 30, "color": "red"}

func checkoutBody(handle string) map[string]any {
	return map[string]any{
		"customer": map[string]any{"name": "Inès", "phone": "06 12 34 56 78", "instagram": handle},
		"delivery": map[string]any{"mode": "pickup", "date": time.Now().AddDate(0, 0, 3).Format("2006-01-02"), "time_slot": "10:00-12:00"},
	}
}

func TestOrderFlowEndToEnd(t *testing.T) {
	h := newTestHandler(t, password)
	c := &client{t: t, h: h}
	admin := &client{t: t, h: h}

	rec := c.do(http.MethodPost, "/visits", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, c.cookie)

	rec = c.do(http.MethodPost, "/cart/items", bouquet30)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decode[cartView](t, rec)
	assert.Equal(t, 1, view.Count)
	assert.Equal(t, "45", view.Total.String())

	rec = c.do(http.MethodPost, "/checkout", checkoutBody("new_user"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sub := decode[application.Submission](t, rec)
	assert.Equal(t, domain.StatusPending, sub.Quote.Status)
	assert.True(t, strings.HasPrefix(sub.Mailto, "mailto:owner@example.com?subject="))

	rec = c.do(http.MethodGet, "/cart", nil)
	assert.Equal(t, 0, decode[cartView](t, rec).Count)

	rec = c.do(http.MethodGet, "/quotes/"+sub.Quote.ID+"/summary.txt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Total : 45.00 €")

	rec = c.do(http.MethodGet, "/quotes/"+sub.Quote.ID+"/quote.pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	stranger := &client{t: t, h: h}
	rec = stranger.do(http.MethodGet, "/quotes/"+sub.Quote.ID+"/summary.txt", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = admin.do(http.MethodGet, "/admin/quotes?status=pending", nil, AdminPasswordHeader, password)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.Quote](t, rec), 1)

	rec = admin.do(http.MethodPost, "/admin/quotes/"+sub.Quote.ID+"/confirm", nil, AdminPasswordHeader, password)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.StatusPaid, decode[domain.Quote](t, rec).Status)

	rec = admin.do(http.MethodPost, "/admin/quotes/"+sub.Quote.ID+"/confirm", nil, AdminPasswordHeader, password)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = admin.do(http.MethodGet, "/admin/loyalty/@new_user", nil, AdminPasswordHeader, password)
	require.Equal(t, http.StatusOK, rec.Code)
	lv := decode[map[string]any](t, rec)
	assert.EqualValues(t, 45, lv["points"])

	rec = admin.do(http.MethodGet, "/admin/analytics", nil, AdminPasswordHeader, password)
	require.Equal(t, http.StatusOK, rec.Code)
	counters := decode[analytics.Counters](t, rec)
	assert.Equal(t, int64(1), counters.Visits)
	assert.Equal(t, int64(1), counters.QuotesIssued)
	assert.Equal(t, int64(1), counters.OrdersPaid)
	assert.Equal(t, "45", counters.RevenueTotal.String())
}

func TestAdminRequiresPassword(t *testing.T) {
	h := newTestHandler(t, password)
	c := &client{t: t, h: h}

	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/admin/analytics", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/admin/analytics", nil, AdminPasswordHeader, "guess").Code)
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/admin/analytics", nil, AdminPasswordHeader, password).Code)

	disabled := &client{t: t, h: newTestHandler(t, "")}
	assert.Equal(t, http.StatusForbidden, disabled.do(http.MethodGet, "/admin/analytics", nil, AdminPasswordHeader, "").Code)
}

func TestCheckoutValidationErrorsListFields(t *testing.T) {
	c := &client{t: t, h: newTestHandler(t, password)}
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/cart/items", bouquet30).Code)

	body := checkoutBody("bad..handle")
	body["customer"].(map[string]any)["phone"] = "123"
	rec := c.do(http.MethodPost, "/checkout", body)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	eb := decode[errorBody](t, rec)
	assert.Contains(t, eb.Fields, "phone")
	assert.Contains(t, eb.Fields, "instagram")

	assert.Equal(t, 1, decode[cartView](t, c.do(http.MethodGet, "/cart", nil)).Count, "cart kept after a failed checkout")
}

func TestCheckoutEmptyCartAndPromo(t *testing.T) {
	c := &client{t: t, h: newTestHandler(t, password)}
	assert.Equal(t, http.StatusUnprocessableEntity, c.do(http.MethodPost, "/checkout", checkoutBody("new_user")).Code)

	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/cart/items", bouquet30).Code)
	body := checkoutBody("new_user")
	body["promo_code"] = "NOPE"
	assert.Equal(t, http.StatusUnprocessableEntity, c.do(http.MethodPost, "/checkout", body).Code)
}

func TestCheckoutIdempotencyKey(t *testing.T) {
	c := &client{t: t, h: newTestHandler(t, password)}
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/cart/items", bouquet30).Code)

	rec := c.do(http.MethodPost, "/checkout", checkoutBody("new_user"), idempotency.Header, "k-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = c.do(http.MethodPost, "/checkout", checkoutBody("new_user"), idempotency.Header, "k-1")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCheckoutKeyReusableAfterValidationFailure(t *testing.T) {
	c := &client{t: t, h: newTestHandler(t, password)}
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/cart/items", bouquet30).Code)

	bad := checkoutBody("new_user")
	bad["customer"].(map[string]any)["phone"] = "123"
	rec := c.do(http.MethodPost, "/checkout", bad, idempotency.Header, "k-2")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = c.do(http.MethodPost, "/checkout", checkoutBody("new_user"), idempotency.Header, "k-2")
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestCartEditing(t *testing.T) {
	c := &client{t: t, h: newTestHandler(t, password)}
	c.do(http.MethodPost, "/cart/items", bouquet30)
	c.do(http.MethodPost, "/cart/items", map[string]any{"kind": "chocolate", "size": "small", "flavor": "dark"})

	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodDelete, "/cart/items/x", nil).Code)
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodDelete, "/cart/items/5", nil).Code)

	rec := c.do(http.MethodDelete, "/cart/items/0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[cartView](t, rec)
	require.Equal(t, 1, view.Count)
	assert.Equal(t, "15", view.Total.String())

	rec = c.do(http.MethodDelete, "/cart", nil)
	assert.Equal(t, 0, decode[cartView](t, rec).Count)

	rec = c.do(http.MethodPost, "/cart/items", map[string]any{"kind": "bouquet", "stems": 31, "color": "red"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSavedCartLoadsInAnotherSession(t *testing.T) {
	h := newTestHandler(t, password)
	a := &client{t: t, h: h}
	b := &client{t: t, h: h}

	assert.Equal(t, http.StatusUnprocessableEntity, a.do(http.MethodPost, "/cart/save", nil).Code)

	a.do(http.MethodPost, "/cart/items", bouquet30)
	rec := a.do(http.MethodPost, "/cart/save", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	code := decode[map[string]string](t, rec)["code"]
	require.Len(t, code, 12)

	rec = b.do(http.MethodPost, "/cart/load/"+strings.ToLower(code), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[cartView](t, rec)
	require.Equal(t, 1, view.Count)
	assert.Equal(t, "Bouquet 30 roses", view.Items[0].Title)

	assert.Equal(t, http.StatusNotFound, b.do(http.MethodPost, "/cart/load/000000000000", nil).Code)
}

func TestPrice(t *testing.T) {
	c := &client{t: t, h: newTestHandler(t, password)}
	rec := c.do(http.MethodPost, "/price", map[string]any{"kind": "lash", "style": "volume_russe"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	pv := decode[priceView](t, rec)
	assert.Equal(t, "60", pv.Price.String())

	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, "/price", map[string]any{"kind": "bouquet", "petals": 3}).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, c.do(http.MethodPost, "/price", map[string]any{"kind": "cake"}).Code)
}

func TestAdminLoyaltyAdjustments(t *testing.T) {
	c := &client{t: t, h: newTestHandler(t, password)}
	rec := c.do(http.MethodPost, "/admin/loyalty/sam/credit", map[string]any{"points": 150, "reason": "geste commercial"}, AdminPasswordHeader, password)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	v := decode[map[string]any](t, rec)
	assert.EqualValues(t, 150, v["points"])
	assert.Equal(t, "Silver", v["tier"].(map[string]any)["name"])

	rec = c.do(http.MethodPost, "/admin/loyalty/sam/debit", map[string]any{"points": 500}, AdminPasswordHeader, password)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decode[map[string]any](t, rec)["points"])

	rec = c.do(http.MethodPost, "/admin/loyalty/sam/credit", map[string]any{"points": 0}, AdminPasswordHeader, password)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	rec = c.do(http.MethodPost, "/admin/loyalty/bad..h/credit", map[string]any{"points": 1}, AdminPasswordHeader, password)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAdminCancel(t *testing.T) {
	h := newTestHandler(t, password)
	c := &client{t: t, h: h}
	c.do(http.MethodPost, "/cart/items", bouquet30)
	sub := decode[application.Submission](t, c.do(http.MethodPost, "/checkout", checkoutBody("new_user")))

	admin := &client{t: t, h: h}
	path := "/admin/quotes/" + sub.Quote.ID + "/cancel"
	assert.Equal(t, http.StatusUnprocessableEntity, admin.do(http.MethodPost, path, map[string]any{"reason": " "}, AdminPasswordHeader, password).Code)

	rec := admin.do(http.MethodPost, path, map[string]any{"reason": "pas de virement"}, AdminPasswordHeader, password)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.StatusCancelled, decode[domain.Quote](t, rec).Status)

	assert.Equal(t, http.StatusNotFound, admin.do(http.MethodGet, "/admin/quotes/Q-MISSING", nil, AdminPasswordHeader, password).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, admin.do(http.MethodGet, "/admin/quotes?status=shipped", nil, AdminPasswordHeader, password).Code)
}
