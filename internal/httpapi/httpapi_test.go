package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlets/openlets/internal/ledger"
	"github.com/openlets/openlets/internal/model"
	"github.com/openlets/openlets/internal/store"
	"github.com/openlets/openlets/internal/store/memstore"
)

type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type api struct {
	t          *testing.T
	svc        *ledger.Service
	router     http.Handler
	usd        *model.Currency
	alice, bob *model.Person
}

func newAPI(t *testing.T) *api {
	t.Helper()
	ctx := context.Background()
	svc := ledger.NewService(memstore.New(), nil, nil, ledger.Options{})

	usd, err := svc.CreateCurrency(ctx, ledger.CreateCurrencyParams{Name: "USD", DecimalPlaces: 2, Default: true})
	require.NoError(t, err)
	alice, err := svc.CreatePerson(ctx, "Alice", nil)
	require.NoError(t, err)
	bob, err := svc.CreatePerson(ctx, "Bob", nil)
	require.NoError(t, err)

	return &api{
		t:   t,
		svc: svc,
		router: NewRouter(svc, Options{
			DefaultSiteID:  1,
			AllowedOrigins: []string{"*"},
		}, nil),
		usd:   usd,
		alice: alice,
		bob:   bob,
	}
}

// do sends a request as person (0 sends no identity) and decodes the
// envelope.
func (a *api) do(method, path string, person int64, body any) (*httptest.ResponseRecorder, apiResponse) {
	a.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(a.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if person != 0 {
		req.Header.Set(HeaderPersonID, strconv.FormatInt(person, 10))
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var resp apiResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func decodeData[T any](t *testing.T, resp apiResponse) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(resp.Data, &v))
	return v
}

func TestHealthz(t *testing.T) {
	a := newAPI(t)
	rec, _ := a.do(http.MethodGet, "/healthz", 0, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestIdentityRequired(t *testing.T) {
	a := newAPI(t)

	rec, resp := a.do(http.MethodGet, "/api/me", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Message, HeaderPersonID)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set(HeaderPersonID, "abc")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set(HeaderPersonID, "1")
	req.Header.Set(HeaderSiteID, "-4")
	w = httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPublicRoutes(t *testing.T) {
	a := newAPI(t)

	rec, resp := a.do(http.MethodPost, "/api/persons", 0, map[string]any{"name": "Carol"})
	require.Equal(t, http.StatusCreated, rec.Code)
	carol := decodeData[model.Person](t, resp)
	assert.Equal(t, "Carol", carol.Name)
	assert.NotZero(t, carol.ID)

	rec, resp = a.do(http.MethodGet, "/api/currencies", 0, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cs := decodeData[[]model.Currency](t, resp)
	require.Len(t, cs, 1)
	assert.Equal(t, "USD", cs[0].Name)

	rec, _ = a.do(http.MethodPost, "/api/currencies", 0, map[string]any{"name": "EUR"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMe(t *testing.T) {
	a := newAPI(t)

	rec, resp := a.do(http.MethodGet, "/api/me", a.alice.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Alice", decodeData[model.Person](t, resp).Name)

	rec, resp = a.do(http.MethodPatch, "/api/me", a.alice.ID, map[string]any{
		"name":                "Alicia",
		"default_currency_id": a.usd.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	p := decodeData[model.Person](t, resp)
	assert.Equal(t, "Alicia", p.Name)
	require.NotNil(t, p.DefaultCurrencyID)
	assert.Equal(t, a.usd.ID, *p.DefaultCurrencyID)

	rec, _ = a.do(http.MethodGet, "/api/me", 999, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransactionLifecycle(t *testing.T) {
	a := newAPI(t)

	rec, resp := a.do(http.MethodPost, "/api/transactions", a.alice.ID, map[string]any{
		"target_id":   a.bob.ID,
		"currency_id": a.usd.ID,
		"amount":      "5.00",
		"notes":       "lunch",
	})
	require.Equal(t, http.StatusCreated, rec.Code, resp.Message)
	proposed := decodeData[model.TransactionRecord](t, resp)
	assert.Equal(t, int64(500), proposed.Value)
	assert.Nil(t, proposed.TransactionID)

	rec, resp = a.do(http.MethodGet, "/api/transactions/pending", a.bob.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decodeData[[]ledger.PendingItem](t, resp)
	require.Len(t, pending, 1)
	assert.Equal(t, proposed.ID, pending[0].Record.ID)

	rec, resp = a.do(http.MethodGet, "/api/transactions/recent", a.alice.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeData[[]model.TransactionRecord](t, resp), 1)

	path := fmt.Sprintf("/api/transactions/%d/confirm", proposed.ID)
	rec, _ = a.do(http.MethodPost, path, a.alice.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "only the target can confirm")

	rec, resp = a.do(http.MethodPost, path, a.bob.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, resp.Message)
	c := decodeData[ledger.Confirmation](t, resp)
	assert.Equal(t, int64(500), c.Balance.Value)
	assert.Equal(t, a.bob.ID, c.Mirror.CreatorID)

	rec, _ = a.do(http.MethodPost, path, a.bob.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, resp = a.do(http.MethodGet, "/api/balances?credited=false", a.alice.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	bs := decodeData[[]model.Balance](t, resp)
	require.Len(t, bs, 1)
	assert.Equal(t, c.Balance.ID, bs[0].ID)

	rec, resp = a.do(http.MethodGet, "/api/transfers?status=confirmed", a.alice.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeData[[]model.Transfer](t, resp), 1)

	rec, resp = a.do(http.MethodGet, "/api/notifications", a.bob.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decodeData[[]ledger.Notification](t, resp))

	rec, resp = a.do(http.MethodPost, fmt.Sprintf("/api/balances/%d/resolve", c.Balance.ID), a.bob.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, resp.Message)
	res := decodeData[model.Resolution](t, resp)
	assert.Equal(t, int64(500), res.Value)

	rec, resp = a.do(http.MethodGet, "/api/balances", a.alice.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(resp.Data))
}

func TestRejectAndCounter(t *testing.T) {
	a := newAPI(t)
	ctx := context.Background()
	alice := ledger.Actor{PersonID: a.alice.ID, SiteID: 1}

	first, err := a.svc.Propose(ctx, alice, ledger.ProposeParams{TargetID: a.bob.ID, CurrencyID: a.usd.ID, Value: 100})
	require.NoError(t, err)
	rec, resp := a.do(http.MethodPost, fmt.Sprintf("/api/transactions/%d/reject", first.ID), a.bob.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeData[model.TransactionRecord](t, resp).Rejected)

	rec, _ = a.do(http.MethodPost, fmt.Sprintf("/api/transactions/%d/confirm", first.ID), a.bob.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	second, err := a.svc.Propose(ctx, alice, ledger.ProposeParams{TargetID: a.bob.ID, CurrencyID: a.usd.ID, Value: 100})
	require.NoError(t, err)
	rec, resp = a.do(http.MethodPost, fmt.Sprintf("/api/transactions/%d/counter", second.ID), a.bob.ID, map[string]any{"value": 80})
	require.Equal(t, http.StatusCreated, rec.Code, resp.Message)
	counter := decodeData[model.TransactionRecord](t, resp)
	assert.Equal(t, a.alice.ID, counter.TargetID)
	assert.Equal(t, int64(80), counter.Value)
}

func TestConfirmWithMatch(t *testing.T) {
	a := newAPI(t)
	ctx := context.Background()
	alice := ledger.Actor{PersonID: a.alice.ID, SiteID: 1}
	bob := ledger.Actor{PersonID: a.bob.ID, SiteID: 1}

	inbound, err := a.svc.Propose(ctx, alice, ledger.ProposeParams{TargetID: a.bob.ID, CurrencyID: a.usd.ID, Value: 250})
	require.NoError(t, err)
	own, err := a.svc.Propose(ctx, bob, ledger.ProposeParams{TargetID: a.alice.ID, CurrencyID: a.usd.ID, Value: 250, FromReceiver: true})
	require.NoError(t, err)

	rec, resp := a.do(http.MethodPost, fmt.Sprintf("/api/transactions/%d/confirm", inbound.ID), a.bob.ID,
		map[string]any{"match_id": own.ID})
	require.Equal(t, http.StatusOK, rec.Code, resp.Message)
	c := decodeData[ledger.Confirmation](t, resp)
	assert.Equal(t, own.ID, c.Mirror.ID)
}

func TestErrorMapping(t *testing.T) {
	a := newAPI(t)

	tests := []struct {
		name    string
		method  string
		path    string
		body    any
		status  int
		message string
	}{
		{
			name:    "validation",
			method:  http.MethodPost,
			path:    "/api/transactions",
			body:    map[string]any{"target_id": a.alice.ID, "currency_id": a.usd.ID, "value": 1},
			status:  http.StatusBadRequest,
			message: "invalid target",
		},
		{
			name:    "unknown field",
			method:  http.MethodPost,
			path:    "/api/transactions",
			body:    `{"target":1}`,
			status:  http.StatusBadRequest,
			message: "invalid body",
		},
		{
			name:    "malformed json",
			method:  http.MethodPost,
			path:    "/api/news",
			body:    `{`,
			status:  http.StatusBadRequest,
			message: "invalid body",
		},
		{
			name:    "bad path id",
			method:  http.MethodPost,
			path:    "/api/transactions/x/reject",
			status:  http.StatusBadRequest,
			message: "invalid id",
		},
		{
			name:    "bad query",
			method:  http.MethodGet,
			path:    "/api/transactions/recent?days=ten",
			status:  http.StatusBadRequest,
			message: "invalid days",
		},
		{
			name:    "bad filter",
			method:  http.MethodGet,
			path:    "/api/transfers?status=lost",
			status:  http.StatusBadRequest,
			message: "invalid status",
		},
		{
			name:   "not found",
			method: http.MethodPost,
			path:   "/api/transactions/999/reject",
			status: http.StatusNotFound,
		},
		{
			name:    "bad export format",
			method:  http.MethodGet,
			path:    "/api/export?format=xml",
			status:  http.StatusBadRequest,
			message: "invalid format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := a.do(tt.method, tt.path, a.alice.ID, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "error", resp.Status)
			assert.Contains(t, resp.Message, tt.message)
		})
	}
}

func TestExchangeRates(t *testing.T) {
	a := newAPI(t)
	ctx := context.Background()
	eur, err := a.svc.CreateCurrency(ctx, ledger.CreateCurrencyParams{Name: "EUR", DecimalPlaces: 2})
	require.NoError(t, err)

	body := map[string]any{
		"source_currency_id": a.usd.ID,
		"dest_currency_id":   eur.ID,
		"source_rate":        100,
		"dest_rate":          92,
	}
	rec, resp := a.do(http.MethodPost, "/api/exchange-rates", a.alice.ID, body)
	require.Equal(t, http.StatusCreated, rec.Code, resp.Message)
	rate := decodeData[model.ExchangeRate](t, resp)

	rec, _ = a.do(http.MethodPost, "/api/exchange-rates", a.alice.ID, body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, resp = a.do(http.MethodGet, "/api/exchange-rates", a.alice.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeData[[]model.ExchangeRate](t, resp), 1)

	path := fmt.Sprintf("/api/exchange-rates/%d", rate.ID)
	rec, _ = a.do(http.MethodDelete, path, a.bob.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = a.do(http.MethodDelete, path, a.alice.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNews(t *testing.T) {
	a := newAPI(t)

	rec, resp := a.do(http.MethodPost, "/api/news", a.alice.ID, map[string]any{"title": "Market day", "body": "Saturday"})
	require.Equal(t, http.StatusCreated, rec.Code, resp.Message)

	rec, resp = a.do(http.MethodGet, "/api/news", a.bob.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodeData[ledger.NewsPage](t, resp)
	assert.Nil(t, page.Header)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, "Market day", page.Posts[0].Title)

	rec, resp = a.do(http.MethodPut, "/api/content/news_header", a.alice.ID, map[string]any{"title": "Latest"})
	require.Equal(t, http.StatusOK, rec.Code, resp.Message)

	_, resp = a.do(http.MethodGet, "/api/news", a.bob.ID, nil)
	page = decodeData[ledger.NewsPage](t, resp)
	require.NotNil(t, page.Header)
	assert.Equal(t, "Latest", page.Header.Title)
}

func TestContent(t *testing.T) {
	a := newAPI(t)

	rec, _ := a.do(http.MethodGet, "/api/content/about", 0, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = a.do(http.MethodPut, "/api/content/about", 0, map[string]any{"title": "About"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, resp := a.do(http.MethodPut, "/api/content/about", a.alice.ID, map[string]any{"title": "About", "body": "A local exchange."})
	require.Equal(t, http.StatusOK, rec.Code, resp.Message)

	rec, resp = a.do(http.MethodGet, "/api/content/about", 0, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	c := decodeData[model.Content](t, resp)
	assert.Equal(t, "About", c.Title)
	assert.Equal(t, "A local exchange.", c.Body)

	rec, resp = a.do(http.MethodPut, "/api/content/About%20Us", a.alice.ID, map[string]any{"title": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp.Message, "invalid name")
}

func TestExport(t *testing.T) {
	a := newAPI(t)
	ctx := context.Background()
	rec0, err := a.svc.Propose(ctx, ledger.Actor{PersonID: a.alice.ID, SiteID: 1},
		ledger.ProposeParams{TargetID: a.bob.ID, CurrencyID: a.usd.ID, Value: 1250})
	require.NoError(t, err)
	_, err = a.svc.Confirm(ctx, ledger.Actor{PersonID: a.bob.ID, SiteID: 1}, rec0.ID)
	require.NoError(t, err)

	rec, resp := a.do(http.MethodGet, "/api/export", a.alice.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var doc struct {
		Balances  []json.RawMessage `json:"balances"`
		Transfers []json.RawMessage `json:"transfers"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &doc))
	assert.Len(t, doc.Balances, 1)
	assert.Len(t, doc.Transfers, 1)

	rec, _ = a.do(http.MethodGet, "/api/export?format=csv", a.alice.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "kind,id,time,with,currency,value,transaction_type,status,confirmed_at,notes", lines[0])
	assert.Contains(t, lines[1], "12.50")
}

func TestCORS(t *testing.T) {
	a := newAPI(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/me", nil)
	req.Header.Set("Origin", "https://lets.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ledger.ValidationError{Field: "value", Message: "must be positive"}, http.StatusBadRequest},
		{fmt.Errorf("confirming: %w", ledger.ValidationError{Field: "match"}), http.StatusBadRequest},
		{fmt.Errorf("loading record 3: %w", store.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("creating rate: %w", store.ErrConflict), http.StatusConflict},
		{context.DeadlineExceeded, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
