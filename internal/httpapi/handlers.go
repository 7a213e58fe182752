package httpapi

import (
	"bytes"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openlets/openlets/internal/export"
	"github.com/openlets/openlets/internal/ledger"
	"github.com/openlets/openlets/internal/model"
)

type createPersonRequest struct {
	Name              string `json:"name"`
	DefaultCurrencyID *int64 `json:"default_currency_id"`
}

func (h *handler) createPerson(w http.ResponseWriter, r *http.Request) {
	var req createPersonRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.svc.CreatePerson(r.Context(), req.Name, req.DefaultCurrencyID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *handler) getMe(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Person(r.Context(), actorFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type updatePersonRequest struct {
	Name              *string `json:"name"`
	DefaultCurrencyID *int64  `json:"default_currency_id"`
}

func (h *handler) updateMe(w http.ResponseWriter, r *http.Request) {
	var req updatePersonRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.svc.UpdatePerson(r.Context(), actorFrom(r.Context()), ledger.UpdatePersonParams{
		Name:              req.Name,
		DefaultCurrencyID: req.DefaultCurrencyID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) listCurrencies(w http.ResponseWriter, r *http.Request) {
	cs, err := h.svc.Currencies(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(cs))
}

type createCurrencyRequest struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	DecimalPlaces int32  `json:"decimal_places"`
	Default       bool   `json:"default"`
}

func (h *handler) createCurrency(w http.ResponseWriter, r *http.Request) {
	var req createCurrencyRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.svc.CreateCurrency(r.Context(), ledger.CreateCurrencyParams(req))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *handler) listBalances(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	params := ledger.BalancesParams{
		IncludeBalanced: q.bool("include_balanced"),
		Credited:        q.optBool("credited"),
	}
	if q.err != nil {
		h.fail(w, r, q.err)
		return
	}
	bs, err := h.svc.Balances(r.Context(), actorFrom(r.Context()), params)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(bs))
}

func (h *handler) resolveBalance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.Resolve(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type proposeRequest struct {
	TargetID        int64      `json:"target_id"`
	CurrencyID      int64      `json:"currency_id"`
	Value           int64      `json:"value"`
	Amount          string     `json:"amount"`
	FromReceiver    bool       `json:"from_receiver"`
	TransactionTime *time.Time `json:"transaction_time"`
	Notes           string     `json:"notes"`
}

func (h *handler) propose(w http.ResponseWriter, r *http.Request) {
	var req proposeRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	params := ledger.ProposeParams{
		TargetID:     req.TargetID,
		CurrencyID:   req.CurrencyID,
		Value:        req.Value,
		Amount:       req.Amount,
		FromReceiver: req.FromReceiver,
		Notes:        req.Notes,
	}
	if req.TransactionTime != nil {
		params.TransactionTime = *req.TransactionTime
	}
	rec, err := h.svc.Propose(r.Context(), actorFrom(r.Context()), params)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *handler) pending(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.PendingForUser(r.Context(), actorFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

func (h *handler) recent(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	params := ledger.RecentParams{
		Days:        q.int("days"),
		Limit:       q.int("limit"),
		PendingOnly: q.bool("pending_only"),
	}
	if q.err != nil {
		h.fail(w, r, q.err)
		return
	}
	recs, err := h.svc.RecentForUser(r.Context(), actorFrom(r.Context()), params)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(recs))
}

type confirmRequest struct {
	MatchID int64 `json:"match_id"`
}

func (h *handler) confirm(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req confirmRequest
	if err := decodeOptionalBody(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	actor := actorFrom(r.Context())
	var c *ledger.Confirmation
	if req.MatchID != 0 {
		c, err = h.svc.ConfirmWithMatch(r.Context(), actor, id, req.MatchID)
	} else {
		c, err = h.svc.Confirm(r.Context(), actor, id)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) reject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rec, err := h.svc.Reject(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type counterRequest struct {
	Value           int64      `json:"value"`
	Amount          string     `json:"amount"`
	TransactionTime *time.Time `json:"transaction_time"`
	Notes           string     `json:"notes"`
}

func (h *handler) counter(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req counterRequest
	if err := decodeOptionalBody(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	params := ledger.CounterParams{Value: req.Value, Amount: req.Amount, Notes: req.Notes}
	if req.TransactionTime != nil {
		params.TransactionTime = *req.TransactionTime
	}
	rec, err := h.svc.Counter(r.Context(), actorFrom(r.Context()), id, params)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *handler) transfers(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	f := ledger.HistoryFilter{
		TransferType:    model.TransferKind(q.str("transfer_type")),
		PersonID:        q.int64("person"),
		TransactionType: model.TransactionType(q.str("transaction_type")),
		CurrencyID:      q.int64("currency"),
		Status:          model.RecordStatus(q.str("status")),
		TransactionDays: q.int("transaction_time"),
		ConfirmedDays:   q.int("confirmed_time"),
	}
	if q.err != nil {
		h.fail(w, r, q.err)
		return
	}
	ts, err := h.svc.TransferHistory(r.Context(), actorFrom(r.Context()), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(ts))
}

func (h *handler) notifications(w http.ResponseWriter, r *http.Request) {
	q := newQuery(r)
	days := q.int("days")
	if q.err != nil {
		h.fail(w, r, q.err)
		return
	}
	ns, err := h.svc.Notifications(r.Context(), actorFrom(r.Context()), days)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(ns))
}

func (h *handler) listExchangeRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.svc.ExchangeRates(r.Context(), actorFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(rates))
}

type exchangeRateRequest struct {
	SourceCurrencyID int64 `json:"source_currency_id"`
	DestCurrencyID   int64 `json:"dest_currency_id"`
	SourceRate       int64 `json:"source_rate"`
	DestRate         int64 `json:"dest_rate"`
}

func (h *handler) createExchangeRate(w http.ResponseWriter, r *http.Request) {
	var req exchangeRateRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	rate, err := h.svc.CreateExchangeRate(r.Context(), actorFrom(r.Context()), ledger.ExchangeRateParams(req))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rate)
}

func (h *handler) deleteExchangeRate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.DeleteExchangeRate(r.Context(), actorFrom(r.Context()), id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (h *handler) listNews(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.NewsPage(r.Context(), actorFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page.Posts = nonNil(page.Posts)
	writeJSON(w, http.StatusOK, page)
}

type newsRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (h *handler) postNews(w http.ResponseWriter, r *http.Request) {
	var req newsRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	post, err := h.svc.PostNews(r.Context(), actorFrom(r.Context()), req.Title, req.Body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (h *handler) getContent(w http.ResponseWriter, r *http.Request) {
	siteID, ok := h.siteFrom(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid "+HeaderSiteID+" header")
		return
	}
	c, err := h.svc.Content(r.Context(), siteID, chi.URLParam(r, "name"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type contentRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (h *handler) putContent(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.svc.SetContent(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "name"), req.Title, req.Body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) export(w http.ResponseWriter, r *http.Request) {
	format := newQuery(r).str("format")
	if format != "" && format != "json" && format != "csv" {
		h.fail(w, r, ledger.ValidationError{Field: "format", Message: "must be json or csv"})
		return
	}
	doc, err := export.Build(r.Context(), h.svc, actorFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if format != "csv" {
		writeJSON(w, http.StatusOK, doc)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, doc); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="transfers.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
