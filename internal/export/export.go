// Package export renders a person's ledger data as a JSON document or a
// CSV transfer history.
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/openlets/openlets/internal/ledger"
	"github.com/openlets/openlets/internal/model"
	"github.com/openlets/openlets/internal/money"
)

// Source is the ledger data an export reads.
type Source interface {
	Balances(ctx context.Context, actor ledger.Actor, params ledger.BalancesParams) ([]model.Balance, error)
	TransferHistory(ctx context.Context, actor ledger.Actor, f ledger.HistoryFilter) ([]model.Transfer, error)
	ExchangeRates(ctx context.Context, actor ledger.Actor) ([]model.ExchangeRate, error)
	Currencies(ctx context.Context) ([]model.Currency, error)
	PersonByID(ctx context.Context, id int64) (*model.Person, error)
}

// Document is everything a person can export.
type Document struct {
	Balances      []Balance      `json:"balances"`
	Transfers     []Transfer     `json:"transfers"`
	ExchangeRates []ExchangeRate `json:"exchange_rates"`
}

// Balance is one open balance seen from the exporting person.
type Balance struct {
	ID        int64     `json:"id"`
	With      string    `json:"with"`
	Currency  string    `json:"currency"`
	Value     string    `json:"value"`
	Credited  bool      `json:"credited"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transfer is one entry of the transfer history. Value is signed from
// the exporting person's side for resolutions.
type Transfer struct {
	Kind            model.TransferKind    `json:"kind"`
	ID              int64                 `json:"id"`
	Time            time.Time             `json:"time"`
	With            string                `json:"with"`
	Currency        string                `json:"currency"`
	Value           string                `json:"value"`
	TransactionType model.TransactionType `json:"transaction_type,omitempty"`
	Status          model.RecordStatus    `json:"status"`
	ConfirmedAt     *time.Time            `json:"confirmed_at,omitempty"`
	Notes           string                `json:"notes,omitempty"`
}

// ExchangeRate is one personal rate.
type ExchangeRate struct {
	ID             int64     `json:"id"`
	SourceCurrency string    `json:"source_currency"`
	DestCurrency   string    `json:"dest_currency"`
	SourceRate     int64     `json:"source_rate"`
	DestRate       int64     `json:"dest_rate"`
	CreatedAt      time.Time `json:"created_at"`
}

// Build collects the actor's open balances, full transfer history and
// exchange rates.
func Build(ctx context.Context, src Source, actor ledger.Actor) (*Document, error) {
	currencies, err := src.Currencies(ctx)
	if err != nil {
		return nil, err
	}
	r := &resolver{src: src, names: make(map[int64]string), currencies: make(map[int64]model.Currency)}
	for _, c := range currencies {
		r.currencies[c.ID] = c
	}

	doc := &Document{
		Balances:      []Balance{},
		Transfers:     []Transfer{},
		ExchangeRates: []ExchangeRate{},
	}

	balances, err := src.Balances(ctx, actor, ledger.BalancesParams{})
	if err != nil {
		return nil, err
	}
	for _, b := range balances {
		row, err := r.balance(ctx, actor, b)
		if err != nil {
			return nil, err
		}
		doc.Balances = append(doc.Balances, row)
	}

	transfers, err := src.TransferHistory(ctx, actor, ledger.HistoryFilter{})
	if err != nil {
		return nil, err
	}
	for _, t := range transfers {
		row, err := r.transfer(ctx, t)
		if err != nil {
			return nil, err
		}
		doc.Transfers = append(doc.Transfers, row)
	}

	rates, err := src.ExchangeRates(ctx, actor)
	if err != nil {
		return nil, err
	}
	for _, rate := range rates {
		doc.ExchangeRates = append(doc.ExchangeRates, ExchangeRate{
			ID:             rate.ID,
			SourceCurrency: r.currencies[rate.SourceCurrencyID].Name,
			DestCurrency:   r.currencies[rate.DestCurrencyID].Name,
			SourceRate:     rate.SourceRate,
			DestRate:       rate.DestRate,
			CreatedAt:      rate.CreatedAt,
		})
	}
	return doc, nil
}

type resolver struct {
	src        Source
	names      map[int64]string
	currencies map[int64]model.Currency
}

func (r *resolver) name(ctx context.Context, id int64) (string, error) {
	if n, ok := r.names[id]; ok {
		return n, nil
	}
	p, err := r.src.PersonByID(ctx, id)
	if err != nil {
		return "", err
	}
	r.names[id] = p.Name
	return p.Name, nil
}

func (r *resolver) currency(id int64) (model.Currency, error) {
	c, ok := r.currencies[id]
	if !ok {
		return model.Currency{}, fmt.Errorf("unknown currency %d", id)
	}
	return c, nil
}

func (r *resolver) balance(ctx context.Context, actor ledger.Actor, b model.Balance) (Balance, error) {
	cur, err := r.currency(b.CurrencyID)
	if err != nil {
		return Balance{}, err
	}
	row := Balance{
		ID:        b.ID,
		Currency:  cur.Name,
		Value:     money.Format(b.Value, cur.DecimalPlaces),
		UpdatedAt: b.UpdatedAt,
	}
	if pb, ok := b.Party(actor.PersonID); ok {
		row.Credited = pb.Credited
	}
	if other, ok := b.Other(actor.PersonID); ok {
		if row.With, err = r.name(ctx, other); err != nil {
			return Balance{}, err
		}
	}
	return row, nil
}

func (r *resolver) transfer(ctx context.Context, t model.Transfer) (Transfer, error) {
	row := Transfer{Kind: t.Kind, Time: t.Time}
	var other, currencyID, value int64

	switch t.Kind {
	case model.KindTransaction:
		rec := t.Record
		row.ID = rec.ID
		row.TransactionType = rec.TransactionType()
		row.Status = rec.Status()
		row.ConfirmedAt = rec.ConfirmedAt
		row.Notes = rec.Notes
		other, currencyID, value = rec.TargetID, rec.CurrencyID, rec.Value
	case model.KindResolution:
		pr := t.Resolution
		row.ID = pr.ResolutionID
		row.Status = model.StatusConfirmed
		confirmed := t.Time
		row.ConfirmedAt = &confirmed
		other, _ = pr.OtherPersonID()
		currencyID, value = pr.Resolution.CurrencyID, pr.RelativeValue()
	default:
		return Transfer{}, fmt.Errorf("unknown transfer kind %q", t.Kind)
	}

	cur, err := r.currency(currencyID)
	if err != nil {
		return Transfer{}, err
	}
	row.Currency = cur.Name
	row.Value = money.Format(value, cur.DecimalPlaces)
	if other != 0 {
		if row.With, err = r.name(ctx, other); err != nil {
			return Transfer{}, err
		}
	}
	return row, nil
}
