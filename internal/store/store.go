// Package store defines the persistence boundary of the ledger. All reads
// and writes of ledger records go through Queries; multi-row writes that
// must commit together go through Store.Atomic.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/openlets/openlets/internal/model"
)

var (
	// ErrNotFound is returned when no row matches the lookup, including
	// conditional updates whose condition no longer holds.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write violates a uniqueness rule.
	ErrConflict = errors.New("conflict")
)

// RecordFilter selects transaction records. Zero fields do not filter.
// Results are ordered by transaction time, newest first.
type RecordFilter struct {
	CreatorID     int64
	TargetID      int64
	CurrencyID    int64
	TransactionID int64
	FromReceiver  *bool
	Rejected      *bool
	// Confirmed selects records with (true) or without (false) a transaction.
	Confirmed        *bool
	TransactionAfter time.Time
	ConfirmedAfter   time.Time
	CreatedAfter     time.Time
	Limit            int
}

// ResolutionFilter selects one person's resolution rows. Zero fields do
// not filter. Results are ordered by confirmation time, newest first.
type ResolutionFilter struct {
	PersonID       int64
	OtherPersonID  int64
	CurrencyID     int64
	Credited       *bool
	Confirmed      *bool
	ConfirmedAfter time.Time
}

// BalanceFilter selects the balances a person is party to.
type BalanceFilter struct {
	PersonID        int64
	IncludeBalanced bool
	// Credited filters on the person's own role.
	Credited *bool
}

// Queries is the set of ledger reads and writes. Implementations return
// ErrNotFound for missing rows.
type Queries interface {
	CreatePerson(ctx context.Context, p *model.Person) error
	GetPerson(ctx context.Context, id int64) (*model.Person, error)
	UpdatePerson(ctx context.Context, p *model.Person) error

	CreateCurrency(ctx context.Context, c *model.Currency) error
	GetCurrency(ctx context.Context, id int64) (*model.Currency, error)
	ListCurrencies(ctx context.Context) ([]model.Currency, error)
	ClearDefaultCurrency(ctx context.Context) error

	// FindBalance returns the balance of the unordered pair {a, b} in a
	// currency, locked for update when the store supports it.
	FindBalance(ctx context.Context, a, b, currencyID int64) (*model.Balance, error)
	// GetBalance returns a balance by id, locked for update when the store
	// supports it.
	GetBalance(ctx context.Context, id int64) (*model.Balance, error)
	// CreateBalance stores a balance and its person rows.
	CreateBalance(ctx context.Context, b *model.Balance) error
	// SaveBalance updates the value and the Credited flag of every person row.
	SaveBalance(ctx context.Context, b *model.Balance) error
	ListBalances(ctx context.Context, f BalanceFilter) ([]model.Balance, error)

	CreateTransaction(ctx context.Context, t *model.Transaction) error
	CreateRecord(ctx context.Context, r *model.TransactionRecord) error
	GetRecord(ctx context.Context, id int64) (*model.TransactionRecord, error)
	// ClaimPendingRecord returns the pending record id targeted at
	// targetID, locked for update when the store supports it.
	ClaimPendingRecord(ctx context.Context, id, targetID int64) (*model.TransactionRecord, error)
	// LinkRecord attaches a pending record to a transaction.
	LinkRecord(ctx context.Context, id, transactionID int64) error
	// RejectRecord marks the pending record id targeted at targetID rejected.
	RejectRecord(ctx context.Context, id, targetID int64) (*model.TransactionRecord, error)
	ListRecords(ctx context.Context, f RecordFilter) ([]model.TransactionRecord, error)
	CountRecords(ctx context.Context, creatorID int64) (int, error)

	// CreateResolution stores a resolution and its person rows.
	CreateResolution(ctx context.Context, r *model.Resolution) error
	ListPersonResolutions(ctx context.Context, f ResolutionFilter) ([]model.PersonResolution, error)

	// CreateExchangeRate returns ErrConflict when the person already has a
	// rate for the currency pair.
	CreateExchangeRate(ctx context.Context, r *model.ExchangeRate) error
	ListExchangeRates(ctx context.Context, personID int64) ([]model.ExchangeRate, error)
	DeleteExchangeRate(ctx context.Context, id, personID int64) error

	CreateNewsPost(ctx context.Context, p *model.NewsPost) error
	ListNewsPosts(ctx context.Context, siteID int64, since time.Time, limit int) ([]model.NewsPost, error)

	GetContent(ctx context.Context, siteID int64, name string) (*model.Content, error)
	// SaveContent creates the named page of c.SiteID or replaces its title
	// and body, keeping the id.
	SaveContent(ctx context.Context, c *model.Content) error
}

// Store is a Queries handle that can also run a function as one atomic
// unit: every write made through the Queries passed to fn commits
// together when fn returns nil, and none does otherwise.
type Store interface {
	Queries
	Atomic(ctx context.Context, fn func(q Queries) error) error
}
