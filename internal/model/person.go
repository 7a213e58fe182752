package model

import "time"

// Person is the ledger identity of one user account.
type Person struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	DefaultCurrencyID *int64 `json:"default_currency_id,omitempty"`
}

// Currency is a unit balances and transfers are kept in. Amounts in this
// currency are stored as integers scaled by DecimalPlaces.
type Currency struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	DecimalPlaces int32     `json:"decimal_places"`
	Default       bool      `json:"default"`
	CreatedAt     time.Time `json:"created_at"`
}

// ExchangeRate is a person's own conversion rate between two currencies.
type ExchangeRate struct {
	ID               int64     `json:"id"`
	PersonID         int64     `json:"person_id"`
	SourceCurrencyID int64     `json:"source_currency_id"`
	DestCurrencyID   int64     `json:"dest_currency_id"`
	SourceRate       int64     `json:"source_rate"`
	DestRate         int64     `json:"dest_rate"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewsPost is a site announcement shown in notifications.
type NewsPost struct {
	ID        int64     `json:"id"`
	SiteID    int64     `json:"site_id"`
	Author    string    `json:"author"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Content is a named page of site text, such as the home page intro or the
// news header. Name is unique per site.
type Content struct {
	ID        int64     `json:"id"`
	SiteID    int64     `json:"site_id"`
	Name      string    `json:"name"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	UpdatedAt time.Time `json:"updated_at"`
}
