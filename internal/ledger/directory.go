package ledger

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/openlets/openlets/internal/model"
	"github.com/openlets/openlets/internal/store"
)

const (
	maxNameLen = 100
	newsLimit  = 20
)

// Well-known content page names.
const (
	ContentIntro      = "intro"
	ContentNewsHeader = "news_header"
)

var contentName = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// CreatePerson registers a new person.
func (s *Service) CreatePerson(ctx context.Context, name string, defaultCurrencyID *int64) (*model.Person, error) {
	p := &model.Person{Name: strings.TrimSpace(name), DefaultCurrencyID: defaultCurrencyID}
	if err := s.checkPerson(ctx, p); err != nil {
		return nil, err
	}
	if err := s.store.CreatePerson(ctx, p); err != nil {
		return nil, fmt.Errorf("creating person: %w", err)
	}
	return p, nil
}

// Person returns the actor's person.
func (s *Service) Person(ctx context.Context, actor Actor) (*model.Person, error) {
	p, err := s.store.GetPerson(ctx, actor.PersonID)
	if err != nil {
		return nil, fmt.Errorf("loading person %d: %w", actor.PersonID, err)
	}
	return p, nil
}

// UpdatePersonParams holds the fields a person may change. Nil fields are
// left unchanged; a zero DefaultCurrencyID clears the default.
type UpdatePersonParams struct {
	Name              *string
	DefaultCurrencyID *int64
}

// UpdatePerson changes the actor's name or default currency.
func (s *Service) UpdatePerson(ctx context.Context, actor Actor, params UpdatePersonParams) (*model.Person, error) {
	p, err := s.Person(ctx, actor)
	if err != nil {
		return nil, err
	}
	if params.Name != nil {
		p.Name = strings.TrimSpace(*params.Name)
	}
	if params.DefaultCurrencyID != nil {
		p.DefaultCurrencyID = params.DefaultCurrencyID
		if *params.DefaultCurrencyID == 0 {
			p.DefaultCurrencyID = nil
		}
	}
	if err := s.checkPerson(ctx, p); err != nil {
		return nil, err
	}
	if err := s.store.UpdatePerson(ctx, p); err != nil {
		return nil, fmt.Errorf("updating person: %w", err)
	}
	return p, nil
}

func (s *Service) checkPerson(ctx context.Context, p *model.Person) error {
	if p.Name == "" {
		return invalid("name", "is required")
	}
	if len(p.Name) > maxNameLen {
		return invalid("name", "must be at most %d characters", maxNameLen)
	}
	if p.DefaultCurrencyID != nil {
		if err := s.checkCurrency(ctx, "default_currency", *p.DefaultCurrencyID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) checkCurrency(ctx context.Context, field string, id int64) error {
	if _, err := s.store.GetCurrency(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return invalid(field, "currency %d does not exist", id)
		}
		return fmt.Errorf("loading currency %d: %w", id, err)
	}
	return nil
}

// CreateCurrencyParams describes a new currency.
type CreateCurrencyParams struct {
	Name          string
	Description   string
	DecimalPlaces int32
	Default       bool
}

// CreateCurrency adds a currency. Marking it default clears the flag on
// every other currency.
func (s *Service) CreateCurrency(ctx context.Context, params CreateCurrencyParams) (*model.Currency, error) {
	c := &model.Currency{
		Name:          strings.TrimSpace(params.Name),
		Description:   params.Description,
		DecimalPlaces: params.DecimalPlaces,
		Default:       params.Default,
		CreatedAt:     s.now(),
	}
	if c.Name == "" {
		return nil, invalid("name", "is required")
	}
	if c.DecimalPlaces < 0 || c.DecimalPlaces > 8 {
		return nil, invalid("decimal_places", "must be between 0 and 8")
	}

	err := s.store.Atomic(ctx, func(q store.Queries) error {
		if c.Default {
			if err := q.ClearDefaultCurrency(ctx); err != nil {
				return err
			}
		}
		return q.CreateCurrency(ctx, c)
	})
	if err != nil {
		return nil, fmt.Errorf("creating currency: %w", err)
	}
	return c, nil
}

// Currencies lists every currency.
func (s *Service) Currencies(ctx context.Context) ([]model.Currency, error) {
	cs, err := s.store.ListCurrencies(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing currencies: %w", err)
	}
	return cs, nil
}

// DefaultCurrency returns the currency flagged default.
func (s *Service) DefaultCurrency(ctx context.Context) (*model.Currency, error) {
	cs, err := s.Currencies(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range cs {
		if c.Default {
			return &c, nil
		}
	}
	return nil, fmt.Errorf("default currency: %w", store.ErrNotFound)
}

// BalancesParams filters Balances.
type BalancesParams struct {
	IncludeBalanced bool
	// Credited keeps balances where the actor is owed (true) or owes (false).
	Credited *bool
}

// Balances lists the balances the actor is party to.
func (s *Service) Balances(ctx context.Context, actor Actor, params BalancesParams) ([]model.Balance, error) {
	bs, err := s.store.ListBalances(ctx, store.BalanceFilter{
		PersonID:        actor.PersonID,
		IncludeBalanced: params.IncludeBalanced,
		Credited:        params.Credited,
	})
	if err != nil {
		return nil, fmt.Errorf("listing balances: %w", err)
	}
	return bs, nil
}

// ExchangeRateParams describes a personal exchange rate.
type ExchangeRateParams struct {
	SourceCurrencyID int64
	DestCurrencyID   int64
	SourceRate       int64
	DestRate         int64
}

// CreateExchangeRate stores a rate for the actor. A second rate for the
// same currency pair fails with store.ErrConflict.
func (s *Service) CreateExchangeRate(ctx context.Context, actor Actor, params ExchangeRateParams) (*model.ExchangeRate, error) {
	if params.SourceCurrencyID == params.DestCurrencyID {
		return nil, invalid("dest_currency", "must differ from the source currency")
	}
	if params.SourceRate <= 0 || params.DestRate <= 0 {
		return nil, invalid("rate", "rates must be greater than zero")
	}
	if err := s.checkCurrency(ctx, "source_currency", params.SourceCurrencyID); err != nil {
		return nil, err
	}
	if err := s.checkCurrency(ctx, "dest_currency", params.DestCurrencyID); err != nil {
		return nil, err
	}

	r := &model.ExchangeRate{
		PersonID:         actor.PersonID,
		SourceCurrencyID: params.SourceCurrencyID,
		DestCurrencyID:   params.DestCurrencyID,
		SourceRate:       params.SourceRate,
		DestRate:         params.DestRate,
		CreatedAt:        s.now(),
	}
	if err := s.store.CreateExchangeRate(ctx, r); err != nil {
		return nil, fmt.Errorf("creating exchange rate: %w", err)
	}
	return r, nil
}

// ExchangeRates lists the actor's rates.
func (s *Service) ExchangeRates(ctx context.Context, actor Actor) ([]model.ExchangeRate, error) {
	rs, err := s.store.ListExchangeRates(ctx, actor.PersonID)
	if err != nil {
		return nil, fmt.Errorf("listing exchange rates: %w", err)
	}
	return rs, nil
}

// DeleteExchangeRate removes one of the actor's rates. Rates of other
// persons are reported as store.ErrNotFound.
func (s *Service) DeleteExchangeRate(ctx context.Context, actor Actor, id int64) error {
	if err := s.store.DeleteExchangeRate(ctx, id, actor.PersonID); err != nil {
		return fmt.Errorf("deleting exchange rate %d: %w", id, err)
	}
	return nil
}

// PostNews publishes a news post on the actor's site.
func (s *Service) PostNews(ctx context.Context, actor Actor, title, body string) (*model.NewsPost, error) {
	author, err := s.Person(ctx, actor)
	if err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, invalid("title", "is required")
	}
	p := &model.NewsPost{
		SiteID:    actor.SiteID,
		Author:    author.Name,
		Title:     title,
		Body:      body,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateNewsPost(ctx, p); err != nil {
		return nil, fmt.Errorf("creating news post: %w", err)
	}
	return p, nil
}

// News returns the latest posts on the actor's site.
func (s *Service) News(ctx context.Context, actor Actor) ([]model.NewsPost, error) {
	posts, err := s.store.ListNewsPosts(ctx, actor.SiteID, time.Time{}, newsLimit)
	if err != nil {
		return nil, fmt.Errorf("listing news: %w", err)
	}
	return posts, nil
}

// PersonByID returns any person, for display of counterparties.
func (s *Service) PersonByID(ctx context.Context, id int64) (*model.Person, error) {
	p, err := s.store.GetPerson(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading person %d: %w", id, err)
	}
	return p, nil
}

// NewsPage is the news feed of a site under its header page.
type NewsPage struct {
	Header *model.Content   `json:"header"`
	Posts  []model.NewsPost `json:"posts"`
}

// NewsPage returns the latest posts on the actor's site with the site's
// news header. Header is nil when the site has none.
func (s *Service) NewsPage(ctx context.Context, actor Actor) (*NewsPage, error) {
	posts, err := s.News(ctx, actor)
	if err != nil {
		return nil, err
	}
	header, err := s.Content(ctx, actor.SiteID, ContentNewsHeader)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return &NewsPage{Header: header, Posts: posts}, nil
}

// Content returns the named page of a site.
func (s *Service) Content(ctx context.Context, siteID int64, name string) (*model.Content, error) {
	c, err := s.store.GetContent(ctx, siteID, name)
	if err != nil {
		return nil, fmt.Errorf("loading content %q: %w", name, err)
	}
	return c, nil
}

// SetContent creates or replaces the named page on the actor's site.
func (s *Service) SetContent(ctx context.Context, actor Actor, name, title, body string) (*model.Content, error) {
	if _, err := s.Person(ctx, actor); err != nil {
		return nil, err
	}
	if !contentName.MatchString(name) {
		return nil, invalid("name", "must be 1-64 lowercase letters, digits, '_' or '-'")
	}
	c := &model.Content{
		SiteID:    actor.SiteID,
		Name:      name,
		Title:     strings.TrimSpace(title),
		Body:      body,
		UpdatedAt: s.now(),
	}
	if err := s.store.SaveContent(ctx, c); err != nil {
		return nil, fmt.Errorf("saving content %q: %w", name, err)
	}
	return c, nil
}
