// Package memstore is an in-memory store.Store. Atomic units run against a
// private copy of the data that replaces the shared copy only on success,
// and are serialized with every other call.
package memstore

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/openlets/openlets/internal/model"
	"github.com/openlets/openlets/internal/store"
)

type state struct {
	lastID            int64
	persons           map[int64]model.Person
	currencies        map[int64]model.Currency
	balances          map[int64]model.Balance
	personBalances    map[int64]model.PersonBalance
	transactions      map[int64]model.Transaction
	records           map[int64]model.TransactionRecord
	resolutions       map[int64]model.Resolution
	personResolutions map[int64]model.PersonResolution
	rates             map[int64]model.ExchangeRate
	news              map[int64]model.NewsPost
	contents          map[int64]model.Content
}

func newState() *state {
	return &state{
		persons:           make(map[int64]model.Person),
		currencies:        make(map[int64]model.Currency),
		balances:          make(map[int64]model.Balance),
		personBalances:    make(map[int64]model.PersonBalance),
		transactions:      make(map[int64]model.Transaction),
		records:           make(map[int64]model.TransactionRecord),
		resolutions:       make(map[int64]model.Resolution),
		personResolutions: make(map[int64]model.PersonResolution),
		rates:             make(map[int64]model.ExchangeRate),
		news:              make(map[int64]model.NewsPost),
		contents:          make(map[int64]model.Content),
	}
}

// clone copies every table. Stored values are never mutated in place, so
// a shallow copy of each map is enough.
func (st *state) clone() *state {
	return &state{
		lastID:            st.lastID,
		persons:           maps.Clone(st.persons),
		currencies:        maps.Clone(st.currencies),
		balances:          maps.Clone(st.balances),
		personBalances:    maps.Clone(st.personBalances),
		transactions:      maps.Clone(st.transactions),
		records:           maps.Clone(st.records),
		resolutions:       maps.Clone(st.resolutions),
		personResolutions: maps.Clone(st.personResolutions),
		rates:             maps.Clone(st.rates),
		news:              maps.Clone(st.news),
		contents:          maps.Clone(st.contents),
	}
}

func (st *state) nextID() int64 {
	st.lastID++
	return st.lastID
}

type nopLocker struct{}

func (nopLocker) Lock()   {}
func (nopLocker) Unlock() {}

// Store is safe for concurrent use.
type Store struct {
	mu sync.Mutex
	*queries
}

var _ store.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	s := &Store{}
	s.queries = &queries{mu: &s.mu, st: newState()}
	return s
}

// Atomic runs fn against a private copy of the data and publishes the copy
// only when fn returns nil.
func (s *Store) Atomic(ctx context.Context, fn func(q store.Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &queries{mu: nopLocker{}, st: s.queries.st.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.queries.st = tx.st
	return nil
}

type queries struct {
	mu sync.Locker
	st *state
}

func now() time.Time {
	return time.Now().UTC()
}

func ptr[T any](v T) *T {
	return &v
}

// Persons.

func (q *queries) CreatePerson(_ context.Context, p *model.Person) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if p.DefaultCurrencyID != nil {
		if _, ok := q.st.currencies[*p.DefaultCurrencyID]; !ok {
			return fmt.Errorf("creating person: unknown currency %d", *p.DefaultCurrencyID)
		}
	}
	p.ID = q.st.nextID()
	q.st.persons[p.ID] = *p
	return nil
}

func (q *queries) GetPerson(_ context.Context, id int64) (*model.Person, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	p, ok := q.st.persons[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (q *queries) UpdatePerson(_ context.Context, p *model.Person) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.st.persons[p.ID]; !ok {
		return store.ErrNotFound
	}
	if p.DefaultCurrencyID != nil {
		if _, ok := q.st.currencies[*p.DefaultCurrencyID]; !ok {
			return fmt.Errorf("updating person: unknown currency %d", *p.DefaultCurrencyID)
		}
	}
	q.st.persons[p.ID] = *p
	return nil
}

// Currencies.

func (q *queries) CreateCurrency(_ context.Context, c *model.Currency) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	c.ID = q.st.nextID()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now()
	}
	q.st.currencies[c.ID] = *c
	return nil
}

func (q *queries) GetCurrency(_ context.Context, id int64) (*model.Currency, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	c, ok := q.st.currencies[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (q *queries) ListCurrencies(_ context.Context) ([]model.Currency, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := slices.Collect(maps.Values(q.st.currencies))
	slices.SortFunc(out, func(a, b model.Currency) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (q *queries) ClearDefaultCurrency(_ context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for id, c := range q.st.currencies {
		if c.Default {
			c.Default = false
			q.st.currencies[id] = c
		}
	}
	return nil
}

// Balances.

func (q *queries) balance(b model.Balance) model.Balance {
	var persons []model.PersonBalance
	for _, pb := range q.st.personBalances {
		if pb.BalanceID == b.ID {
			persons = append(persons, pb)
		}
	}
	slices.SortFunc(persons, func(x, y model.PersonBalance) int { return cmp.Compare(x.ID, y.ID) })
	b.Persons = persons
	return b
}

func (q *queries) findBalance(a, b, currencyID int64) (model.Balance, bool) {
	for _, bal := range q.st.balances {
		if bal.CurrencyID != currencyID {
			continue
		}
		full := q.balance(bal)
		_, hasA := full.Party(a)
		_, hasB := full.Party(b)
		if hasA && hasB {
			return full, true
		}
	}
	return model.Balance{}, false
}

func (q *queries) FindBalance(_ context.Context, a, b, currencyID int64) (*model.Balance, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	bal, ok := q.findBalance(a, b, currencyID)
	if !ok {
		return nil, store.ErrNotFound
	}
	return &bal, nil
}

func (q *queries) GetBalance(_ context.Context, id int64) (*model.Balance, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	bal, ok := q.st.balances[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	full := q.balance(bal)
	return &full, nil
}

func (q *queries) CreateBalance(_ context.Context, b *model.Balance) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.st.currencies[b.CurrencyID]; !ok {
		return fmt.Errorf("creating balance: unknown currency %d", b.CurrencyID)
	}
	if len(b.Persons) != 2 {
		return fmt.Errorf("creating balance: need 2 persons, got %d", len(b.Persons))
	}
	for _, pb := range b.Persons {
		if _, ok := q.st.persons[pb.PersonID]; !ok {
			return fmt.Errorf("creating balance: unknown person %d", pb.PersonID)
		}
	}
	if _, exists := q.findBalance(b.Persons[0].PersonID, b.Persons[1].PersonID, b.CurrencyID); exists {
		return fmt.Errorf("creating balance for %s: %w", model.PairKey(b.Persons[0].PersonID, b.Persons[1].PersonID), store.ErrConflict)
	}

	b.ID = q.st.nextID()
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = now()
	}
	for i := range b.Persons {
		b.Persons[i].ID = q.st.nextID()
		b.Persons[i].BalanceID = b.ID
		q.st.personBalances[b.Persons[i].ID] = b.Persons[i]
	}
	row := *b
	row.Persons = nil
	q.st.balances[b.ID] = row
	return nil
}

func (q *queries) SaveBalance(_ context.Context, b *model.Balance) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.st.balances[b.ID]; !ok {
		return store.ErrNotFound
	}
	for _, pb := range b.Persons {
		stored, ok := q.st.personBalances[pb.ID]
		if !ok || stored.BalanceID != b.ID {
			return fmt.Errorf("saving balance %d: person row %d: %w", b.ID, pb.ID, store.ErrNotFound)
		}
	}

	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = now()
	}
	for _, pb := range b.Persons {
		stored := q.st.personBalances[pb.ID]
		stored.Credited = pb.Credited
		q.st.personBalances[pb.ID] = stored
	}
	row := *b
	row.Persons = nil
	q.st.balances[b.ID] = row
	return nil
}

func (q *queries) ListBalances(_ context.Context, f store.BalanceFilter) ([]model.Balance, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []model.Balance
	for _, pb := range q.st.personBalances {
		if pb.PersonID != f.PersonID {
			continue
		}
		if f.Credited != nil && pb.Credited != *f.Credited {
			continue
		}
		bal := q.st.balances[pb.BalanceID]
		if !f.IncludeBalanced && bal.Value == 0 {
			continue
		}
		out = append(out, q.balance(bal))
	}
	slices.SortFunc(out, func(a, b model.Balance) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// Transactions and records.

func (q *queries) CreateTransaction(_ context.Context, t *model.Transaction) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	t.ID = q.st.nextID()
	q.st.transactions[t.ID] = *t
	return nil
}

// record fills in the fields read from the linked transaction.
func (q *queries) record(r model.TransactionRecord) model.TransactionRecord {
	r.ConfirmedAt = nil
	if r.TransactionID != nil {
		if t, ok := q.st.transactions[*r.TransactionID]; ok && t.ConfirmedAt != nil {
			r.ConfirmedAt = ptr(*t.ConfirmedAt)
		}
	}
	return r
}

func (q *queries) CreateRecord(_ context.Context, r *model.TransactionRecord) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, pid := range []int64{r.CreatorID, r.TargetID} {
		if _, ok := q.st.persons[pid]; !ok {
			return fmt.Errorf("creating record: unknown person %d", pid)
		}
	}
	if _, ok := q.st.currencies[r.CurrencyID]; !ok {
		return fmt.Errorf("creating record: unknown currency %d", r.CurrencyID)
	}
	if r.TransactionID != nil {
		if _, ok := q.st.transactions[*r.TransactionID]; !ok {
			return fmt.Errorf("creating record: unknown transaction %d", *r.TransactionID)
		}
	}

	r.ID = q.st.nextID()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now()
	}
	q.st.records[r.ID] = *r
	*r = q.record(*r)
	return nil
}

func (q *queries) GetRecord(_ context.Context, id int64) (*model.TransactionRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	r, ok := q.st.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	r = q.record(r)
	return &r, nil
}

func (q *queries) pending(id int64) (model.TransactionRecord, bool) {
	r, ok := q.st.records[id]
	if !ok || r.Rejected || r.TransactionID != nil {
		return model.TransactionRecord{}, false
	}
	return r, true
}

func (q *queries) ClaimPendingRecord(_ context.Context, id, targetID int64) (*model.TransactionRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	r, ok := q.pending(id)
	if !ok || r.TargetID != targetID {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (q *queries) LinkRecord(_ context.Context, id, transactionID int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	r, ok := q.pending(id)
	if !ok {
		return store.ErrNotFound
	}
	if _, ok := q.st.transactions[transactionID]; !ok {
		return fmt.Errorf("linking record %d: unknown transaction %d", id, transactionID)
	}
	r.TransactionID = ptr(transactionID)
	q.st.records[id] = r
	return nil
}

func (q *queries) RejectRecord(_ context.Context, id, targetID int64) (*model.TransactionRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	r, ok := q.pending(id)
	if !ok || r.TargetID != targetID {
		return nil, store.ErrNotFound
	}
	r.Rejected = true
	q.st.records[id] = r
	return &r, nil
}

func matchRecord(r model.TransactionRecord, f store.RecordFilter) bool {
	switch {
	case f.CreatorID != 0 && r.CreatorID != f.CreatorID:
		return false
	case f.TargetID != 0 && r.TargetID != f.TargetID:
		return false
	case f.CurrencyID != 0 && r.CurrencyID != f.CurrencyID:
		return false
	case f.TransactionID != 0 && (r.TransactionID == nil || *r.TransactionID != f.TransactionID):
		return false
	case f.FromReceiver != nil && r.FromReceiver != *f.FromReceiver:
		return false
	case f.Rejected != nil && r.Rejected != *f.Rejected:
		return false
	case f.Confirmed != nil && (r.TransactionID != nil) != *f.Confirmed:
		return false
	case !f.TransactionAfter.IsZero() && !r.TransactionTime.After(f.TransactionAfter):
		return false
	case !f.ConfirmedAfter.IsZero() && (r.ConfirmedAt == nil || !r.ConfirmedAt.After(f.ConfirmedAfter)):
		return false
	case !f.CreatedAfter.IsZero() && r.CreatedAt.Before(f.CreatedAfter):
		return false
	}
	return true
}

func (q *queries) ListRecords(_ context.Context, f store.RecordFilter) ([]model.TransactionRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []model.TransactionRecord
	for _, r := range q.st.records {
		r = q.record(r)
		if matchRecord(r, f) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b model.TransactionRecord) int {
		if c := b.TransactionTime.Compare(a.TransactionTime); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (q *queries) CountRecords(_ context.Context, creatorID int64) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, r := range q.st.records {
		if r.CreatorID == creatorID {
			n++
		}
	}
	return n, nil
}

// Resolutions.

func (q *queries) CreateResolution(_ context.Context, r *model.Resolution) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.st.currencies[r.CurrencyID]; !ok {
		return fmt.Errorf("creating resolution: unknown currency %d", r.CurrencyID)
	}
	for _, pr := range r.Persons {
		if _, ok := q.st.persons[pr.PersonID]; !ok {
			return fmt.Errorf("creating resolution: unknown person %d", pr.PersonID)
		}
	}

	r.ID = q.st.nextID()
	if r.ConfirmedAt.IsZero() {
		r.ConfirmedAt = now()
	}
	for i := range r.Persons {
		r.Persons[i].ID = q.st.nextID()
		r.Persons[i].ResolutionID = r.ID
		row := r.Persons[i]
		row.Resolution = nil
		q.st.personResolutions[row.ID] = row
	}
	row := *r
	row.Persons = nil
	q.st.resolutions[r.ID] = row
	return nil
}

func (q *queries) resolution(id int64) *model.Resolution {
	res := q.st.resolutions[id]
	var persons []model.PersonResolution
	for _, pr := range q.st.personResolutions {
		if pr.ResolutionID == id {
			persons = append(persons, pr)
		}
	}
	slices.SortFunc(persons, func(x, y model.PersonResolution) int { return cmp.Compare(x.ID, y.ID) })
	res.Persons = persons
	return &res
}

func (q *queries) ListPersonResolutions(_ context.Context, f store.ResolutionFilter) ([]model.PersonResolution, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []model.PersonResolution
	for _, pr := range q.st.personResolutions {
		if f.PersonID != 0 && pr.PersonID != f.PersonID {
			continue
		}
		if f.Credited != nil && pr.Credited != *f.Credited {
			continue
		}
		res := q.resolution(pr.ResolutionID)
		if f.CurrencyID != 0 && res.CurrencyID != f.CurrencyID {
			continue
		}
		if f.Confirmed != nil && res.ConfirmedAt.IsZero() == *f.Confirmed {
			continue
		}
		if !f.ConfirmedAfter.IsZero() && !res.ConfirmedAt.After(f.ConfirmedAfter) {
			continue
		}
		if f.OtherPersonID != 0 && !slices.ContainsFunc(res.Persons, func(o model.PersonResolution) bool {
			return o.PersonID == f.OtherPersonID && o.ID != pr.ID
		}) {
			continue
		}
		pr.Resolution = res
		out = append(out, pr)
	}
	slices.SortFunc(out, func(a, b model.PersonResolution) int {
		if c := b.Resolution.ConfirmedAt.Compare(a.Resolution.ConfirmedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

// Exchange rates.

func (q *queries) CreateExchangeRate(_ context.Context, r *model.ExchangeRate) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, existing := range q.st.rates {
		if existing.PersonID == r.PersonID &&
			existing.SourceCurrencyID == r.SourceCurrencyID &&
			existing.DestCurrencyID == r.DestCurrencyID {
			return fmt.Errorf("creating exchange rate: %w", store.ErrConflict)
		}
	}
	if _, ok := q.st.persons[r.PersonID]; !ok {
		return fmt.Errorf("creating exchange rate: unknown person %d", r.PersonID)
	}

	r.ID = q.st.nextID()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now()
	}
	q.st.rates[r.ID] = *r
	return nil
}

func (q *queries) ListExchangeRates(_ context.Context, personID int64) ([]model.ExchangeRate, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []model.ExchangeRate
	for _, r := range q.st.rates {
		if r.PersonID == personID {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b model.ExchangeRate) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (q *queries) DeleteExchangeRate(_ context.Context, id, personID int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	r, ok := q.st.rates[id]
	if !ok || r.PersonID != personID {
		return store.ErrNotFound
	}
	delete(q.st.rates, id)
	return nil
}

// News.

func (q *queries) CreateNewsPost(_ context.Context, p *model.NewsPost) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	p.ID = q.st.nextID()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now()
	}
	q.st.news[p.ID] = *p
	return nil
}

func (q *queries) ListNewsPosts(_ context.Context, siteID int64, since time.Time, limit int) ([]model.NewsPost, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []model.NewsPost
	for _, p := range q.st.news {
		if p.SiteID == siteID && !p.CreatedAt.Before(since) {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b model.NewsPost) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Content.

func (q *queries) GetContent(_ context.Context, siteID int64, name string) (*model.Content, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, c := range q.st.contents {
		if c.SiteID == siteID && c.Name == name {
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (q *queries) SaveContent(_ context.Context, c *model.Content) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	c.ID = 0
	for _, existing := range q.st.contents {
		if existing.SiteID == c.SiteID && existing.Name == c.Name {
			c.ID = existing.ID
			break
		}
	}
	if c.ID == 0 {
		c.ID = q.st.nextID()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now()
	}
	q.st.contents[c.ID] = *c
	return nil
}
