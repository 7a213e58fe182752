package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openlets/openlets/internal/events"
	"github.com/openlets/openlets/internal/model"
	"github.com/openlets/openlets/internal/store"
	"github.com/openlets/openlets/internal/store/memstore"
)

var t0 = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

// recorder is a Publisher that keeps what it was given.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (r *recorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Type
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recorder) last() events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type fixture struct {
	svc   *Service
	st    *memstore.Store
	pub   *recorder
	now   time.Time
	usd   *model.Currency
	alice *model.Person
	bob   *model.Person
	carol *model.Person
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{st: memstore.New(), pub: &recorder{}, now: t0}
	f.svc = NewService(f.st, f.pub, nil, Options{})
	f.svc.SetClock(func() time.Time { return f.now })

	ctx := context.Background()
	var err error
	f.usd, err = f.svc.CreateCurrency(ctx, CreateCurrencyParams{Name: "USD", DecimalPlaces: 2, Default: true})
	require.NoError(t, err)
	f.alice, err = f.svc.CreatePerson(ctx, "Alice", &f.usd.ID)
	require.NoError(t, err)
	f.bob, err = f.svc.CreatePerson(ctx, "Bob", nil)
	require.NoError(t, err)
	f.carol, err = f.svc.CreatePerson(ctx, "Carol", nil)
	require.NoError(t, err)
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func as(p *model.Person) Actor {
	return Actor{PersonID: p.ID, SiteID: 1}
}

// propose creates a pending record of value minor units from one person to
// another, dated at the fixture clock.
func (f *fixture) propose(t *testing.T, from, to *model.Person, value int64, fromReceiver bool) *model.TransactionRecord {
	t.Helper()
	rec, err := f.svc.Propose(context.Background(), as(from), ProposeParams{
		TargetID:     to.ID,
		CurrencyID:   f.usd.ID,
		Value:        value,
		FromReceiver: fromReceiver,
	})
	require.NoError(t, err)
	return rec
}

// transfer proposes and confirms a record.
func (f *fixture) transfer(t *testing.T, from, to *model.Person, value int64, fromReceiver bool) *Confirmation {
	t.Helper()
	rec := f.propose(t, from, to, value, fromReceiver)
	c, err := f.svc.Confirm(context.Background(), as(to), rec.ID)
	require.NoError(t, err)
	return c
}

func (f *fixture) balance(t *testing.T, a, b *model.Person) *model.Balance {
	t.Helper()
	bal, err := f.st.FindBalance(context.Background(), a.ID, b.ID, f.usd.ID)
	require.NoError(t, err)
	return bal
}

func credited(t *testing.T, bal *model.Balance, p *model.Person) bool {
	t.Helper()
	pb, ok := bal.Party(p.ID)
	require.True(t, ok, "person %d is not on balance %d", p.ID, bal.ID)
	return pb.Credited
}

func requireValidation(t *testing.T, err error, field string) {
	t.Helper()
	var ve ValidationError
	require.True(t, errors.As(err, &ve), "want ValidationError, got %v", err)
	require.Equal(t, field, ve.Field)
}

// failingStore fails CreateBalance inside atomic units.
type failingStore struct {
	store.Store
}

func (s failingStore) Atomic(ctx context.Context, fn func(q store.Queries) error) error {
	return s.Store.Atomic(ctx, func(q store.Queries) error {
		return fn(failingQueries{q})
	})
}

type failingQueries struct {
	store.Queries
}

func (failingQueries) CreateBalance(context.Context, *model.Balance) error {
	return errors.New("disk full")
}
