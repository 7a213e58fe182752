package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlets/openlets/internal/events"
	"github.com/openlets/openlets/internal/store"
)

func TestResolve(t *testing.T) {
	f := newFixture(t)
	c := f.transfer(t, f.alice, f.bob, 500, false)
	f.advance(time.Hour)

	res, err := f.svc.Resolve(context.Background(), as(f.bob), c.Balance.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(500), res.Value)
	assert.Equal(t, f.usd.ID, res.CurrencyID)
	assert.Equal(t, f.now, res.ConfirmedAt)
	require.Len(t, res.Persons, 2)
	for _, pr := range res.Persons {
		switch pr.PersonID {
		case f.alice.ID:
			assert.False(t, pr.Credited)
		case f.bob.ID:
			assert.True(t, pr.Credited)
		default:
			t.Fatalf("unexpected person %d", pr.PersonID)
		}
	}

	bal := f.balance(t, f.alice, f.bob)
	assert.Zero(t, bal.Value)
	assert.False(t, credited(t, bal, f.alice), "flags are kept on the zeroed balance")

	bs, err := f.svc.Balances(context.Background(), as(f.alice), BalancesParams{})
	require.NoError(t, err)
	assert.Empty(t, bs)
	bs, err = f.svc.Balances(context.Background(), as(f.alice), BalancesParams{IncludeBalanced: true})
	require.NoError(t, err)
	assert.Len(t, bs, 1)

	prs, err := f.st.ListPersonResolutions(context.Background(), store.ResolutionFilter{PersonID: f.alice.ID})
	require.NoError(t, err)
	require.Len(t, prs, 1)
	assert.Equal(t, int64(-500), prs[0].RelativeValue())
	other, ok := prs[0].OtherPersonID()
	require.True(t, ok)
	assert.Equal(t, f.bob.ID, other)

	e := f.pub.last()
	assert.Equal(t, events.BalanceResolved, e.Type)
	assert.Equal(t, res.ID, e.ResolutionID)
	assert.Equal(t, f.alice.ID, e.CounterpartyID)
}

func TestResolve_Errors(t *testing.T) {
	f := newFixture(t)
	c := f.transfer(t, f.alice, f.bob, 500, false)

	_, err := f.svc.Resolve(context.Background(), as(f.carol), c.Balance.ID)
	assert.ErrorIs(t, err, store.ErrNotFound, "only parties may resolve")

	_, err = f.svc.Resolve(context.Background(), as(f.alice), 9999)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.svc.Resolve(context.Background(), as(f.alice), c.Balance.ID)
	require.NoError(t, err)

	_, err = f.svc.Resolve(context.Background(), as(f.alice), c.Balance.ID)
	requireValidation(t, err, "balance")
}

func TestResolve_ThenTransfer(t *testing.T) {
	f := newFixture(t)
	c := f.transfer(t, f.alice, f.bob, 500, false)
	_, err := f.svc.Resolve(context.Background(), as(f.alice), c.Balance.ID)
	require.NoError(t, err)

	// Bob pays after the settlement; Bob now owes.
	next := f.transfer(t, f.bob, f.alice, 120, false)

	assert.Equal(t, c.Balance.ID, next.Balance.ID)
	bal := f.balance(t, f.alice, f.bob)
	assert.Equal(t, int64(120), bal.Value)
	assert.False(t, credited(t, bal, f.bob))
	assert.True(t, credited(t, bal, f.alice))

	prs, err := f.st.ListPersonResolutions(context.Background(), store.ResolutionFilter{PersonID: f.bob.ID})
	require.NoError(t, err)
	require.Len(t, prs, 1)
	assert.True(t, prs[0].Credited, "resolutions are never rewritten")
	assert.Equal(t, int64(500), prs[0].Resolution.Value)
}
