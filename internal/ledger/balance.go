package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/openlets/openlets/internal/model"
	"github.com/openlets/openlets/internal/store"
)

// UpdateBalance applies a confirmed transfer of amount from provider to
// receiver to their balance in currencyID. q must belong to the caller's
// atomic unit.
//
// A new balance records the provider as debtor. On an existing balance the
// amount adds to the debt when the provider already owes; otherwise it
// pays the debt down and, if it overshoots, the value becomes the excess
// and both parties swap roles.
func UpdateBalance(ctx context.Context, q store.Queries, currencyID, amount, provider, receiver int64, now time.Time) (*model.Balance, error) {
	bal, err := q.FindBalance(ctx, provider, receiver, currencyID)
	if errors.Is(err, store.ErrNotFound) {
		return newBalance(ctx, q, currencyID, amount, provider, receiver, now)
	}
	if err != nil {
		return nil, fmt.Errorf("finding balance: %w", err)
	}

	party, ok := bal.Party(provider)
	if !ok {
		return nil, fmt.Errorf("balance %d has no row for person %d", bal.ID, provider)
	}
	if !party.Credited {
		if amount > math.MaxInt64-bal.Value {
			return nil, invalid("value", "balance %d would exceed %d", bal.ID, int64(math.MaxInt64))
		}
		bal.Value += amount
	} else {
		bal.Value -= amount
		if bal.Value < 0 {
			bal.Value = -bal.Value
			for i := range bal.Persons {
				bal.Persons[i].Credited = !bal.Persons[i].Credited
			}
		}
	}

	bal.UpdatedAt = now
	if err := q.SaveBalance(ctx, bal); err != nil {
		return nil, fmt.Errorf("saving balance: %w", err)
	}
	return bal, nil
}

func newBalance(ctx context.Context, q store.Queries, currencyID, amount, provider, receiver int64, now time.Time) (*model.Balance, error) {
	bal := &model.Balance{
		CurrencyID: currencyID,
		Value:      amount,
		UpdatedAt:  now,
		Persons: []model.PersonBalance{
			{PersonID: provider, Credited: false},
			{PersonID: receiver, Credited: true},
		},
	}
	if err := q.CreateBalance(ctx, bal); err != nil {
		return nil, fmt.Errorf("creating balance: %w", err)
	}
	return bal, nil
}
