package ledger

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/openlets/openlets/internal/events"
	"github.com/openlets/openlets/internal/model"
	"github.com/openlets/openlets/internal/store"
)

// Resolve settles a balance the actor is party to. It records the current
// value and each party's role in a new resolution and zeroes the balance.
// Resolutions are never changed afterwards.
func (s *Service) Resolve(ctx context.Context, actor Actor, balanceID int64) (*model.Resolution, error) {
	var res model.Resolution
	var other int64
	err := s.store.Atomic(ctx, func(q store.Queries) error {
		bal, err := q.GetBalance(ctx, balanceID)
		if err != nil {
			return fmt.Errorf("loading balance %d: %w", balanceID, err)
		}
		if _, ok := bal.Party(actor.PersonID); !ok {
			return fmt.Errorf("balance %d for person %d: %w", balanceID, actor.PersonID, store.ErrNotFound)
		}
		if bal.Value == 0 {
			return invalid("balance", "balance %d is already settled", balanceID)
		}
		other, _ = bal.Other(actor.PersonID)

		now := s.now()
		res = model.Resolution{
			CurrencyID:  bal.CurrencyID,
			Value:       bal.Value,
			ConfirmedAt: now,
		}
		for _, pb := range bal.Persons {
			res.Persons = append(res.Persons, model.PersonResolution{
				PersonID: pb.PersonID,
				Credited: pb.Credited,
			})
		}
		if err := q.CreateResolution(ctx, &res); err != nil {
			return fmt.Errorf("creating resolution: %w", err)
		}

		bal.Value = 0
		bal.UpdatedAt = now
		if err := q.SaveBalance(ctx, bal); err != nil {
			return fmt.Errorf("saving balance: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("balance resolved",
		zap.Int64("balance_id", balanceID),
		zap.Int64("resolution_id", res.ID),
		zap.Int64("value", res.Value))
	s.publish(ctx, events.Event{
		Type:           events.BalanceResolved,
		BalanceID:      balanceID,
		ResolutionID:   res.ID,
		ActorID:        actor.PersonID,
		CounterpartyID: other,
		CurrencyID:     res.CurrencyID,
		Value:          res.Value,
	})
	return &res, nil
}
