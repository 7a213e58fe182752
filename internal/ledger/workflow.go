package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/openlets/openlets/internal/events"
	"github.com/openlets/openlets/internal/model"
	"github.com/openlets/openlets/internal/money"
	"github.com/openlets/openlets/internal/store"
)

const maxNotesLen = 500

// ProposeParams describes a new transfer from the creator's side. The
// amount is either Value in minor units or Amount as text in the
// currency's precision.
type ProposeParams struct {
	TargetID        int64
	CurrencyID      int64
	Value           int64
	Amount          string
	FromReceiver    bool
	TransactionTime time.Time
	Notes           string
}

// Propose stores a pending transaction record from the actor to the target.
func (s *Service) Propose(ctx context.Context, actor Actor, params ProposeParams) (*model.TransactionRecord, error) {
	rec, err := s.buildRecord(ctx, actor, params)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("creating record: %w", err)
	}

	s.logger.Info("transaction proposed",
		zap.Int64("record_id", rec.ID),
		zap.Int64("creator_id", rec.CreatorID),
		zap.Int64("target_id", rec.TargetID))
	s.publish(ctx, events.Event{
		Type:           events.TransactionProposed,
		RecordID:       rec.ID,
		ActorID:        actor.PersonID,
		CounterpartyID: rec.TargetID,
		CurrencyID:     rec.CurrencyID,
		Value:          rec.Value,
	})
	return rec, nil
}

func (s *Service) buildRecord(ctx context.Context, actor Actor, params ProposeParams) (*model.TransactionRecord, error) {
	if _, err := s.store.GetPerson(ctx, actor.PersonID); err != nil {
		return nil, fmt.Errorf("loading person %d: %w", actor.PersonID, err)
	}
	if params.TargetID == actor.PersonID {
		return nil, invalid("target", "cannot transact with yourself")
	}
	if _, err := s.store.GetPerson(ctx, params.TargetID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, invalid("target", "person %d does not exist", params.TargetID)
		}
		return nil, fmt.Errorf("loading target: %w", err)
	}
	cur, err := s.store.GetCurrency(ctx, params.CurrencyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, invalid("currency", "currency %d does not exist", params.CurrencyID)
		}
		return nil, fmt.Errorf("loading currency: %w", err)
	}

	value := params.Value
	if params.Amount != "" {
		value, err = money.Parse(params.Amount, cur.DecimalPlaces)
		if err != nil {
			return nil, invalid("value", "%v", err)
		}
	}
	if value <= 0 {
		return nil, invalid("value", "must be greater than zero")
	}
	if len(params.Notes) > maxNotesLen {
		return nil, invalid("notes", "must be at most %d characters", maxNotesLen)
	}

	now := s.now()
	when := params.TransactionTime
	if when.IsZero() {
		when = now
	}
	return &model.TransactionRecord{
		CreatorID:       actor.PersonID,
		TargetID:        params.TargetID,
		CurrencyID:      cur.ID,
		Value:           value,
		FromReceiver:    params.FromReceiver,
		TransactionTime: when,
		CreatedAt:       now,
		Notes:           params.Notes,
	}, nil
}

// CounterParams is the target's own version of a pending record.
// Zero fields keep the pending record's values.
type CounterParams struct {
	Value           int64
	Amount          string
	TransactionTime time.Time
	Notes           string
}

// Counter answers a pending record targeted at the actor with the actor's
// own record of the same transfer, sent back to the original creator.
// The original record stays pending.
func (s *Service) Counter(ctx context.Context, actor Actor, recordID int64, params CounterParams) (*model.TransactionRecord, error) {
	orig, err := s.store.GetRecord(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("loading record %d: %w", recordID, err)
	}
	if orig.TargetID != actor.PersonID || orig.Status() != model.StatusPending {
		return nil, fmt.Errorf("record %d is not pending for person %d: %w", recordID, actor.PersonID, store.ErrNotFound)
	}

	mirror := orig.Mirror()
	p := ProposeParams{
		TargetID:        mirror.TargetID,
		CurrencyID:      mirror.CurrencyID,
		Value:           mirror.Value,
		FromReceiver:    mirror.FromReceiver,
		TransactionTime: mirror.TransactionTime,
		Notes:           mirror.Notes,
	}
	if params.Value != 0 || params.Amount != "" {
		p.Value, p.Amount = params.Value, params.Amount
	}
	if !params.TransactionTime.IsZero() {
		p.TransactionTime = params.TransactionTime
	}
	if params.Notes != "" {
		p.Notes = params.Notes
	}
	return s.Propose(ctx, actor, p)
}

// Confirmation is the result of confirming a record.
type Confirmation struct {
	Transaction model.Transaction       `json:"transaction"`
	Record      model.TransactionRecord `json:"record"`
	Mirror      model.TransactionRecord `json:"mirror"`
	Balance     model.Balance           `json:"balance"`
}

// Confirm accepts a pending record targeted at the actor. In one atomic
// unit it creates the transaction, stores the actor's mirror record, links
// both records and applies the transfer to the pair's balance.
func (s *Service) Confirm(ctx context.Context, actor Actor, recordID int64) (*Confirmation, error) {
	return s.confirm(ctx, actor, recordID, 0)
}

// ConfirmWithMatch is Confirm using the actor's own pending record matchID
// as the mirror instead of creating one. The match must describe the same
// transfer; see FindSimilar.
func (s *Service) ConfirmWithMatch(ctx context.Context, actor Actor, recordID, matchID int64) (*Confirmation, error) {
	if matchID == 0 {
		return nil, invalid("match", "is required")
	}
	return s.confirm(ctx, actor, recordID, matchID)
}

func (s *Service) confirm(ctx context.Context, actor Actor, recordID, matchID int64) (*Confirmation, error) {
	var c Confirmation
	err := s.store.Atomic(ctx, func(q store.Queries) error {
		rec, err := q.ClaimPendingRecord(ctx, recordID, actor.PersonID)
		if err != nil {
			return fmt.Errorf("claiming record %d: %w", recordID, err)
		}

		var match *model.TransactionRecord
		if matchID != 0 {
			match, err = q.ClaimPendingRecord(ctx, matchID, rec.CreatorID)
			if err != nil {
				return fmt.Errorf("claiming match %d: %w", matchID, err)
			}
			if !similar(*match, *rec, actor.PersonID) {
				return invalid("match", "record %d does not describe the same transfer", matchID)
			}
		}

		now := s.now()
		tx := model.Transaction{ConfirmedAt: &now}
		if err := q.CreateTransaction(ctx, &tx); err != nil {
			return fmt.Errorf("creating transaction: %w", err)
		}

		var mirror model.TransactionRecord
		if match == nil {
			mirror = rec.Mirror()
			mirror.TransactionID = &tx.ID
			mirror.CreatedAt = now
			if err := q.CreateRecord(ctx, &mirror); err != nil {
				return fmt.Errorf("creating mirror record: %w", err)
			}
		} else {
			if err := q.LinkRecord(ctx, match.ID, tx.ID); err != nil {
				return fmt.Errorf("linking match %d: %w", match.ID, err)
			}
			mirror = *match
			mirror.TransactionID = &tx.ID
			mirror.ConfirmedAt = &now
		}

		if err := q.LinkRecord(ctx, rec.ID, tx.ID); err != nil {
			return fmt.Errorf("linking record %d: %w", rec.ID, err)
		}
		rec.TransactionID = &tx.ID
		rec.ConfirmedAt = &now

		bal, err := UpdateBalance(ctx, q, rec.CurrencyID, rec.Value, rec.Provider(), rec.Receiver(), now)
		if err != nil {
			return err
		}

		c = Confirmation{Transaction: tx, Record: *rec, Mirror: mirror, Balance: *bal}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("transaction confirmed",
		zap.Int64("record_id", c.Record.ID),
		zap.Int64("transaction_id", c.Transaction.ID),
		zap.Int64("balance_id", c.Balance.ID),
		zap.Int64("balance_value", c.Balance.Value))
	s.publish(ctx, events.Event{
		Type:           events.TransactionConfirmed,
		RecordID:       c.Record.ID,
		TransactionID:  c.Transaction.ID,
		BalanceID:      c.Balance.ID,
		ActorID:        actor.PersonID,
		CounterpartyID: c.Record.CreatorID,
		CurrencyID:     c.Record.CurrencyID,
		Value:          c.Record.Value,
	})
	return &c, nil
}

// Reject marks a pending record targeted at the actor as rejected. It
// fails with store.ErrNotFound when no such pending record exists,
// including when it was confirmed or rejected first.
func (s *Service) Reject(ctx context.Context, actor Actor, recordID int64) (*model.TransactionRecord, error) {
	rec, err := s.store.RejectRecord(ctx, recordID, actor.PersonID)
	if err != nil {
		return nil, fmt.Errorf("rejecting record %d: %w", recordID, err)
	}

	s.logger.Info("transaction rejected", zap.Int64("record_id", rec.ID))
	s.publish(ctx, events.Event{
		Type:           events.TransactionRejected,
		RecordID:       rec.ID,
		ActorID:        actor.PersonID,
		CounterpartyID: rec.CreatorID,
		CurrencyID:     rec.CurrencyID,
		Value:          rec.Value,
	})
	return rec, nil
}

// PendingItem is an inbound pending record with the actor's own pending
// record of the same transfer, if one exists.
type PendingItem struct {
	Record model.TransactionRecord  `json:"record"`
	Match  *model.TransactionRecord `json:"match,omitempty"`
}

const matchCandidates = 100

// PendingForUser lists the pending records other persons created against
// the actor.
func (s *Service) PendingForUser(ctx context.Context, actor Actor) ([]PendingItem, error) {
	inbound, err := s.store.ListRecords(ctx, store.RecordFilter{
		TargetID:  actor.PersonID,
		Confirmed: ptr(false),
		Rejected:  ptr(false),
	})
	if err != nil {
		return nil, fmt.Errorf("listing pending records: %w", err)
	}
	if len(inbound) == 0 {
		return nil, nil
	}

	own, err := s.RecentForUser(ctx, actor, RecentParams{Limit: matchCandidates, PendingOnly: true})
	if err != nil {
		return nil, err
	}

	items := make([]PendingItem, 0, len(inbound))
	for _, r := range inbound {
		items = append(items, PendingItem{Record: r, Match: FindSimilar(own, r)})
	}
	return items, nil
}

// RecentParams bounds RecentForUser. Zero Days and Limit take the
// service defaults.
type RecentParams struct {
	Days        int
	Limit       int
	PendingOnly bool
}

// RecentForUser lists records the actor created in the last Days days,
// newest transaction time first.
func (s *Service) RecentForUser(ctx context.Context, actor Actor, params RecentParams) ([]model.TransactionRecord, error) {
	if params.Days < 0 {
		return nil, invalid("days", "must not be negative")
	}
	if params.Days == 0 {
		params.Days = s.opts.RecentDays
	}
	if params.Limit <= 0 {
		params.Limit = s.opts.RecentLimit
	}
	f := store.RecordFilter{
		CreatorID:    actor.PersonID,
		CreatedAfter: s.daysAgo(params.Days),
		Limit:        params.Limit,
	}
	if params.PendingOnly {
		f.Confirmed = ptr(false)
		f.Rejected = ptr(false)
	}
	recs, err := s.store.ListRecords(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("listing recent records: %w", err)
	}
	return recs, nil
}

// TransactionCount is the number of records the actor has created.
func (s *Service) TransactionCount(ctx context.Context, actor Actor) (int, error) {
	n, err := s.store.CountRecords(ctx, actor.PersonID)
	if err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

func ptr[T any](v T) *T {
	return &v
}
