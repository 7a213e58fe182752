package ledger

import (
	"context"
	"fmt"
	"slices"

	"github.com/openlets/openlets/internal/model"
	"github.com/openlets/openlets/internal/store"
)

// HistoryFilter narrows the transfer history. Zero fields do not filter.
type HistoryFilter struct {
	TransferType    model.TransferKind
	PersonID        int64
	TransactionType model.TransactionType
	CurrencyID      int64
	Status          model.RecordStatus
	// TransactionDays keeps transfers dated within the last N days.
	TransactionDays int
	// ConfirmedDays keeps transfers confirmed within the last N days.
	ConfirmedDays int
}

// Validate rejects unknown enum values and negative day counts.
func (f HistoryFilter) Validate() error {
	switch f.TransferType {
	case "", model.KindTransaction, model.KindResolution:
	default:
		return invalid("transfer_type", "unknown transfer type %q", f.TransferType)
	}
	switch f.TransactionType {
	case "", model.TypeCharge, model.TypePayment:
	default:
		return invalid("transaction_type", "unknown transaction type %q", f.TransactionType)
	}
	switch f.Status {
	case "", model.StatusPending, model.StatusConfirmed, model.StatusRejected:
	default:
		return invalid("status", "unknown status %q", f.Status)
	}
	if f.TransactionDays < 0 {
		return invalid("transaction_time", "must not be negative")
	}
	if f.ConfirmedDays < 0 {
		return invalid("confirmed_time", "must not be negative")
	}
	if f.PersonID < 0 || f.CurrencyID < 0 {
		return invalid("filter", "ids must not be negative")
	}
	return nil
}

// TransferHistory returns the actor's transaction records and resolutions
// merged into one feed, newest first. Each filter key applies to both
// kinds under the field each kind uses for it; a rejected status applies
// only to transaction records and leaves resolutions out.
func (s *Service) TransferHistory(ctx context.Context, actor Actor, f HistoryFilter) ([]model.Transfer, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	rf := store.RecordFilter{CreatorID: actor.PersonID}
	resF := store.ResolutionFilter{PersonID: actor.PersonID}
	withRecords := f.TransferType != model.KindResolution
	withResolutions := f.TransferType != model.KindTransaction

	if f.PersonID != 0 {
		rf.TargetID = f.PersonID
		resF.OtherPersonID = f.PersonID
	}
	if f.TransactionType != "" {
		charge := f.TransactionType == model.TypeCharge
		rf.FromReceiver = &charge
		resF.Credited = &charge
	}
	if f.CurrencyID != 0 {
		rf.CurrencyID = f.CurrencyID
		resF.CurrencyID = f.CurrencyID
	}
	switch f.Status {
	case model.StatusRejected:
		rf.Rejected = ptr(true)
		withResolutions = false
	case model.StatusPending, model.StatusConfirmed:
		// Rejected records only show under status=rejected.
		confirmed := f.Status == model.StatusConfirmed
		rf.Confirmed = &confirmed
		rf.Rejected = ptr(false)
		resF.Confirmed = &confirmed
	}
	if f.TransactionDays > 0 {
		since := s.daysAgo(f.TransactionDays)
		rf.TransactionAfter = since
		resF.ConfirmedAfter = since
	}
	if f.ConfirmedDays > 0 {
		since := s.daysAgo(f.ConfirmedDays)
		rf.ConfirmedAfter = since
		if since.After(resF.ConfirmedAfter) {
			resF.ConfirmedAfter = since
		}
	}

	var out []model.Transfer
	if withRecords {
		recs, err := s.store.ListRecords(ctx, rf)
		if err != nil {
			return nil, fmt.Errorf("listing records: %w", err)
		}
		for _, r := range recs {
			out = append(out, model.TransferFromRecord(r))
		}
	}
	if withResolutions {
		prs, err := s.store.ListPersonResolutions(ctx, resF)
		if err != nil {
			return nil, fmt.Errorf("listing resolutions: %w", err)
		}
		for _, pr := range prs {
			out = append(out, model.TransferFromResolution(pr))
		}
	}

	slices.SortStableFunc(out, func(a, b model.Transfer) int {
		return b.Time.Compare(a.Time)
	})
	return out, nil
}
