package ledger

import (
	"time"

	"github.com/openlets/openlets/internal/model"
)

// FindSimilar returns the candidate that records the same transfer as the
// inbound record from the other side: a pending record aimed back at the
// inbound creator, in the same currency and amount, with the same payer.
// When several qualify, the one closest in transaction time wins.
func FindSimilar(candidates []model.TransactionRecord, inbound model.TransactionRecord) *model.TransactionRecord {
	var best *model.TransactionRecord
	var bestGap time.Duration
	for i := range candidates {
		c := &candidates[i]
		if !similar(*c, inbound, inbound.TargetID) {
			continue
		}
		gap := c.TransactionTime.Sub(inbound.TransactionTime).Abs()
		if best == nil || gap < bestGap {
			best, bestGap = c, gap
		}
	}
	if best == nil {
		return nil
	}
	match := *best
	return &match
}

// similar reports whether c, created by owner, mirrors the pending record in.
func similar(c, in model.TransactionRecord, owner int64) bool {
	return c.Status() == model.StatusPending &&
		c.ID != in.ID &&
		c.CreatorID == owner &&
		c.TargetID == in.CreatorID &&
		c.CurrencyID == in.CurrencyID &&
		c.Value == in.Value &&
		c.Provider() == in.Provider() &&
		c.Receiver() == in.Receiver()
}
