package model

import "time"

// RecordStatus is the lifecycle state of a transaction record.
type RecordStatus string

const (
	StatusPending   RecordStatus = "pending"
	StatusConfirmed RecordStatus = "confirmed"
	StatusRejected  RecordStatus = "rejected"
)

// TransactionType is how a record's creator describes the transfer.
type TransactionType string

const (
	TypeCharge  TransactionType = "charge"
	TypePayment TransactionType = "payment"
)

// TransactionTypeOf maps a FromReceiver flag to its transaction type.
func TransactionTypeOf(fromReceiver bool) TransactionType {
	if fromReceiver {
		return TypeCharge
	}
	return TypePayment
}

// Transaction pairs the two mirrored records of a confirmed transfer.
type Transaction struct {
	ID          int64      `json:"id"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

// TransactionRecord is one person's one-sided account of a transfer.
type TransactionRecord struct {
	ID              int64     `json:"id"`
	CreatorID       int64     `json:"creator_id"`
	TargetID        int64     `json:"target_id"`
	CurrencyID      int64     `json:"currency_id"`
	Value           int64     `json:"value"`
	FromReceiver    bool      `json:"from_receiver"`
	Rejected        bool      `json:"rejected"`
	TransactionTime time.Time `json:"transaction_time"`
	CreatedAt       time.Time `json:"created_at"`
	Notes           string    `json:"notes"`
	TransactionID   *int64    `json:"transaction_id,omitempty"`

	// ConfirmedAt is read from the linked transaction; nil while pending.
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

// Status derives the record's lifecycle state.
func (r TransactionRecord) Status() RecordStatus {
	switch {
	case r.Rejected:
		return StatusRejected
	case r.TransactionID != nil:
		return StatusConfirmed
	default:
		return StatusPending
	}
}

// Provider is the party paying in this transfer.
func (r TransactionRecord) Provider() int64 {
	if r.FromReceiver {
		return r.TargetID
	}
	return r.CreatorID
}

// Receiver is the party being paid in this transfer.
func (r TransactionRecord) Receiver() int64 {
	if r.FromReceiver {
		return r.CreatorID
	}
	return r.TargetID
}

// TransactionType is the type as seen by the creator.
func (r TransactionRecord) TransactionType() TransactionType {
	return TransactionTypeOf(r.FromReceiver)
}

// TargetTransactionType is the type as seen by the target.
func (r TransactionRecord) TargetTransactionType() TransactionType {
	return TransactionTypeOf(!r.FromReceiver)
}

// Mirror returns the target's side of the record: creator and target
// swapped, direction inverted, not yet stored or linked.
func (r TransactionRecord) Mirror() TransactionRecord {
	return TransactionRecord{
		CreatorID:       r.TargetID,
		TargetID:        r.CreatorID,
		CurrencyID:      r.CurrencyID,
		Value:           r.Value,
		FromReceiver:    !r.FromReceiver,
		TransactionTime: r.TransactionTime,
		Notes:           r.Notes,
	}
}
