package model

import "time"

// TransferKind distinguishes the two record kinds of the transfer history.
type TransferKind string

const (
	KindTransaction TransferKind = "transaction"
	KindResolution  TransferKind = "resolution"
)

// Transfer is one entry of a person's merged transfer history. Exactly one
// of Record and Resolution is set, matching Kind.
type Transfer struct {
	Kind       TransferKind       `json:"kind"`
	Time       time.Time          `json:"time"`
	Record     *TransactionRecord `json:"record,omitempty"`
	Resolution *PersonResolution  `json:"resolution,omitempty"`
}

// TransferFromRecord wraps a transaction record; its nominal time is the
// proposed transaction time.
func TransferFromRecord(r TransactionRecord) Transfer {
	return Transfer{Kind: KindTransaction, Time: r.TransactionTime, Record: &r}
}

// TransferFromResolution wraps a person's resolution row; its nominal time
// is the confirmation time.
func TransferFromResolution(pr PersonResolution) Transfer {
	t := Transfer{Kind: KindResolution, Resolution: &pr}
	if pr.Resolution != nil {
		t.Time = pr.Resolution.ConfirmedAt
	}
	return t
}
