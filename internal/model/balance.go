package model

import (
	"fmt"
	"time"
)

// Balance is the net unsettled amount between two persons in one currency.
// Value is a non-negative magnitude; the direction of the debt is carried
// only by the Credited flags of its two PersonBalance rows.
type Balance struct {
	ID         int64           `json:"id"`
	CurrencyID int64           `json:"currency_id"`
	Value      int64           `json:"value"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Persons    []PersonBalance `json:"persons"`
}

// PersonBalance joins a person to a balance. Credited means the person is
// owed money on the balance.
type PersonBalance struct {
	ID        int64 `json:"id"`
	PersonID  int64 `json:"person_id"`
	BalanceID int64 `json:"balance_id"`
	Credited  bool  `json:"credited"`
}

// Party returns the join row for personID.
func (b Balance) Party(personID int64) (PersonBalance, bool) {
	for _, pb := range b.Persons {
		if pb.PersonID == personID {
			return pb, true
		}
	}
	return PersonBalance{}, false
}

// Debtor returns the person who owes money on the balance.
func (b Balance) Debtor() (int64, bool) {
	for _, pb := range b.Persons {
		if !pb.Credited {
			return pb.PersonID, true
		}
	}
	return 0, false
}

// Other returns the counterparty of personID on the balance.
func (b Balance) Other(personID int64) (int64, bool) {
	for _, pb := range b.Persons {
		if pb.PersonID != personID {
			return pb.PersonID, true
		}
	}
	return 0, false
}

// PairKey identifies an unordered pair of persons.
// PairKey(7, 3) == PairKey(3, 7) == "3:7"
func PairKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}
