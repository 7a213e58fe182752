package model

import "time"

// Resolution zeroes a balance between its persons by mutual agreement.
type Resolution struct {
	ID          int64              `json:"id"`
	CurrencyID  int64              `json:"currency_id"`
	Value       int64              `json:"value"`
	ConfirmedAt time.Time          `json:"confirmed_at"`
	Persons     []PersonResolution `json:"persons"`
}

// PersonResolution joins a person to a resolution. Credited carries the
// person's role on the balance at the time it was resolved.
type PersonResolution struct {
	ID           int64 `json:"id"`
	PersonID     int64 `json:"person_id"`
	ResolutionID int64 `json:"resolution_id"`
	Credited     bool  `json:"credited"`

	// Resolution is loaded alongside the row by the store.
	Resolution *Resolution `json:"resolution,omitempty"`
}

// OtherPersonID returns the first other party of the resolution.
func (pr PersonResolution) OtherPersonID() (int64, bool) {
	if pr.Resolution == nil {
		return 0, false
	}
	for _, p := range pr.Resolution.Persons {
		if p.PersonID != pr.PersonID {
			return p.PersonID, true
		}
	}
	return 0, false
}

// RelativeValue is the resolved amount signed from this person's side:
// positive when they were owed, negative when they owed.
func (pr PersonResolution) RelativeValue() int64 {
	if pr.Resolution == nil {
		return 0
	}
	if pr.Credited {
		return pr.Resolution.Value
	}
	return -pr.Resolution.Value
}
