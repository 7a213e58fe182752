package pgstore

import (
	"fmt"
	"strings"

	"github.com/openlets/openlets/internal/store"
)

// where accumulates AND-ed conditions with numbered placeholders.
type where struct {
	conds []string
	args  []any
}

// add appends a condition; each %s in expr is replaced by the next
// placeholder, bound to the matching value of args.
func (w *where) add(expr string, args ...any) {
	ph := make([]any, len(args))
	for i, a := range args {
		w.args = append(w.args, a)
		ph[i] = fmt.Sprintf("$%d", len(w.args))
	}
	w.conds = append(w.conds, fmt.Sprintf(expr, ph...))
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

const recordColumns = `r.id, r.creator_person_id, r.target_person_id, r.currency_id, r.value,
	r.from_receiver, r.rejected, r.transaction_time, r.time_created, r.notes,
	r.transaction_id, t.time_confirmed`

const recordFrom = ` FROM transaction_records r LEFT JOIN transactions t ON t.id = r.transaction_id`

func recordQuery(f store.RecordFilter) (string, []any) {
	var w where
	if f.CreatorID != 0 {
		w.add("r.creator_person_id = %s", f.CreatorID)
	}
	if f.TargetID != 0 {
		w.add("r.target_person_id = %s", f.TargetID)
	}
	if f.CurrencyID != 0 {
		w.add("r.currency_id = %s", f.CurrencyID)
	}
	if f.TransactionID != 0 {
		w.add("r.transaction_id = %s", f.TransactionID)
	}
	if f.FromReceiver != nil {
		w.add("r.from_receiver = %s", *f.FromReceiver)
	}
	if f.Rejected != nil {
		w.add("r.rejected = %s", *f.Rejected)
	}
	if f.Confirmed != nil {
		if *f.Confirmed {
			w.add("r.transaction_id IS NOT NULL")
		} else {
			w.add("r.transaction_id IS NULL")
		}
	}
	if !f.TransactionAfter.IsZero() {
		w.add("r.transaction_time > %s", f.TransactionAfter)
	}
	if !f.ConfirmedAfter.IsZero() {
		w.add("t.time_confirmed > %s", f.ConfirmedAfter)
	}
	if !f.CreatedAfter.IsZero() {
		w.add("r.time_created >= %s", f.CreatedAfter)
	}

	sql := "SELECT " + recordColumns + recordFrom + w.String() + " ORDER BY r.transaction_time DESC, r.id DESC"
	if f.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	return sql, w.args
}

const personResolutionColumns = `pr.id, pr.person_id, pr.resolution_id, pr.credited,
	res.currency_id, res.value, res.time_confirmed`

func personResolutionQuery(f store.ResolutionFilter) (string, []any) {
	var w where
	if f.PersonID != 0 {
		w.add("pr.person_id = %s", f.PersonID)
	}
	if f.OtherPersonID != 0 {
		w.add(`EXISTS (SELECT 1 FROM person_resolutions o
			WHERE o.resolution_id = pr.resolution_id AND o.id <> pr.id AND o.person_id = %s)`, f.OtherPersonID)
	}
	if f.CurrencyID != 0 {
		w.add("res.currency_id = %s", f.CurrencyID)
	}
	if f.Credited != nil {
		w.add("pr.credited = %s", *f.Credited)
	}
	if f.Confirmed != nil {
		if *f.Confirmed {
			w.add("res.time_confirmed IS NOT NULL")
		} else {
			w.add("res.time_confirmed IS NULL")
		}
	}
	if !f.ConfirmedAfter.IsZero() {
		w.add("res.time_confirmed > %s", f.ConfirmedAfter)
	}

	sql := "SELECT " + personResolutionColumns +
		" FROM person_resolutions pr JOIN resolutions res ON res.id = pr.resolution_id" +
		w.String() + " ORDER BY res.time_confirmed DESC, pr.id DESC"
	return sql, w.args
}
