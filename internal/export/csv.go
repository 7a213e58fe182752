package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"
)

// Header is the CSV header of a transfer history export.
const Header = "kind,id,time,with,currency,value,transaction_type,status,confirmed_at,notes"

const (
	numFields    = 10
	colKind      = 0
	colID        = 1
	colTime      = 2
	colWith      = 3
	colCurrency  = 4
	colValue     = 5
	colType      = 6
	colStatus    = 7
	colConfirmed = 8
	colNotes     = 9
)

// MarshalTransfer converts a Transfer to a CSV row.
func MarshalTransfer(t Transfer) []string {
	row := make([]string, numFields)
	row[colKind] = string(t.Kind)
	row[colID] = fmt.Sprint(t.ID)
	row[colTime] = t.Time.UTC().Format(time.RFC3339)
	row[colWith] = t.With
	row[colCurrency] = t.Currency
	row[colValue] = t.Value
	row[colType] = string(t.TransactionType)
	row[colStatus] = string(t.Status)
	if t.ConfirmedAt != nil {
		row[colConfirmed] = t.ConfirmedAt.UTC().Format(time.RFC3339)
	}
	row[colNotes] = t.Notes
	return row
}

// WriteCSV writes the document's transfers, header first.
func WriteCSV(w io.Writer, doc *Document) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, t := range doc.Transfers {
		if err := cw.Write(MarshalTransfer(t)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
