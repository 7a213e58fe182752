package events

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// CSVHeader is the header row of the event log file.
const CSVHeader = "event_id,occurred_at,type,actor_id,counterparty_id,currency_id,value,record_id,transaction_id,balance_id,resolution_id"

const (
	numFields         = 11
	colEventID        = 0
	colOccurredAt     = 1
	colType           = 2
	colActorID        = 3
	colCounterpartyID = 4
	colCurrencyID     = 5
	colValue          = 6
	colRecordID       = 7
	colTransactionID  = 8
	colBalanceID      = 9
	colResolutionID   = 10
)

// CSVLog appends events to a local CSV file.
type CSVLog struct {
	mu   sync.Mutex
	path string
}

// NewCSVLog returns a publisher appending to path. The file and its
// directory are created on the first Publish.
func NewCSVLog(path string) *CSVLog {
	return &CSVLog{path: path}
}

func (l *CSVLog) Publish(_ context.Context, e Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating event log dir: %w", err)
	}
	needsHeader := false
	if _, err := os.Stat(l.path); errors.Is(err, fs.ErrNotExist) {
		needsHeader = true
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening event log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if needsHeader {
		if err := cw.Write(strings.Split(CSVHeader, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	if err := cw.Write(MarshalEvent(e)); err != nil {
		return fmt.Errorf("writing event %s: %w", e.ID, err)
	}
	cw.Flush()
	return cw.Error()
}

func (l *CSVLog) Close() error { return nil }

// MarshalEvent converts an Event to a CSV row.
func MarshalEvent(e Event) []string {
	row := make([]string, numFields)
	row[colEventID] = e.ID
	row[colOccurredAt] = e.OccurredAt.Format(time.RFC3339Nano)
	row[colType] = string(e.Type)
	row[colActorID] = formatID(e.ActorID)
	row[colCounterpartyID] = formatID(e.CounterpartyID)
	row[colCurrencyID] = formatID(e.CurrencyID)
	row[colValue] = strconv.FormatInt(e.Value, 10)
	row[colRecordID] = formatID(e.RecordID)
	row[colTransactionID] = formatID(e.TransactionID)
	row[colBalanceID] = formatID(e.BalanceID)
	row[colResolutionID] = formatID(e.ResolutionID)
	return row
}

// UnmarshalEvent converts a CSV row to an Event.
func UnmarshalEvent(record []string) (Event, error) {
	if len(record) != numFields {
		return Event{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339Nano, record[colOccurredAt])
	if err != nil {
		return Event{}, fmt.Errorf("parsing occurred_at %q: %w", record[colOccurredAt], err)
	}
	e := Event{ID: record[colEventID], Type: Type(record[colType]), OccurredAt: ts}

	ints := []struct {
		col int
		dst *int64
	}{
		{colActorID, &e.ActorID},
		{colCounterpartyID, &e.CounterpartyID},
		{colCurrencyID, &e.CurrencyID},
		{colValue, &e.Value},
		{colRecordID, &e.RecordID},
		{colTransactionID, &e.TransactionID},
		{colBalanceID, &e.BalanceID},
		{colResolutionID, &e.ResolutionID},
	}
	for _, f := range ints {
		if record[f.col] == "" {
			continue
		}
		n, err := strconv.ParseInt(record[f.col], 10, 64)
		if err != nil {
			return Event{}, fmt.Errorf("parsing column %d %q: %w", f.col, record[f.col], err)
		}
		*f.dst = n
	}
	return e, nil
}

// ReadCSVLog returns every event in the log at path. A missing file
// holds no events.
func ReadCSVLog(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	defer f.Close()

	return readEvents(f)
}

func readEvents(r io.Reader) ([]Event, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading event log CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	events := make([]Event, 0, len(records)-1)
	for i, rec := range records[1:] {
		e, err := UnmarshalEvent(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		events = append(events, e)
	}
	return events, nil
}

func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
