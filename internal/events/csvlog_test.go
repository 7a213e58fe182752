package events

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVLog_NewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "events.csv")
	log := NewCSVLog(path)

	require.NoError(t, log.Publish(context.Background(), sampleEvent()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, CSVHeader, lines[0])
	assert.Contains(t, lines[1], "transaction.confirmed")
}

func TestCSVLog_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.csv")
	log := NewCSVLog(path)
	ctx := context.Background()

	require.NoError(t, log.Publish(ctx, sampleEvent()))
	second := sampleEvent()
	second.ID = ""
	second.Type = BalanceResolved
	second.RecordID, second.TransactionID = 0, 0
	second.ResolutionID = 9
	second.Stamp(second.OccurredAt)
	require.NoError(t, log.Publish(ctx, second))

	got, err := ReadCSVLog(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, TransactionConfirmed, got[0].Type)
	assert.Equal(t, BalanceResolved, got[1].Type)
	assert.Equal(t, int64(9), got[1].ResolutionID)
	assert.Zero(t, got[1].RecordID)
}

func TestCSVLog_RoundTrip(t *testing.T) {
	e := sampleEvent()
	got, err := UnmarshalEvent(MarshalEvent(e))
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
	assert.True(t, e.OccurredAt.Equal(got.OccurredAt))
	assert.Equal(t, e.Value, got.Value)
	assert.Equal(t, e.TransactionID, got.TransactionID)
	assert.Equal(t, e.CounterpartyID, got.CounterpartyID)
}

func TestUnmarshalEvent_Invalid(t *testing.T) {
	_, err := UnmarshalEvent([]string{"a", "b"})
	assert.ErrorContains(t, err, "expected 11 fields")

	row := MarshalEvent(sampleEvent())
	row[colOccurredAt] = "yesterday"
	_, err = UnmarshalEvent(row)
	assert.ErrorContains(t, err, "occurred_at")

	row = MarshalEvent(sampleEvent())
	row[colValue] = "lots"
	_, err = UnmarshalEvent(row)
	assert.ErrorContains(t, err, "lots")
}

func TestReadCSVLog_Missing(t *testing.T) {
	got, err := ReadCSVLog(filepath.Join(t.TempDir(), "none.csv"))
	require.NoError(t, err)
	assert.Empty(t, got)
}
