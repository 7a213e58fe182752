package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordStatus(t *testing.T) {
	txID := int64(9)
	tests := []struct {
		name string
		rec  TransactionRecord
		want RecordStatus
	}{
		{"pending", TransactionRecord{}, StatusPending},
		{"confirmed", TransactionRecord{TransactionID: &txID}, StatusConfirmed},
		{"rejected", TransactionRecord{Rejected: true}, StatusRejected},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.rec.Status(), tt.name)
	}
}

func TestProviderReceiver(t *testing.T) {
	rec := TransactionRecord{CreatorID: 1, TargetID: 2}
	assert.Equal(t, int64(1), rec.Provider())
	assert.Equal(t, int64(2), rec.Receiver())
	assert.Equal(t, TypePayment, rec.TransactionType())
	assert.Equal(t, TypeCharge, rec.TargetTransactionType())

	rec.FromReceiver = true
	assert.Equal(t, int64(2), rec.Provider())
	assert.Equal(t, int64(1), rec.Receiver())
	assert.Equal(t, TypeCharge, rec.TransactionType())
}

func TestMirror(t *testing.T) {
	rec := TransactionRecord{ID: 5, CreatorID: 1, TargetID: 2, CurrencyID: 3, Value: 500, Notes: "lunch"}
	m := rec.Mirror()

	assert.Zero(t, m.ID)
	assert.Equal(t, int64(2), m.CreatorID)
	assert.Equal(t, int64(1), m.TargetID)
	assert.True(t, m.FromReceiver)
	assert.Equal(t, rec.Value, m.Value)
	assert.Equal(t, rec.Notes, m.Notes)
	// Both sides agree on who pays.
	assert.Equal(t, rec.Provider(), m.Provider())
	assert.Equal(t, rec.Receiver(), m.Receiver())
}

func TestPairKey(t *testing.T) {
	assert.Equal(t, "3:7", PairKey(7, 3))
	assert.Equal(t, PairKey(3, 7), PairKey(7, 3))
}

func TestBalanceParties(t *testing.T) {
	b := Balance{Persons: []PersonBalance{
		{PersonID: 1, Credited: false},
		{PersonID: 2, Credited: true},
	}}
	debtor, ok := b.Debtor()
	assert.True(t, ok)
	assert.Equal(t, int64(1), debtor)

	other, ok := b.Other(1)
	assert.True(t, ok)
	assert.Equal(t, int64(2), other)

	_, ok = b.Party(3)
	assert.False(t, ok)
}

func TestRelativeValue(t *testing.T) {
	res := &Resolution{Value: 250, Persons: []PersonResolution{{PersonID: 1}, {PersonID: 2, Credited: true}}}
	owed := PersonResolution{PersonID: 2, Credited: true, Resolution: res}
	owing := PersonResolution{PersonID: 1, Resolution: res}

	assert.Equal(t, int64(250), owed.RelativeValue())
	assert.Equal(t, int64(-250), owing.RelativeValue())

	other, ok := owing.OtherPersonID()
	assert.True(t, ok)
	assert.Equal(t, int64(2), other)
}
