package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlets/openlets/internal/model"
)

func TestFindSimilar(t *testing.T) {
	const alice, bob, carol = 1, 2, 3
	txID := int64(50)
	inbound := model.TransactionRecord{
		ID: 10, CreatorID: alice, TargetID: bob, CurrencyID: 1, Value: 500,
		TransactionTime: t0,
	}
	match := model.TransactionRecord{
		ID: 20, CreatorID: bob, TargetID: alice, CurrencyID: 1, Value: 500,
		FromReceiver: true, TransactionTime: t0.Add(time.Hour),
	}

	tests := []struct {
		name   string
		mutate func(*model.TransactionRecord)
		want   bool
	}{
		{"same transfer", func(*model.TransactionRecord) {}, true},
		{"other target", func(r *model.TransactionRecord) { r.TargetID = carol }, false},
		{"other creator", func(r *model.TransactionRecord) { r.CreatorID = carol }, false},
		{"other currency", func(r *model.TransactionRecord) { r.CurrencyID = 2 }, false},
		{"other value", func(r *model.TransactionRecord) { r.Value = 501 }, false},
		{"opposite direction", func(r *model.TransactionRecord) { r.FromReceiver = false }, false},
		{"rejected", func(r *model.TransactionRecord) { r.Rejected = true }, false},
		{"confirmed", func(r *model.TransactionRecord) { r.TransactionID = &txID }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := match
			tt.mutate(&c)
			got := FindSimilar([]model.TransactionRecord{c}, inbound)
			if tt.want {
				require.NotNil(t, got)
				assert.Equal(t, c.ID, got.ID)
			} else {
				assert.Nil(t, got)
			}
		})
	}
}

func TestFindSimilar_ClosestTime(t *testing.T) {
	inbound := model.TransactionRecord{ID: 10, CreatorID: 1, TargetID: 2, CurrencyID: 1, Value: 500, TransactionTime: t0}
	far := model.TransactionRecord{ID: 20, CreatorID: 2, TargetID: 1, CurrencyID: 1, Value: 500, FromReceiver: true,
		TransactionTime: t0.Add(-48 * time.Hour)}
	near := far
	near.ID = 21
	near.TransactionTime = t0.Add(2 * time.Hour)

	got := FindSimilar([]model.TransactionRecord{far, near}, inbound)
	require.NotNil(t, got)
	assert.Equal(t, int64(21), got.ID)

	assert.Nil(t, FindSimilar(nil, inbound))
}
