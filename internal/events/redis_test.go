package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedis_DeliversToSubscribers(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	sub := rdb.Subscribe(ctx, "openlets.events")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	p := NewRedis(mr.Addr(), "", "openlets.events", nil)
	defer p.Close()
	e := sampleEvent()
	require.NoError(t, p.Publish(ctx, e))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "openlets.events", msg.Channel)

	var got Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, TransactionConfirmed, got.Type)
	assert.Equal(t, int64(500), got.Value)
}

func TestRedis_ServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	p := NewRedis(mr.Addr(), "", "openlets.events", nil)
	defer p.Close()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := p.Publish(ctx, sampleEvent())
	assert.ErrorContains(t, err, "publishing transaction.confirmed to redis")
}
