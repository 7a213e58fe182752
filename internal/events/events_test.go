package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openlets/openlets/internal/config"
)

func sampleEvent() Event {
	e := Event{
		Type:           TransactionConfirmed,
		RecordID:       11,
		TransactionID:  4,
		BalanceID:      2,
		ActorID:        7,
		CounterpartyID: 3,
		CurrencyID:     1,
		Value:          500,
	}
	e.Stamp(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return e
}

func TestStamp(t *testing.T) {
	e := sampleEvent()
	assert.Len(t, e.ID, 26)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), e.OccurredAt)

	before := e
	e.Stamp(time.Now())
	assert.Equal(t, before, e, "stamping twice keeps the first id and time")
}

func TestEventJSON(t *testing.T) {
	e := sampleEvent()
	payload, err := e.encode()
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, "transaction.confirmed", got["type"])
	assert.Equal(t, e.ID, got["event_id"])
	assert.EqualValues(t, 3, got["counterparty_id"])
	assert.EqualValues(t, 500, got["value"])
	assert.NotContains(t, got, "resolution_id")
}

type fakeRedis struct {
	channel  string
	messages [][]byte
	err      error
	closed   bool
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.channel = channel
	f.messages = append(f.messages, message.([]byte))
	return redis.NewIntResult(1, nil)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestRedisPublish(t *testing.T) {
	rdb := &fakeRedis{}
	p := newRedis(rdb, "ledger", zap.NewNop())

	require.NoError(t, p.Publish(context.Background(), sampleEvent()))
	assert.Equal(t, "ledger", rdb.channel)
	require.Len(t, rdb.messages, 1)

	var got Event
	require.NoError(t, json.Unmarshal(rdb.messages[0], &got))
	assert.Equal(t, sampleEvent().ID, got.ID)

	require.NoError(t, p.Close())
	assert.True(t, rdb.closed)
}

func TestRedisPublishError(t *testing.T) {
	p := newRedis(&fakeRedis{err: errors.New("connection refused")}, "ledger", zap.NewNop())
	err := p.Publish(context.Background(), sampleEvent())
	assert.ErrorContains(t, err, "publishing transaction.confirmed to redis")
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaPublish(t *testing.T) {
	w := &fakeWriter{}
	p := &Kafka{w: w, logger: zap.NewNop()}

	e := sampleEvent()
	require.NoError(t, p.Publish(context.Background(), e))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "3", string(msg.Key))
	assert.Equal(t, e.OccurredAt, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "transaction.confirmed", string(msg.Headers[0].Value))

	w.err = errors.New("leader not available")
	assert.Error(t, p.Publish(context.Background(), e))
}

func TestNew(t *testing.T) {
	p, err := New(config.EventsConfig{Driver: "none"}, nil)
	require.NoError(t, err)
	assert.IsType(t, Nop{}, p)
	assert.NoError(t, p.Publish(context.Background(), sampleEvent()))

	p, err = New(config.EventsConfig{Driver: "redis", RedisAddr: "localhost:6379", RedisChannel: "c"}, nil)
	require.NoError(t, err)
	require.IsType(t, &Breaker{}, p)
	assert.IsType(t, &Redis{}, p.(*Breaker).next)
	assert.NoError(t, p.Close())

	p, err = New(config.EventsConfig{Driver: "kafka", KafkaBrokers: []string{"localhost:9092"}, KafkaTopic: "t"}, nil)
	require.NoError(t, err)
	require.IsType(t, &Breaker{}, p)
	assert.IsType(t, &Kafka{}, p.(*Breaker).next)
	assert.NoError(t, p.Close())

	p, err = New(config.EventsConfig{Driver: "csv", LogPath: "events.csv"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &CSVLog{}, p)

	_, err = New(config.EventsConfig{Driver: "nats"}, nil)
	assert.Error(t, err)
}
