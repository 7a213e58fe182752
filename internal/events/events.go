// Package events publishes ledger workflow events after their changes
// have been committed.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/openlets/openlets/internal/config"
	"github.com/openlets/openlets/internal/id"
)

// Type names a workflow event.
type Type string

const (
	TransactionProposed  Type = "transaction.proposed"
	TransactionConfirmed Type = "transaction.confirmed"
	TransactionRejected  Type = "transaction.rejected"
	BalanceResolved      Type = "balance.resolved"
)

// Event is the JSON payload published for every workflow change.
type Event struct {
	ID             string    `json:"event_id"`
	Type           Type      `json:"type"`
	RecordID       int64     `json:"record_id,omitempty"`
	TransactionID  int64     `json:"transaction_id,omitempty"`
	BalanceID      int64     `json:"balance_id,omitempty"`
	ResolutionID   int64     `json:"resolution_id,omitempty"`
	ActorID        int64     `json:"actor_id"`
	CounterpartyID int64     `json:"counterparty_id"`
	CurrencyID     int64     `json:"currency_id"`
	Value          int64     `json:"value"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Stamp fills in the event id and time when unset.
func (e *Event) Stamp(now time.Time) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = now.UTC()
	}
	if e.ID == "" {
		e.ID = id.New(e.OccurredAt)
	}
}

// Key is the partition key: the counterparty, so that all events a person
// receives keep their order.
func (e Event) Key() string {
	return strconv.FormatInt(e.CounterpartyID, 10)
}

func (e Event) encode() ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshaling event: %w", err)
	}
	return payload, nil
}

// Publisher delivers events to subscribers outside the process.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// New builds the publisher selected by cfg.Driver.
func New(cfg config.EventsConfig, logger *zap.Logger) (Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	breaker := BreakerOptions{Failures: cfg.BreakerFailures, Cooldown: cfg.BreakerCooldown}
	switch cfg.Driver {
	case "", "none":
		return Nop{}, nil
	case "redis":
		return NewBreaker("redis", NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisChannel, logger), breaker, logger), nil
	case "kafka":
		return NewBreaker("kafka", NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, logger), breaker, logger), nil
	case "csv":
		return NewCSVLog(cfg.LogPath), nil
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
}
