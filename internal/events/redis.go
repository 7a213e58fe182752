package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type redisClient interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Close() error
}

// Redis publishes events on a Redis pub/sub channel.
type Redis struct {
	rdb     redisClient
	channel string
	logger  *zap.Logger
}

// NewRedis connects lazily to the Redis server at addr.
func NewRedis(addr, password, channel string, logger *zap.Logger) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	return newRedis(rdb, channel, logger)
}

func newRedis(rdb redisClient, channel string, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{rdb: rdb, channel: channel, logger: logger}
}

func (p *Redis) Publish(ctx context.Context, e Event) error {
	payload, err := e.encode()
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publishing %s to redis: %w", e.Type, err)
	}
	p.logger.Debug("event published",
		zap.String("event_id", e.ID),
		zap.String("type", string(e.Type)),
		zap.String("channel", p.channel))
	return nil
}

func (p *Redis) Close() error {
	return p.rdb.Close()
}
