package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroker publishes changes as CloudEvents on a redis channel so every
// server instance sees them. Received events are fanned out locally.
type RedisBroker struct {
	client  *redis.Client
	channel string
	local   *MemoryBroker
	pubsub  *redis.PubSub
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  *zap.Logger
}

// NewRedisClient parses a redis:// URL and applies pool settings.
func NewRedisClient(url, password string, db, poolSize int) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	if db != 0 {
		opts.DB = db
	}
	if poolSize > 0 {
		opts.PoolSize = poolSize
	}
	return redis.NewClient(opts), nil
}

// NewRedisBroker pings redis, subscribes to channel and starts the receive loop.
func NewRedisBroker(ctx context.Context, client *redis.Client, channel string, logger *zap.Logger) (*RedisBroker, error) {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	pubsub := client.Subscribe(ctx, channel)
	// Wait for the subscription confirmation so publishes right after
	// construction are not missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	b := &RedisBroker{
		client:  client,
		channel: channel,
		local:   NewMemoryBroker(logger),
		pubsub:  pubsub,
		cancel:  cancel,
		logger:  logger.With(zap.String("component", "realtime.redis")),
	}
	b.wg.Add(1)
	go b.receive(loopCtx)
	return b, nil
}

func (b *RedisBroker) Publish(ctx context.Context, change Change) error {
	event, err := ToEvent(change)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis: %w", err)
	}
	return nil
}

func (b *RedisBroker) receive(ctx context.Context) {
	defer b.wg.Done()
	messages := b.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var event cloudevents.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warn("Discarding malformed event", zap.Error(err))
				continue
			}
			change, err := FromEvent(event)
			if err != nil {
				b.logger.Warn("Discarding unexpected event", zap.Error(err))
				continue
			}
			b.local.deliver(change)
		}
	}
}

func (b *RedisBroker) Subscribe() (<-chan Change, func()) {
	return b.local.Subscribe()
}

// Close stops the receive loop and closes subscriber channels. The redis
// client is owned by the caller.
func (b *RedisBroker) Close() error {
	b.cancel()
	err := b.pubsub.Close()
	b.wg.Wait()
	_ = b.local.Close()
	return err
}
