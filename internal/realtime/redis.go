package realtime

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"example.com/resto/services/kitchen/internal/cache"
)

// RedisSubscriber delivers order change notifications from the redis
// pub/sub channel to the kitchen store. One subscription per store
// instance; the store guarantees it never opens a second one.
type RedisSubscriber struct {
	redis   *cache.RedisClient
	channel string
}

// NewRedisSubscriber creates a subscriber on the configured channel.
func NewRedisSubscriber(redis *cache.RedisClient, channel string) *RedisSubscriber {
	return &RedisSubscriber{redis: redis, channel: channel}
}

// Subscribe opens the pub/sub channel and invokes onChange for every
// message until the returned cancel function is called or the context
// ends.
func (s *RedisSubscriber) Subscribe(ctx context.Context, onChange func()) (func(), error) {
	pubsub, err := s.redis.Subscribe(ctx, s.channel)
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					log.Warn().Str("channel", s.channel).Msg("Order change channel closed")
					return
				}
				log.Debug().Str("payload", msg.Payload).Msg("Order change event received")
				onChange()
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			if err := pubsub.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close pub/sub subscription")
			}
		})
	}

	return cancel, nil
}

// RedisNotifier publishes order change notifications. The worker calls
// it after every ingested change so running boards refresh.
type RedisNotifier struct {
	redis   *cache.RedisClient
	channel string
}

// NewRedisNotifier creates a notifier on the configured channel.
func NewRedisNotifier(redis *cache.RedisClient, channel string) *RedisNotifier {
	return &RedisNotifier{redis: redis, channel: channel}
}

// NotifyChange publishes a change event naming the affected order.
func (n *RedisNotifier) NotifyChange(ctx context.Context, orderID string) error {
	return n.redis.Publish(ctx, n.channel, orderID)
}
