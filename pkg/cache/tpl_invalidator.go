package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultInvalidationChannel carries L1 evictions between replicas.
const DefaultInvalidationChannel = "template:l1-invalidate"

// RedisInvalidator broadcasts L1 evictions to every process subscribed to the
// same channel. Messages are "<origin>|<key>"; a process ignores its own.
type RedisInvalidator struct {
	client  *redis.Client
	channel string
	origin  string
	pubsub  *redis.PubSub
	done    chan struct{}
	once    sync.Once
}

// NewRedisInvalidator subscribes to channel and calls onEvict for every key
// published by another process. The subscription is confirmed before it
// returns, so no publish made afterwards is missed.
func NewRedisInvalidator(ctx context.Context, client *redis.Client, channel string, onEvict func(key string)) (*RedisInvalidator, error) {
	if channel == "" {
		channel = DefaultInvalidationChannel
	}

	pubsub := client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	inv := &RedisInvalidator{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		pubsub:  pubsub,
		done:    make(chan struct{}),
	}
	go inv.listen(onEvict)
	return inv, nil
}

func (i *RedisInvalidator) listen(onEvict func(key string)) {
	defer close(i.done)
	for msg := range i.pubsub.Channel() {
		origin, key, ok := strings.Cut(msg.Payload, "|")
		if !ok || origin == i.origin {
			continue
		}
		onEvict(key)
	}
}

// Publish announces that key changed.
func (i *RedisInvalidator) Publish(ctx context.Context, key string) error {
	return i.client.Publish(ctx, i.channel, i.origin+"|"+key).Err()
}

// Close unsubscribes and waits for the listener to exit.
func (i *RedisInvalidator) Close() {
	i.once.Do(func() {
		_ = i.pubsub.Close()
		<-i.done
	})
}
