package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisClients struct {
	Queue  *redis.Client
	PubSub *redis.Client
}

// NewRedisClients opens two connections: one for the job queue and one
// dedicated to pub/sub fan-out.
func NewRedisClients(ctx context.Context, redisURL string) (*RedisClients, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	queueClient := redis.NewClient(opt)
	if err := queueClient.Ping(ctx).Err(); err != nil {
		queueClient.Close()
		return nil, fmt.Errorf("failed to ping Redis (queue): %w", err)
	}

	pubsubOpt := *opt
	pubsubClient := redis.NewClient(&pubsubOpt)
	if err := pubsubClient.Ping(ctx).Err(); err != nil {
		queueClient.Close()
		return nil, fmt.Errorf("failed to ping Redis (pubsub): %w", err)
	}

	return &RedisClients{
		Queue:  queueClient,
		PubSub: pubsubClient,
	}, nil
}

func (r *RedisClients) Close() {
	r.Queue.Close()
	r.PubSub.Close()
}

// Ping checks both connections; used by the health endpoint.
func (r *RedisClients) Ping(ctx context.Context) error {
	if err := r.Queue.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis queue: %w", err)
	}
	if err := r.PubSub.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis pubsub: %w", err)
	}
	return nil
}
