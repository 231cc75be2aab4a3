package websocket

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"studycompanion-backend/internal/logger"
	"studycompanion-backend/internal/models"
	"studycompanion-backend/internal/services"
)

var _ services.Publisher = (*RedisPublisher)(nil)

// Channel is the pub/sub channel carrying userID's realtime events.
func Channel(userID string) string {
	return "user_updates:" + userID
}

// RedisPublisher publishes events on the user's channel so whichever
// instance holds the user's socket can deliver them.
type RedisPublisher struct {
	client *redis.Client
	log    *logger.Logger
}

func NewRedisPublisher(client *redis.Client, log *logger.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, log: logger.OrNop(log)}
}

// Publish is fire-and-forget; failures are logged.
func (p *RedisPublisher) Publish(ctx context.Context, userID string, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		p.log.Warn("failed to encode realtime event", "type", msg.Type, "error", err)
		return
	}
	if err := p.client.Publish(ctx, Channel(userID), data).Err(); err != nil {
		p.log.Warn("failed to publish realtime event", "user_id", userID, "type", msg.Type, "error", err)
	}
}
