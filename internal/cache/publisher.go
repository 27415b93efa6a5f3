package cache

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"adaptive-backend/internal/models"
)

// UpdatesChannel is the pub/sub channel carrying one student's live updates.
func UpdatesChannel(studentID string) string {
	return "user_updates:" + studentID
}

// Publisher pushes live updates to a student's open websocket connections.
type Publisher interface {
	Publish(ctx context.Context, studentID string, msg models.WSMessage) error
}

// RedisPublisher fans updates out through Redis so every server instance can deliver them.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, studentID string, msg models.WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, UpdatesChannel(studentID), string(data)).Err()
}
