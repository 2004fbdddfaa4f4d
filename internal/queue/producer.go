package queue

import (
	"context"

	"github.com/redis/go-redis/v9"

	"gradportrait/internal/tasks"
)

// Producer appends tasks to the worker stream.
type Producer struct {
	client *redis.Client
	stream string
}

func NewProducer(client *redis.Client, stream string) *Producer {
	return &Producer{client: client, stream: stream}
}

func (p *Producer) Publish(ctx context.Context, payload tasks.TaskPayload) error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: payload.Values(),
	}).Err()
}

func (p *Producer) PublishMirror(ctx context.Context, userID, key string) error {
	return p.Publish(ctx, tasks.TaskPayload{
		Type:   tasks.TypeMirrorPortrait,
		UserID: userID,
		Key:    key,
	})
}
