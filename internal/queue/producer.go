package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

type Producer interface {
	Enqueue(ctx context.Context, task Task) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

// Enqueue appends task to the stream. A missing type defaults to auto-reply
// and a missing attempt to 1.
func (p *redisProducer) Enqueue(ctx context.Context, task Task) error {
	values := encodeTask(task)

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: values,
	}).Result()
	if err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}

	p.logger.InfoContext(ctx, "enqueued auto-reply task",
		"stream_message_id", id,
		"task_type", values[fieldTaskType],
		"platform", task.Platform,
		"message_id", task.MessageID,
		"attempt", values[fieldAttempt])
	return nil
}

// Close releases the Redis client. The producer owns it once constructed.
func (p *redisProducer) Close() error {
	return p.client.Close()
}
