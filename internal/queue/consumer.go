package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/imranmit2020/pro-login-flow-sub000/common/logger"
)

type ConsumerConfig struct {
	Stream       string        // Redis stream name
	Group        string        // Redis consumer group name
	Consumer     string        // Redis consumer name
	DLQStream    string        // Dead letter stream for tasks that ran out of attempts
	BatchSize    int64         // Entries read per XREADGROUP
	Block        time.Duration // How long XREADGROUP blocks when the stream is idle
	MaxAttempts  int           // Attempts before a task is dead-lettered
	RequeueDelay time.Duration // Pause before a failed task goes back on the stream
}

// Message is a Task read back from the stream.
type Message struct {
	ID             string
	TaskType       TaskType
	Platform       string
	MessageID      string
	ConversationID string
	Window         time.Duration
	Attempt        int
	TraceID        string
	Raw            redis.XMessage
}

// Task returns the task this message carries, stamped with attempt.
func (m Message) Task(attempt int) Task {
	t := Task{
		TaskType:       m.TaskType,
		Platform:       m.Platform,
		MessageID:      m.MessageID,
		ConversationID: m.ConversationID,
		Window:         m.Window,
		Attempt:        attempt,
	}
	if m.TraceID != "" {
		t.TraceID = &m.TraceID
	}
	return t
}

// MessageProcessor processes a queue message.
type MessageProcessor func(ctx context.Context, msg Message) error

type RedisConsumer struct {
	client *redis.Client
	cfg    ConsumerConfig
	now    func() time.Time
}

func NewRedisConsumer(client *redis.Client, cfg ConsumerConfig) (*RedisConsumer, error) {
	consumer := &RedisConsumer{
		client: client,
		cfg:    cfg,
		now:    time.Now,
	}

	if err := consumer.ensureGroup(context.Background()); err != nil { //nolint:contextcheck
		return nil, err
	}
	return consumer, nil
}

// ensureGroup creates the group at "0" so tasks enqueued while no worker
// was running are still delivered.
func (c *RedisConsumer) ensureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("creating consumer group: %w", err)
	}
	return nil
}

// Read returns new tasks for this consumer. Entries that cannot be parsed
// are acked and dropped so they do not block the group.
func (c *RedisConsumer) Read(ctx context.Context) ([]Message, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "inbox.queue.consumer",
	})

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		// ">" only returns entries never delivered; stale pending ones belong to the reclaimer.
		Streams: []string{c.cfg.Stream, ">"},
		Count:   c.cfg.BatchSize,
		Block:   c.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Message{}, nil
		}
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	var messages []Message
	for _, stream := range streams {
		for _, raw := range stream.Messages {
			msg, parseErr := ParseMessage(raw)
			if parseErr != nil {
				slog.ErrorContext(ctx, "dropping malformed task",
					"error", parseErr,
					"raw_message_id", raw.ID)
				_ = c.Ack(ctx, Message{ID: raw.ID, Raw: raw})
				continue
			}
			messages = append(messages, msg)
		}
	}

	if len(messages) > 0 {
		slog.DebugContext(ctx, "read tasks from stream", "count", len(messages))
	}
	return messages, nil
}

func (c *RedisConsumer) Ack(ctx context.Context, msg Message) error {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, msg.ID).Err(); err != nil {
		return fmt.Errorf("xack (stream=%s): %w", c.cfg.Stream, err)
	}
	return nil
}

// Requeue acks msg and appends it again with the next attempt number.
// The pause before re-adding is cut short when ctx ends.
func (c *RedisConsumer) Requeue(ctx context.Context, msg Message, errMsg string) error {
	attempt := max(msg.Attempt, 0) + 1

	if err := c.Ack(ctx, msg); err != nil {
		return fmt.Errorf("acking failed task for requeue: %w", err)
	}

	values := encodeTask(msg.Task(attempt))
	putString(values, fieldLastError, errMsg)

	if c.cfg.RequeueDelay > 0 {
		timer := time.NewTimer(c.cfg.RequeueDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}

	// Re-adding must outlive a cancelled worker or the task is lost after its ack.
	if err := c.client.XAdd(context.WithoutCancel(ctx), &redis.XAddArgs{
		Stream: c.cfg.Stream,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("xadd requeue: %w", err)
	}

	slog.InfoContext(ctx, "task requeued for retry",
		"next_attempt", attempt,
		"reason", errMsg)
	return nil
}

// SendDLQ acks msg and parks it on the dead letter stream with the final error.
func (c *RedisConsumer) SendDLQ(ctx context.Context, msg Message, errMsg string) error {
	if err := c.Ack(ctx, msg); err != nil {
		return fmt.Errorf("acking failed task for dlq: %w", err)
	}

	values := encodeTask(msg.Task(msg.Attempt))
	values[fieldError] = errMsg
	values[fieldFailedAt] = c.now().UTC().Format(time.RFC3339)
	putString(values, fieldSourceID, msg.ID)

	if err := c.client.XAdd(context.WithoutCancel(ctx), &redis.XAddArgs{
		Stream: c.cfg.DLQStream,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("xadd dlq (stream=%s): %w", c.cfg.DLQStream, err)
	}

	slog.ErrorContext(ctx, "task sent to DLQ",
		"final_error", errMsg,
		"dlq_stream", c.cfg.DLQStream)
	return nil
}

// ParseMessage decodes a stream entry. Entries without a task_type but with a
// message_id are treated as auto-reply tasks.
func ParseMessage(raw redis.XMessage) (Message, error) {
	r := &fieldReader{values: raw.Values}
	msg := Message{
		ID:             raw.ID,
		TaskType:       TaskType(r.text(fieldTaskType)),
		Platform:       r.text(fieldPlatform),
		MessageID:      r.text(fieldMessageID),
		ConversationID: r.text(fieldConversationID),
		TraceID:        r.text(fieldTraceID),
		Window:         r.duration(fieldWindow),
		Attempt:        r.number(fieldAttempt),
		Raw:            raw,
	}
	if r.err != nil {
		return Message{}, r.err
	}
	if msg.Attempt == 0 {
		msg.Attempt = 1
	}

	if msg.TaskType == "" {
		if msg.MessageID == "" {
			return Message{}, errors.New("missing task_type")
		}
		msg.TaskType = TaskTypeAutoReply
	}

	switch msg.TaskType {
	case TaskTypeAutoReply:
		if msg.Platform == "" || msg.MessageID == "" {
			return Message{}, errors.New("missing platform or message_id")
		}
	case TaskTypeCatchUp:
	default:
		return Message{}, fmt.Errorf("unknown task_type %q", msg.TaskType)
	}
	return msg, nil
}
