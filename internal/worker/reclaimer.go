package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/imranmit2020/pro-login-flow-sub000/common/logger"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/queue"
)

type RedisReclaimerConfig struct {
	Stream    string
	Group     string
	Consumer  string
	MinIdle   time.Duration
	Interval  time.Duration
	BatchSize int64
	// MaxDeliveries dead-letters a task that keeps failing after reclaim. Zero disables the cap.
	MaxDeliveries int64
}

// RedisReclaimer picks up auto-reply tasks left pending by a worker that died
// between XREADGROUP and XACK. Re-running a task is safe: the auto-reply
// policy re-reads the message and skips it once it is answered.
type RedisReclaimer struct {
	client    *redis.Client
	cfg       RedisReclaimerConfig
	consumer  *queue.RedisConsumer
	processor queue.MessageProcessor

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewRedisReclaimer(client *redis.Client, cfg RedisReclaimerConfig, consumer *queue.RedisConsumer, processor queue.MessageProcessor) *RedisReclaimer {
	return &RedisReclaimer{
		client:    client,
		cfg:       cfg,
		consumer:  consumer,
		processor: processor,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run blocks until Stop is called or ctx ends.
func (r *RedisReclaimer) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "inbox.worker.reclaimer",
	})
	defer close(r.stoppedCh)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "reclaimer started",
		"interval", r.cfg.Interval,
		"min_idle", r.cfg.MinIdle,
		"max_deliveries", r.cfg.MaxDeliveries)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			slog.InfoContext(ctx, "reclaimer stopping")
			return
		case <-ticker.C:
			if err := r.reclaimOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "reclaim cycle error", "error", err)
			}
		}
	}
}

func (r *RedisReclaimer) Stop() {
	close(r.stopCh)
	<-r.stoppedCh
}

// partitionPending splits stale entries into those worth another attempt and
// those that already exhausted maxDeliveries.
func partitionPending(pending []redis.XPendingExt, maxDeliveries int64) (retry, exhausted []string) {
	for _, p := range pending {
		if maxDeliveries > 0 && p.RetryCount >= maxDeliveries {
			exhausted = append(exhausted, p.ID)
			continue
		}
		retry = append(retry, p.ID)
	}
	return retry, exhausted
}

func (r *RedisReclaimer) reclaimOnce(ctx context.Context) error {
	pending, err := r.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: r.cfg.Stream,
		Group:  r.cfg.Group,
		Idle:   r.cfg.MinIdle,
		Start:  "-",
		End:    "+",
		Count:  r.cfg.BatchSize,
	}).Result()
	if err != nil {
		return fmt.Errorf("xpending: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	retry, exhausted := partitionPending(pending, r.cfg.MaxDeliveries)
	slog.InfoContext(ctx, "found stale auto-reply tasks",
		"retry", len(retry),
		"exhausted", len(exhausted))

	if err := r.claimEach(ctx, exhausted, r.deadLetter); err != nil {
		return err
	}
	return r.claimEach(ctx, retry, r.retry)
}

// claimEach claims ids in one XCLAIM and hands every entry that this consumer
// won to handle. Entries another reclaimer took first are absent from the reply.
func (r *RedisReclaimer) claimEach(ctx context.Context, ids []string, handle func(context.Context, queue.Message) error) error {
	if len(ids) == 0 {
		return nil
	}

	claimed, err := r.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   r.cfg.Stream,
		Group:    r.cfg.Group,
		Consumer: r.cfg.Consumer,
		MinIdle:  r.cfg.MinIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return fmt.Errorf("xclaim: %w", err)
	}

	for _, raw := range claimed {
		streamID := raw.ID
		msgCtx := logger.WithLogFields(ctx, logger.LogFields{StreamMessageID: &streamID})

		msg, err := queue.ParseMessage(raw)
		if err != nil {
			slog.ErrorContext(msgCtx, "unparseable reclaimed task, acknowledging", "error", err)
			_ = r.consumer.Ack(msgCtx, queue.Message{ID: raw.ID, Raw: raw})
			continue
		}
		msgCtx = logger.WithLogFields(msgCtx, logger.LogFields{
			Platform:  &msg.Platform,
			MessageID: &msg.MessageID,
		})

		if err := handle(msgCtx, msg); err != nil {
			slog.ErrorContext(msgCtx, "reclaimed task failed", "error", err)
		}
	}
	return nil
}

func (r *RedisReclaimer) deadLetter(ctx context.Context, msg queue.Message) error {
	slog.ErrorContext(ctx, "auto-reply task keeps failing, sending to DLQ")
	return r.consumer.SendDLQ(ctx, msg, fmt.Sprintf("reclaimed more than %d times", r.cfg.MaxDeliveries))
}

func (r *RedisReclaimer) retry(ctx context.Context, msg queue.Message) error {
	start := time.Now()
	if err := r.processor(ctx, msg); err != nil {
		return fmt.Errorf("processing reclaimed task: %w", err)
	}
	slog.InfoContext(ctx, "reclaimed task processed",
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}
