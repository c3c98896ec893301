package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	autoReplyToggleKey = "inbox:ai:auto_reply_enabled"
	replyClaimPrefix   = "inbox:ai:claim:"
	// replyClaimTTL bounds how long a crashed attempt blocks another one.
	replyClaimTTL = 2 * time.Minute
)

// ToggleStore persists the global auto-reply switch.
type ToggleStore interface {
	Enabled(ctx context.Context) (bool, error)
	SetEnabled(ctx context.Context, enabled bool) error
}

// ReplyClaimer makes sure only one attempt at a time answers a given message.
type ReplyClaimer interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type redisToggleStore struct {
	client   *redis.Client
	fallback bool
}

// NewRedisToggleStore keeps the switch in Redis so the server and workers agree.
// An unset key reads as fallback.
func NewRedisToggleStore(client *redis.Client, fallback bool) ToggleStore {
	return &redisToggleStore{client: client, fallback: fallback}
}

func (s *redisToggleStore) Enabled(ctx context.Context) (bool, error) {
	v, err := s.client.Get(ctx, autoReplyToggleKey).Result()
	if errors.Is(err, redis.Nil) {
		return s.fallback, nil
	}
	if err != nil {
		return s.fallback, fmt.Errorf("reading auto-reply toggle: %w", err)
	}
	enabled, err := strconv.ParseBool(v)
	if err != nil {
		return s.fallback, fmt.Errorf("parsing auto-reply toggle %q: %w", v, err)
	}
	return enabled, nil
}

func (s *redisToggleStore) SetEnabled(ctx context.Context, enabled bool) error {
	if err := s.client.Set(ctx, autoReplyToggleKey, strconv.FormatBool(enabled), 0).Err(); err != nil {
		return fmt.Errorf("writing auto-reply toggle: %w", err)
	}
	return nil
}

type memoryToggleStore struct {
	mu      sync.RWMutex
	enabled bool
}

func NewMemoryToggleStore(enabled bool) ToggleStore {
	return &memoryToggleStore{enabled: enabled}
}

func (s *memoryToggleStore) Enabled(context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled, nil
}

func (s *memoryToggleStore) SetEnabled(_ context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
	return nil
}

type redisReplyClaimer struct {
	client *redis.Client
}

func NewRedisReplyClaimer(client *redis.Client) ReplyClaimer {
	return &redisReplyClaimer{client: client}
}

func (c *redisReplyClaimer) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := c.client.SetNX(ctx, replyClaimPrefix+key, time.Now().UTC().Format(time.RFC3339), replyClaimTTL).Result()
	if err != nil {
		return false, fmt.Errorf("claiming %s: %w", key, err)
	}
	return ok, nil
}

func (c *redisReplyClaimer) Release(ctx context.Context, key string) error {
	return c.client.Del(ctx, replyClaimPrefix+key).Err()
}

type memoryReplyClaimer struct {
	mu     sync.Mutex
	claims map[string]struct{}
}

func NewMemoryReplyClaimer() ReplyClaimer {
	return &memoryReplyClaimer{claims: make(map[string]struct{})}
}

func (c *memoryReplyClaimer) Claim(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, held := c.claims[key]; held {
		return false, nil
	}
	c.claims[key] = struct{}{}
	return true, nil
}

func (c *memoryReplyClaimer) Release(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.claims, key)
	return nil
}
