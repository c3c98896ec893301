package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/imranmit2020/pro-login-flow-sub000/internal/mapper"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/model"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/platform"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/queue"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/reply"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/store"
)

type ServicesParams struct {
	Stores    *store.Stores
	Registry  *platform.Registry
	Gmail     platform.GmailClient
	Generator reply.Generator
	Toggle    ToggleStore
	Claimer   ReplyClaimer
	// Producer routes auto-reply work to the worker; nil runs it in-process.
	Producer queue.Producer
	Logger   *slog.Logger
}

// Services wires the inbox services once per process.
type Services struct {
	stores     *store.Stores
	background *Background
	autoReply  AutoReplyService
	enqueuer   Enqueuer
	feed       FeedService
	gmail      GmailService
	syncs      map[model.Platform]SyncService
	messages   map[model.Platform]MessagesService
}

func NewServices(params ServicesParams) (*Services, error) {
	log := params.Logger
	if log == nil {
		log = slog.Default()
	}
	registry := params.Registry
	if registry == nil {
		registry = platform.NewRegistry()
	}

	background := NewBackground(log)
	autoReply := NewAutoReplyService(AutoReplyParams{
		Stores:    params.Stores,
		Senders:   registry,
		Gmail:     params.Gmail,
		Generator: params.Generator,
		Toggle:    params.Toggle,
		Claimer:   params.Claimer,
		Logger:    log,
	})

	var enqueuer Enqueuer
	if params.Producer != nil {
		enqueuer = NewQueueEnqueuer(params.Producer, autoReply)
	} else {
		enqueuer = NewInlineEnqueuer(background, autoReply)
	}

	s := &Services{
		stores:     params.Stores,
		background: background,
		autoReply:  autoReply,
		enqueuer:   enqueuer,
		feed:       NewFeedService(params.Stores, params.Gmail, log),
		gmail:      NewGmailService(params.Gmail, autoReply, background, log),
		syncs:      make(map[model.Platform]SyncService),
		messages:   make(map[model.Platform]MessagesService),
	}

	for _, p := range model.SocialPlatforms {
		ms, err := params.Stores.For(p)
		if err != nil {
			return nil, err
		}
		m, err := mapper.New(p, ms.Identity())
		if err != nil {
			return nil, err
		}
		syncSvc := NewSyncService(SyncServiceParams{
			Platform: p,
			Accounts: registry.Accounts(p),
			Store:    ms,
			Mapper:   m,
			Enqueuer: enqueuer,
			Logger:   log,
		})
		s.syncs[p] = syncSvc
		s.messages[p] = NewMessagesService(ms, syncSvc, registry, background, log)
	}
	return s, nil
}

func (s *Services) Sync(p model.Platform) (SyncService, error) {
	svc, ok := s.syncs[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, p)
	}
	return svc, nil
}

func (s *Services) Messages(p model.Platform) (MessagesService, error) {
	svc, ok := s.messages[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, p)
	}
	return svc, nil
}

func (s *Services) Feed() FeedService {
	return s.feed
}

func (s *Services) Gmail() GmailService {
	return s.gmail
}

func (s *Services) AutoReply() AutoReplyService {
	return s.autoReply
}

func (s *Services) Enqueuer() Enqueuer {
	return s.enqueuer
}

func (s *Services) Background() *Background {
	return s.background
}

// StartSync starts the periodic loop for every social platform.
func (s *Services) StartSync(ctx context.Context, interval time.Duration) {
	for _, p := range model.SocialPlatforms {
		s.syncs[p].Start(ctx, interval)
	}
}

// Shutdown stops the sync loops and waits for background tasks.
func (s *Services) Shutdown(ctx context.Context) error {
	for _, p := range model.SocialPlatforms {
		s.syncs[p].Stop()
	}
	return s.background.Wait(ctx)
}
