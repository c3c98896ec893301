package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/imranmit2020/pro-login-flow-sub000/internal/mapper"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/model"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/platform"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/store"
)

const DefaultFeedLimit = store.DefaultRecentLimit

var ErrAllSourcesFailed = errors.New("every message source failed")

type FeedParams struct {
	// Limit applies to each source before merging.
	Limit int
}

type FeedService interface {
	// Feed merges stored social history with live Gmail, newest first. A failing
	// source is reported in Errors; the call only fails when every source does.
	Feed(ctx context.Context, params FeedParams) (*model.FeedResult, error)
	Summary(ctx context.Context) ([]model.PlatformSummary, error)
}

type feedService struct {
	stores *store.Stores
	gmail  platform.GmailClient
	logger *slog.Logger
}

func NewFeedService(stores *store.Stores, gmail platform.GmailClient, logger *slog.Logger) FeedService {
	if logger == nil {
		logger = slog.Default()
	}
	return &feedService{stores: stores, gmail: gmail, logger: logger}
}

type sourceResult struct {
	platform model.Platform
	messages []model.UnifiedMessage
	err      error
}

func (s *feedService) Feed(ctx context.Context, params FeedParams) (*model.FeedResult, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = DefaultFeedLimit
	}

	sources := s.sources()
	results := make([]sourceResult, len(sources))

	// Every source settles; errors are collected per platform instead of
	// cancelling the siblings.
	var g errgroup.Group
	for i, p := range sources {
		g.Go(func() error {
			msgs, err := s.fetch(ctx, p, limit)
			results[i] = sourceResult{platform: p, messages: msgs, err: err}
			return nil
		})
	}
	_ = g.Wait()

	feed := &model.FeedResult{
		Messages:    []model.UnifiedMessage{},
		GeneratedAt: time.Now().UTC(),
	}
	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			if feed.Errors == nil {
				feed.Errors = make(map[model.Platform]string)
			}
			feed.Errors[r.platform] = r.err.Error()
			s.logger.WarnContext(ctx, "feed source failed", "platform", r.platform, "error", r.err)
			continue
		}
		feed.Messages = append(feed.Messages, r.messages...)
	}
	if failed > 0 && failed == len(results) {
		return feed, ErrAllSourcesFailed
	}

	SortNewestFirst(feed.Messages)
	feed.UnreadCounts = CountUnread(feed.Messages)
	return feed, nil
}

func (s *feedService) sources() []model.Platform {
	sources := append([]model.Platform{}, model.SocialPlatforms...)
	if s.gmail != nil {
		sources = append(sources, model.PlatformGmail)
	}
	return sources
}

func (s *feedService) fetch(ctx context.Context, p model.Platform, limit int) ([]model.UnifiedMessage, error) {
	if p == model.PlatformGmail {
		mails, err := s.gmail.ListMessages(ctx, limit)
		if err != nil {
			return nil, err
		}
		out := make([]model.UnifiedMessage, 0, len(mails))
		for _, m := range mails {
			out = append(out, mapper.GmailToUnified(m))
		}
		return out, nil
	}

	ms, err := s.stores.For(p)
	if err != nil {
		return nil, err
	}
	rows, err := ms.GetRecentMessages(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]model.UnifiedMessage, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapper.StoredToUnified(row))
	}
	return out, nil
}

// SortNewestFirst orders a merged feed by timestamp descending, ties by id.
func SortNewestFirst(msgs []model.UnifiedMessage) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].Timestamp.Equal(msgs[j].Timestamp) {
			return msgs[i].Timestamp.After(msgs[j].Timestamp)
		}
		return msgs[i].ID > msgs[j].ID
	})
}

// CountUnread derives the per-platform badges from message status.
func CountUnread(msgs []model.UnifiedMessage) model.UnreadCounts {
	var counts model.UnreadCounts
	for _, m := range msgs {
		if m.Status() != model.StatusUnread {
			continue
		}
		switch m.Platform {
		case model.PlatformFacebook:
			counts.Facebook++
		case model.PlatformInstagram:
			counts.Instagram++
		case model.PlatformGmail:
			counts.Gmail++
		}
		counts.Total++
	}
	return counts
}

func (s *feedService) Summary(ctx context.Context) ([]model.PlatformSummary, error) {
	sources := s.sources()
	summaries := make([]model.PlatformSummary, len(sources))

	var (
		mu     sync.Mutex
		failed int
	)
	var g errgroup.Group
	for i, p := range sources {
		g.Go(func() error {
			sum, err := s.summarize(ctx, p)
			sum.Platform = p
			if err != nil {
				sum.Error = err.Error()
				mu.Lock()
				failed++
				mu.Unlock()
			}
			summaries[i] = sum
			return nil
		})
	}
	_ = g.Wait()

	if failed > 0 && failed == len(sources) {
		return summaries, ErrAllSourcesFailed
	}
	return summaries, nil
}

func (s *feedService) summarize(ctx context.Context, p model.Platform) (model.PlatformSummary, error) {
	var sum model.PlatformSummary

	if p == model.PlatformGmail {
		mails, err := s.gmail.ListMessages(ctx, DefaultFeedLimit)
		if err != nil {
			return sum, err
		}
		threads := make(map[string]struct{})
		for _, m := range mails {
			threads[m.ThreadID] = struct{}{}
			if m.Unread {
				sum.Unread++
			}
		}
		sum.Conversations = len(threads)
		// Gmail carries no reply state, so unread mail is what needs an answer.
		sum.NeedsReply = sum.Unread
		return sum, nil
	}

	ms, err := s.stores.For(p)
	if err != nil {
		return sum, err
	}
	conversations, err := ms.GetConversations(ctx)
	if err != nil {
		return sum, err
	}
	identity := ms.Identity()
	sum.Conversations = len(conversations)
	for _, c := range conversations {
		sum.Unread += c.UnreadCount
		if !c.LastMessage.IsReplied && !identity.IsBusinessSender(c.LastMessage.SenderID) {
			sum.NeedsReply++
		}
	}
	return sum, nil
}
