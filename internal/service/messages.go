package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/imranmit2020/pro-login-flow-sub000/common/logger"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/mapper"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/model"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/platform"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/store"
)

var ErrInvalidRequest = errors.New("invalid request")

// Source tells the UI where a listing came from.
type Source string

const (
	SourceStore Source = "store"
	SourceLive  Source = "live"
)

type ConversationList struct {
	Platform      model.Platform       `json:"platform"`
	Source        Source               `json:"source"`
	Conversations []model.Conversation `json:"conversations"`
}

type ConversationMessages struct {
	Platform       model.Platform        `json:"platform"`
	Source         Source                `json:"source"`
	ConversationID string                `json:"conversationId"`
	Messages       []model.StoredMessage `json:"messages"`
}

type SendParams struct {
	RecipientID string
	Message     string
	// ReplyToMessageID marks that stored message as answered by a human on success.
	ReplyToMessageID string
	// AccountID picks the page or account to send from; empty means the one
	// that received ReplyToMessageID, or the only configured account.
	AccountID string
}

// MessagesService is the read/write surface for one social platform. Reads
// come from the store and always kick a background sync.
type MessagesService interface {
	Platform() model.Platform
	ListConversations(ctx context.Context) (*ConversationList, error)
	ConversationMessages(ctx context.Context, conversationID string) (*ConversationMessages, error)
	Send(ctx context.Context, params SendParams) (platform.SendResult, error)
	MarkConversationRead(ctx context.Context, conversationID string) (int64, error)
	// RequestSync starts a conversation sync without waiting for it.
	RequestSync(ctx context.Context, conversationID string)
}

type messagesService struct {
	platform   model.Platform
	store      store.MessageStore
	sync       SyncService
	senders    *platform.Registry
	background *Background
	logger     *slog.Logger
}

func NewMessagesService(ms store.MessageStore, sync SyncService, senders *platform.Registry, background *Background, logger *slog.Logger) MessagesService {
	if logger == nil {
		logger = slog.Default()
	}
	return &messagesService{
		platform:   ms.Platform(),
		store:      ms,
		sync:       sync,
		senders:    senders,
		background: background,
		logger:     logger,
	}
}

func (s *messagesService) Platform() model.Platform {
	return s.platform
}

func (s *messagesService) withFields(ctx context.Context) context.Context {
	return logger.WithLogFields(ctx, logger.LogFields{
		Platform:  logger.Ptr(string(s.platform)),
		Component: "inbox.messages",
	})
}

func (s *messagesService) ListConversations(ctx context.Context) (*ConversationList, error) {
	ctx = s.withFields(ctx)
	defer s.background.FireAndForget(ctx, "sync."+string(s.platform), func(ctx context.Context) error {
		_, err := s.sync.SyncMessages(ctx)
		return err
	})

	conversations, err := s.store.GetConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading conversations: %w", err)
	}
	if len(conversations) > 0 {
		return &ConversationList{Platform: s.platform, Source: SourceStore, Conversations: conversations}, nil
	}

	live, err := s.sync.LiveConversations(ctx)
	if err != nil {
		if errors.Is(err, ErrNoSources) {
			return &ConversationList{Platform: s.platform, Source: SourceStore, Conversations: []model.Conversation{}}, nil
		}
		return nil, err
	}
	return &ConversationList{Platform: s.platform, Source: SourceLive, Conversations: live}, nil
}

func (s *messagesService) ConversationMessages(ctx context.Context, conversationID string) (*ConversationMessages, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("%w: conversationId is required", ErrInvalidRequest)
	}
	ctx = logger.WithLogFields(s.withFields(ctx), logger.LogFields{ConversationID: logger.Ptr(conversationID)})
	s.RequestSync(ctx, conversationID)

	rows, err := s.store.GetConversationMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	if len(rows) > 0 {
		return &ConversationMessages{Platform: s.platform, Source: SourceStore, ConversationID: conversationID, Messages: rows}, nil
	}

	live, err := s.sync.LiveConversationMessages(ctx, conversationID)
	if err != nil {
		if errors.Is(err, ErrNoSources) {
			live = []model.StoredMessage{}
		} else {
			return nil, err
		}
	}
	return &ConversationMessages{Platform: s.platform, Source: SourceLive, ConversationID: conversationID, Messages: live}, nil
}

func (s *messagesService) Send(ctx context.Context, params SendParams) (platform.SendResult, error) {
	ctx = s.withFields(ctx)
	params.RecipientID = strings.TrimSpace(params.RecipientID)
	if params.RecipientID == "" {
		return platform.SendResult{}, fmt.Errorf("%w: recipientId is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(params.Message) == "" {
		return platform.SendResult{}, fmt.Errorf("%w: message is required", ErrInvalidRequest)
	}

	accountID := params.AccountID
	if accountID == "" && params.ReplyToMessageID != "" {
		if row, err := s.store.GetMessage(ctx, params.ReplyToMessageID); err == nil {
			accountID = row.RecipientID
		}
	}

	sender, err := s.senders.Sender(s.platform, accountID)
	if err != nil {
		return platform.SendResult{}, err
	}
	result, err := sender.SendMessage(ctx, params.RecipientID, params.Message)
	if err != nil {
		s.logger.ErrorContext(ctx, "sending message failed", "recipient_id", params.RecipientID, "error", err)
		return platform.SendResult{Success: false, Error: err.Error()}, err
	}

	if result.Success && params.ReplyToMessageID != "" {
		err := s.store.MarkMessageAsReplied(ctx, params.ReplyToMessageID, model.RepliedByHuman, result.MessageID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			s.logger.WarnContext(ctx, "replied message not stored yet", "message_id", params.ReplyToMessageID)
		case err != nil:
			s.logger.ErrorContext(ctx, "marking message replied failed", "message_id", params.ReplyToMessageID, "error", err)
		}
	}
	return result, nil
}

func (s *messagesService) MarkConversationRead(ctx context.Context, conversationID string) (int64, error) {
	if conversationID == "" {
		return 0, fmt.Errorf("%w: conversationId is required", ErrInvalidRequest)
	}
	n, err := s.store.MarkConversationRead(s.withFields(ctx), conversationID)
	if err != nil {
		return 0, fmt.Errorf("marking conversation read: %w", err)
	}
	return n, nil
}

func (s *messagesService) RequestSync(ctx context.Context, conversationID string) {
	s.background.FireAndForget(ctx, "sync_conversation."+string(s.platform), func(ctx context.Context) error {
		_, err := s.sync.SyncConversation(ctx, conversationID)
		return err
	})
}

// GmailService exposes live Gmail. Nothing is persisted.
type GmailService interface {
	List(ctx context.Context, limit int) ([]model.UnifiedMessage, error)
	Reply(ctx context.Context, params platform.GmailReplyParams) (string, error)
	MarkRead(ctx context.Context, messageID string) error
}

type gmailService struct {
	client     platform.GmailClient
	autoReply  AutoReplyService
	background *Background
	logger     *slog.Logger
}

func NewGmailService(client platform.GmailClient, autoReply AutoReplyService, background *Background, logger *slog.Logger) GmailService {
	if logger == nil {
		logger = slog.Default()
	}
	return &gmailService{client: client, autoReply: autoReply, background: background, logger: logger}
}

func (s *gmailService) List(ctx context.Context, limit int) ([]model.UnifiedMessage, error) {
	if s.client == nil {
		return nil, fmt.Errorf("gmail: %w", platform.ErrNoClient)
	}
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	mails, err := s.client.ListMessages(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]model.UnifiedMessage, 0, len(mails))
	for _, m := range mails {
		out = append(out, mapper.GmailToUnified(m))
	}
	SortNewestFirst(out)
	s.replyToFresh(ctx, out)
	return out, nil
}

// replyToFresh hands recent unread mail to the auto-reply policy in the background.
func (s *gmailService) replyToFresh(ctx context.Context, msgs []model.UnifiedMessage) {
	if s.autoReply == nil || !s.autoReply.Enabled(ctx) {
		return
	}
	var fresh []model.UnifiedMessage
	for _, m := range msgs {
		if !m.IsRead {
			fresh = append(fresh, m)
		}
	}
	if len(fresh) == 0 {
		return
	}
	s.background.FireAndForget(ctx, "autoreply.gmail", func(ctx context.Context) error {
		var errs []error
		for _, m := range fresh {
			if _, err := s.autoReply.Process(ctx, m, ReactiveWindow); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

func (s *gmailService) Reply(ctx context.Context, params platform.GmailReplyParams) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("gmail: %w", platform.ErrNoClient)
	}
	if params.ThreadID == "" || params.To == "" {
		return "", fmt.Errorf("%w: threadId and to are required", ErrInvalidRequest)
	}
	if strings.TrimSpace(params.Body) == "" {
		return "", fmt.Errorf("%w: body is required", ErrInvalidRequest)
	}
	if strings.ContainsAny(params.To+params.Subject, "\r\n") {
		return "", fmt.Errorf("%w: to and subject must be a single line", ErrInvalidRequest)
	}
	return s.client.ReplyToThread(ctx, params)
}

func (s *gmailService) MarkRead(ctx context.Context, messageID string) error {
	if s.client == nil {
		return fmt.Errorf("gmail: %w", platform.ErrNoClient)
	}
	if messageID == "" {
		return fmt.Errorf("%w: messageId is required", ErrInvalidRequest)
	}
	return s.client.MarkRead(ctx, mapper.GmailMessageID(messageID))
}
