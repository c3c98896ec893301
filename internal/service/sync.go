package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/imranmit2020/pro-login-flow-sub000/common/id"
	"github.com/imranmit2020/pro-login-flow-sub000/common/logger"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/mapper"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/model"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/platform"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/store"
)

const (
	// ConversationPageSize is how many conversations a periodic pass pulls per account.
	ConversationPageSize = 25
	// MessagePageSize is how many messages a periodic pass pulls per conversation.
	MessagePageSize = 50
	// ConversationSyncPageSize is the deeper pull for an explicit single-conversation sync.
	ConversationSyncPageSize = 100

	DefaultSyncInterval = 30 * time.Second
)

var ErrNoSources = errors.New("no accounts configured")

// SyncResult summarizes one pass over a platform.
type SyncResult struct {
	RunID         int64             `json:"runId,string"`
	Platform      model.Platform    `json:"platform"`
	Accounts      int               `json:"accounts"`
	Conversations int               `json:"conversations"`
	Stored        int               `json:"stored"`
	Inserted      int               `json:"inserted"`
	Skipped       int               `json:"skipped"`
	Failed        int               `json:"failed"`
	Errors        map[string]string `json:"errors,omitempty"`
	StartedAt     time.Time         `json:"startedAt"`
	FinishedAt    time.Time         `json:"finishedAt"`
}

func (r *SyncResult) fail(key string, err error) {
	if r.Errors == nil {
		r.Errors = make(map[string]string)
	}
	r.Errors[key] = err.Error()
}

// SyncStatus is the observable state of the periodic loop.
type SyncStatus struct {
	Platform     model.Platform `json:"platform"`
	Running      bool           `json:"running"`
	Interval     string         `json:"interval,omitempty"`
	Passes       int            `json:"passes"`
	LastStarted  *time.Time     `json:"lastStarted,omitempty"`
	LastFinished *time.Time     `json:"lastFinished,omitempty"`
	LastResult   *SyncResult    `json:"lastResult,omitempty"`
	LastError    string         `json:"lastError,omitempty"`
}

// AutoReplyEnqueuer receives customer messages that were stored for the first time.
type AutoReplyEnqueuer interface {
	EnqueueAutoReply(ctx context.Context, msg model.StoredMessage) error
}

// SyncService pulls one social platform into its store, on demand or periodically.
type SyncService interface {
	Platform() model.Platform
	// SyncMessages runs one pass over every account. A failing account or
	// conversation is recorded in the result and does not stop the pass.
	SyncMessages(ctx context.Context) (*SyncResult, error)
	SyncConversation(ctx context.Context, conversationID string) (*SyncResult, error)
	// LiveConversations fetches and aggregates without touching the store.
	LiveConversations(ctx context.Context) ([]model.Conversation, error)
	LiveConversationMessages(ctx context.Context, conversationID string) ([]model.StoredMessage, error)

	// Start launches the periodic loop. It reports false when already running.
	Start(ctx context.Context, interval time.Duration) bool
	// Stop ends the loop and waits for an in-flight pass to return.
	Stop()
	Running() bool
	Status() SyncStatus
}

type SyncServiceParams struct {
	Platform model.Platform
	Accounts []platform.Account
	Store    store.MessageStore
	Mapper   mapper.SocialMapper
	Enqueuer AutoReplyEnqueuer
	Logger   *slog.Logger
}

type syncService struct {
	platform model.Platform
	accounts []platform.Account
	store    store.MessageStore
	mapper   mapper.SocialMapper
	enqueuer AutoReplyEnqueuer
	logger   *slog.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	interval time.Duration
	status   SyncStatus
}

func NewSyncService(params SyncServiceParams) SyncService {
	log := params.Logger
	if log == nil {
		log = slog.Default()
	}
	return &syncService{
		platform: params.Platform,
		accounts: params.Accounts,
		store:    params.Store,
		mapper:   params.Mapper,
		enqueuer: params.Enqueuer,
		logger:   log.With("component", "inbox.sync", "platform", string(params.Platform)),
		status:   SyncStatus{Platform: params.Platform},
	}
}

func (s *syncService) Platform() model.Platform {
	return s.platform
}

func (s *syncService) SyncMessages(ctx context.Context) (*SyncResult, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Platform:  logger.Ptr(string(s.platform)),
		Component: "inbox.sync",
	})
	result := &SyncResult{RunID: id.New(), Platform: s.platform, StartedAt: time.Now().UTC()}
	sc := logger.StartSpan(ctx, "sync.pass",
		trace.WithAttributes(attribute.Int64("sync_run_id", result.RunID)))
	defer sc.End()
	ctx = sc.Context()

	if len(s.accounts) == 0 {
		return result, ErrNoSources
	}

	for _, account := range s.accounts {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		s.syncAccount(ctx, account, result)
	}

	result.FinishedAt = time.Now().UTC()
	sc.SetAttributes(
		attribute.Int("accounts", result.Accounts),
		attribute.Int("stored", result.Stored),
		attribute.Int("inserted", result.Inserted),
	)
	syncPassDuration.WithLabelValues(string(s.platform)).Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())

	if result.Accounts == 0 {
		err := fmt.Errorf("all %d %s accounts failed", len(s.accounts), s.platform)
		sc.RecordError(err)
		syncPassesTotal.WithLabelValues(string(s.platform), "failed").Inc()
		return result, err
	}

	outcome := "ok"
	if result.Failed > 0 || len(result.Errors) > 0 {
		outcome = "partial"
	}
	syncPassesTotal.WithLabelValues(string(s.platform), outcome).Inc()

	s.logger.InfoContext(ctx, "sync pass finished",
		"sync_run_id", result.RunID,
		"accounts", result.Accounts,
		"conversations", result.Conversations,
		"stored", result.Stored,
		"inserted", result.Inserted,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds())
	return result, nil
}

func (s *syncService) syncAccount(ctx context.Context, account platform.Account, result *SyncResult) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{PageID: logger.Ptr(account.ID)})

	conversations, err := account.Client.ListConversations(ctx, ConversationPageSize)
	if err != nil {
		s.logger.ErrorContext(ctx, "listing conversations failed", "account", account.Name, "error", err)
		result.fail(account.ID, err)
		return
	}
	result.Accounts++

	for _, conv := range conversations {
		if ctx.Err() != nil {
			return
		}
		result.Conversations++
		if err := s.syncOne(ctx, account, conv.ID, MessagePageSize, result); err != nil {
			result.Failed++
			result.fail(conv.ID, err)
		}
	}
}

// syncOne stores one conversation. Mapping failures skip the message; fetch
// and store failures fail the conversation.
func (s *syncService) syncOne(ctx context.Context, account platform.Account, conversationID string, limit int, result *SyncResult) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{ConversationID: logger.Ptr(conversationID)})

	rows, skipped, err := s.collect(ctx, account, conversationID, limit)
	result.Skipped += skipped
	if skipped > 0 {
		syncMessagesSkipped.WithLabelValues(string(s.platform)).Add(float64(skipped))
	}
	if err != nil {
		s.logger.WarnContext(ctx, "fetching conversation messages failed", "error", err)
		return err
	}

	batch, err := s.store.StoreMessages(ctx, rows)
	result.Stored += batch.Stored
	result.Inserted += len(batch.Inserted)
	syncMessagesStored.WithLabelValues(string(s.platform)).Add(float64(batch.Stored))
	s.enqueueNew(ctx, batch.Inserted)
	if err != nil {
		s.logger.ErrorContext(ctx, "storing conversation failed", "stored", batch.Stored, "error", err)
		return err
	}
	return nil
}

func (s *syncService) collect(ctx context.Context, account platform.Account, conversationID string, limit int) ([]model.StoredMessage, int, error) {
	msgs, err := account.Client.ListMessages(ctx, conversationID, limit)
	if err != nil {
		return nil, 0, err
	}

	rows := make([]model.StoredMessage, 0, len(msgs))
	skipped := 0
	for _, msg := range msgs {
		row, err := s.mapper.ToStored(msg, conversationID)
		if err != nil {
			skipped++
			s.logger.WarnContext(ctx, "skipping message", "message_id", msg.ID, "error", err)
			continue
		}
		rows = append(rows, *row)
	}
	return rows, skipped, nil
}

func (s *syncService) enqueueNew(ctx context.Context, inserted []model.StoredMessage) {
	if s.enqueuer == nil {
		return
	}
	identity := s.store.Identity()
	for _, row := range inserted {
		if row.IsReplied || identity.IsBusinessSender(row.SenderID) {
			continue
		}
		if err := s.enqueuer.EnqueueAutoReply(ctx, row); err != nil {
			s.logger.WarnContext(ctx, "enqueueing auto-reply failed", "message_id", row.MessageID, "error", err)
		}
	}
}

// SyncConversation tries each account until one owns the conversation.
func (s *syncService) SyncConversation(ctx context.Context, conversationID string) (*SyncResult, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Platform:       logger.Ptr(string(s.platform)),
		ConversationID: logger.Ptr(conversationID),
		Component:      "inbox.sync",
	})

	result := &SyncResult{RunID: id.New(), Platform: s.platform, StartedAt: time.Now().UTC(), Conversations: 1}
	if len(s.accounts) == 0 {
		return result, ErrNoSources
	}

	var lastErr error
	for _, account := range s.accounts {
		if err := s.syncOne(ctx, account, conversationID, ConversationSyncPageSize, result); err != nil {
			lastErr = err
			continue
		}
		result.Accounts = 1
		result.FinishedAt = time.Now().UTC()
		return result, nil
	}

	result.Failed = 1
	result.FinishedAt = time.Now().UTC()
	return result, fmt.Errorf("syncing conversation %s: %w", conversationID, lastErr)
}

func (s *syncService) LiveConversations(ctx context.Context) ([]model.Conversation, error) {
	if len(s.accounts) == 0 {
		return nil, ErrNoSources
	}

	var (
		rows    []model.StoredMessage
		lastErr error
		ok      bool
	)
	for _, account := range s.accounts {
		conversations, err := account.Client.ListConversations(ctx, ConversationPageSize)
		if err != nil {
			lastErr = err
			s.logger.WarnContext(ctx, "live conversation listing failed", "account", account.Name, "error", err)
			continue
		}
		ok = true
		for _, conv := range conversations {
			convRows, _, err := s.collect(ctx, account, conv.ID, MessagePageSize)
			if err != nil {
				s.logger.WarnContext(ctx, "live message fetch failed", "conversation_id", conv.ID, "error", err)
				continue
			}
			rows = append(rows, convRows...)
		}
	}
	if !ok {
		return nil, lastErr
	}
	return store.AggregateConversations(rows, s.store.Identity()), nil
}

func (s *syncService) LiveConversationMessages(ctx context.Context, conversationID string) ([]model.StoredMessage, error) {
	if len(s.accounts) == 0 {
		return nil, ErrNoSources
	}

	var lastErr error
	for _, account := range s.accounts {
		rows, _, err := s.collect(ctx, account, conversationID, ConversationSyncPageSize)
		if err != nil {
			lastErr = err
			continue
		}
		conv := store.AggregateConversations(rows, s.store.Identity())
		if len(conv) == 0 {
			return []model.StoredMessage{}, nil
		}
		return conv[0].Messages, nil
	}
	return nil, lastErr
}

func (s *syncService) Start(ctx context.Context, interval time.Duration) bool {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		s.logger.InfoContext(ctx, "sync loop already running")
		return false
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done, s.interval = cancel, done, interval
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "sync loop started", "interval", interval.String())
	go s.loop(runCtx, interval, done)
	return true
}

func (s *syncService) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer func() {
		s.mu.Lock()
		if s.done == done {
			s.cancel, s.done = nil, nil
		}
		s.mu.Unlock()
		close(done)
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.runPass(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runPass(ctx)
		}
	}
}

func (s *syncService) runPass(ctx context.Context) {
	started := time.Now().UTC()
	s.mu.Lock()
	s.status.LastStarted = &started
	s.mu.Unlock()

	result, err := s.safeSync(ctx)

	finished := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Passes++
	s.status.LastFinished = &finished
	s.status.LastResult = result
	s.status.LastError = ""
	if err != nil && ctx.Err() == nil {
		s.status.LastError = err.Error()
		s.logger.ErrorContext(ctx, "sync pass failed", "error", err)
	}
}

func (s *syncService) safeSync(ctx context.Context) (result *SyncResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sync pass panicked: %v", r)
		}
	}()
	return s.SyncMessages(ctx)
}

func (s *syncService) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("sync loop stopped")
}

func (s *syncService) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *syncService) Status() SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	st.Running = s.cancel != nil
	if st.Running {
		st.Interval = s.interval.String()
	}
	return st
}
