package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/imranmit2020/pro-login-flow-sub000/internal/model"
)

// memoryMessageStore keeps rows in process. It follows the same upsert rules
// as the Postgres store and backs tests and DATABASE_URL=memory://.
type memoryMessageStore struct {
	mu       sync.RWMutex
	platform model.Platform
	identity model.BusinessIdentity
	rows     map[string]*model.StoredMessage
	nextID   int64
	now      func() time.Time
}

func newMemoryMessageStore(p model.Platform, identity model.BusinessIdentity) *memoryMessageStore {
	return &memoryMessageStore{
		platform: p,
		identity: identity,
		rows:     make(map[string]*model.StoredMessage),
		now:      time.Now,
	}
}

// NewMemoryMessageStore returns an in-process store for one platform.
func NewMemoryMessageStore(p model.Platform, identity model.BusinessIdentity) MessageStore {
	return newMemoryMessageStore(p, identity)
}

func (s *memoryMessageStore) Platform() model.Platform {
	return s.platform
}

func (s *memoryMessageStore) Identity() model.BusinessIdentity {
	return s.identity
}

func (s *memoryMessageStore) StoreMessage(ctx context.Context, msg *model.StoredMessage) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	incoming := cloneMessage(*msg)
	incoming.Platform = s.platform
	incoming.Attachments = nonNilAttachments(incoming.Attachments)

	existing, ok := s.rows[msg.MessageID]
	if !ok {
		s.nextID++
		incoming.ID = s.nextID
		incoming.CreatedAt = now
		incoming.UpdatedAt = now
		s.rows[msg.MessageID] = &incoming
		return true, nil
	}

	incoming.ID = existing.ID
	incoming.CreatedAt = existing.CreatedAt
	incoming.UpdatedAt = now
	if existing.IsReplied {
		incoming.IsReplied = true
		incoming.RepliedBy = existing.RepliedBy
		incoming.ReplyMessageID = existing.ReplyMessageID
	}
	incoming.IsRead = existing.IsRead || incoming.IsRead
	s.rows[msg.MessageID] = &incoming
	return false, nil
}

func (s *memoryMessageStore) StoreMessages(ctx context.Context, msgs []model.StoredMessage) (BatchResult, error) {
	return storeEach(ctx, s, msgs)
}

func (s *memoryMessageStore) MarkMessageAsReplied(ctx context.Context, messageID string, repliedBy model.RepliedBy, replyMessageID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[messageID]
	if !ok {
		return ErrNotFound
	}
	rb := repliedBy
	row.IsReplied = true
	row.RepliedBy = &rb
	if replyMessageID != "" {
		rid := replyMessageID
		row.ReplyMessageID = &rid
	} else {
		row.ReplyMessageID = nil
	}
	row.UpdatedAt = s.now()
	return nil
}

func (s *memoryMessageStore) MarkConversationRead(ctx context.Context, conversationID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, row := range s.rows {
		if row.ConversationID == conversationID && !row.IsRead {
			row.IsRead = true
			row.UpdatedAt = s.now()
			n++
		}
	}
	return n, nil
}

func (s *memoryMessageStore) GetMessage(ctx context.Context, messageID string) (*model.StoredMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[messageID]
	if !ok {
		return nil, ErrNotFound
	}
	m := cloneMessage(*row)
	return &m, nil
}

func (s *memoryMessageStore) GetUnrepliedMessages(ctx context.Context) ([]model.StoredMessage, error) {
	return s.filter(func(m *model.StoredMessage) bool { return !m.IsReplied }), nil
}

func (s *memoryMessageStore) GetConversations(ctx context.Context) ([]model.Conversation, error) {
	return AggregateConversations(s.filter(nil), s.identity), nil
}

func (s *memoryMessageStore) GetConversationMessages(ctx context.Context, conversationID string) ([]model.StoredMessage, error) {
	return s.filter(func(m *model.StoredMessage) bool { return m.ConversationID == conversationID }), nil
}

func (s *memoryMessageStore) GetRecentMessages(ctx context.Context, limit int) ([]model.StoredMessage, error) {
	rows := s.filter(nil)
	slices.Reverse(rows)
	if limit = recentLimit(limit); len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *memoryMessageStore) CountMessages(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.rows)), nil
}

// filter returns matching rows in chronological order.
func (s *memoryMessageStore) filter(keep func(*model.StoredMessage) bool) []model.StoredMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.StoredMessage, 0, len(s.rows))
	for _, row := range s.rows {
		if keep == nil || keep(row) {
			out = append(out, cloneMessage(*row))
		}
	}
	sortChronological(out)
	return out
}

func cloneMessage(m model.StoredMessage) model.StoredMessage {
	m.Attachments = slices.Clone(m.Attachments)
	if m.MessageText != nil {
		t := *m.MessageText
		m.MessageText = &t
	}
	if m.RepliedBy != nil {
		rb := *m.RepliedBy
		m.RepliedBy = &rb
	}
	if m.ReplyMessageID != nil {
		rid := *m.ReplyMessageID
		m.ReplyMessageID = &rid
	}
	return m
}
