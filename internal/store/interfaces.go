package store

import (
	"context"
	"errors"

	"github.com/imranmit2020/pro-login-flow-sub000/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// DefaultRecentLimit applies when GetRecentMessages is asked for zero or fewer rows.
const DefaultRecentLimit = 50

func recentLimit(limit int) int {
	if limit <= 0 {
		return DefaultRecentLimit
	}
	return limit
}

// BatchResult reports how much of a StoreMessages call was applied.
type BatchResult struct {
	Stored int
	// Inserted holds the rows that did not exist before this call.
	Inserted []model.StoredMessage
}

// MessageStore is the system of record for one platform's message table.
// Writes are per-row upserts keyed by message_id; there is no transaction
// spanning a batch.
type MessageStore interface {
	Platform() model.Platform
	// Identity is the set of ids that count as the practice on this platform.
	Identity() model.BusinessIdentity

	// StoreMessage upserts one row and reports whether it was newly inserted.
	StoreMessage(ctx context.Context, msg *model.StoredMessage) (bool, error)
	// StoreMessages upserts rows in order and stops at the first failure.
	StoreMessages(ctx context.Context, msgs []model.StoredMessage) (BatchResult, error)

	// MarkMessageAsReplied touches only is_replied, replied_by and reply_message_id.
	MarkMessageAsReplied(ctx context.Context, messageID string, repliedBy model.RepliedBy, replyMessageID string) error
	MarkConversationRead(ctx context.Context, conversationID string) (int64, error)

	GetMessage(ctx context.Context, messageID string) (*model.StoredMessage, error)
	// GetUnrepliedMessages returns rows with is_replied = false, oldest first.
	GetUnrepliedMessages(ctx context.Context) ([]model.StoredMessage, error)
	GetConversations(ctx context.Context) ([]model.Conversation, error)
	// GetConversationMessages returns one thread in chronological order.
	GetConversationMessages(ctx context.Context, conversationID string) ([]model.StoredMessage, error)
	// GetRecentMessages returns up to limit rows, newest first; limit <= 0 means DefaultRecentLimit.
	GetRecentMessages(ctx context.Context, limit int) ([]model.StoredMessage, error)
	CountMessages(ctx context.Context) (int64, error)
}
