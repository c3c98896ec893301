package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/imranmit2020/pro-login-flow-sub000/common/id"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/model"
)

const messageColumns = `id, message_id, conversation_id, sender_id, sender_name, receipt_id,
	message_text, attachments, timestamp, platform, is_replied, replied_by,
	reply_message_id, is_read, created_at, updated_at`

// A row that is already replied keeps its reply attribution across re-syncs.
const upsertMessageSQL = `
INSERT INTO %[1]s AS t (id, message_id, conversation_id, sender_id, sender_name, receipt_id,
	message_text, attachments, timestamp, platform, is_replied, replied_by, reply_message_id, is_read)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (message_id) DO UPDATE SET
	conversation_id  = EXCLUDED.conversation_id,
	sender_id        = EXCLUDED.sender_id,
	sender_name      = EXCLUDED.sender_name,
	receipt_id       = EXCLUDED.receipt_id,
	message_text     = EXCLUDED.message_text,
	attachments      = EXCLUDED.attachments,
	timestamp        = EXCLUDED.timestamp,
	is_replied       = t.is_replied OR EXCLUDED.is_replied,
	replied_by       = CASE WHEN t.is_replied THEN t.replied_by ELSE EXCLUDED.replied_by END,
	reply_message_id = CASE WHEN t.is_replied THEN t.reply_message_id ELSE EXCLUDED.reply_message_id END,
	is_read          = t.is_read OR EXCLUDED.is_read,
	updated_at       = now()
RETURNING (xmax = 0) AS inserted`

type pgMessageStore struct {
	pool     *pgxpool.Pool
	platform model.Platform
	table    string
	identity model.BusinessIdentity
}

func newPGMessageStore(pool *pgxpool.Pool, p model.Platform, identity model.BusinessIdentity) MessageStore {
	return &pgMessageStore{
		pool:     pool,
		platform: p,
		table:    p.Table(),
		identity: identity,
	}
}

func (s *pgMessageStore) Platform() model.Platform {
	return s.platform
}

func (s *pgMessageStore) Identity() model.BusinessIdentity {
	return s.identity
}

func (s *pgMessageStore) StoreMessage(ctx context.Context, msg *model.StoredMessage) (bool, error) {
	attachments, err := json.Marshal(nonNilAttachments(msg.Attachments))
	if err != nil {
		return false, fmt.Errorf("encoding attachments for %s: %w", msg.MessageID, err)
	}

	var repliedBy *string
	if msg.RepliedBy != nil {
		v := string(*msg.RepliedBy)
		repliedBy = &v
	}

	var inserted bool
	err = s.pool.QueryRow(ctx, fmt.Sprintf(upsertMessageSQL, s.table),
		id.New(),
		msg.MessageID,
		msg.ConversationID,
		msg.SenderID,
		msg.SenderName,
		msg.RecipientID,
		msg.MessageText,
		attachments,
		msg.Timestamp,
		string(s.platform),
		msg.IsReplied,
		repliedBy,
		msg.ReplyMessageID,
		msg.IsRead,
	).Scan(&inserted)
	if err != nil {
		slog.ErrorContext(ctx, "failed to upsert message",
			"error", err,
			"table", s.table,
			"message_id", msg.MessageID,
			"conversation_id", msg.ConversationID)
		return false, fmt.Errorf("upserting %s message %s: %w", s.platform, msg.MessageID, err)
	}
	return inserted, nil
}

func (s *pgMessageStore) StoreMessages(ctx context.Context, msgs []model.StoredMessage) (BatchResult, error) {
	return storeEach(ctx, s, msgs)
}

func (s *pgMessageStore) MarkMessageAsReplied(ctx context.Context, messageID string, repliedBy model.RepliedBy, replyMessageID string) error {
	var replyID *string
	if replyMessageID != "" {
		replyID = &replyMessageID
	}

	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE %s SET is_replied = TRUE, replied_by = $2, reply_message_id = $3, updated_at = now()
		WHERE message_id = $1`, s.table),
		messageID, string(repliedBy), replyID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to mark message replied",
			"error", err,
			"table", s.table,
			"message_id", messageID)
		return fmt.Errorf("marking %s message %s replied: %w", s.platform, messageID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgMessageStore) MarkConversationRead(ctx context.Context, conversationID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE %s SET is_read = TRUE, updated_at = now()
		WHERE conversation_id = $1 AND is_read = FALSE`, s.table),
		conversationID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to mark conversation read",
			"error", err,
			"table", s.table,
			"conversation_id", conversationID)
		return 0, fmt.Errorf("marking %s conversation %s read: %w", s.platform, conversationID, err)
	}
	return tag.RowsAffected(), nil
}

func (s *pgMessageStore) GetMessage(ctx context.Context, messageID string) (*model.StoredMessage, error) {
	rows, err := s.query(ctx, "WHERE message_id = $1", messageID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

func (s *pgMessageStore) GetUnrepliedMessages(ctx context.Context) ([]model.StoredMessage, error) {
	return s.query(ctx, "WHERE is_replied = FALSE ORDER BY timestamp ASC, message_id ASC")
}

func (s *pgMessageStore) GetConversations(ctx context.Context) ([]model.Conversation, error) {
	rows, err := s.query(ctx, "ORDER BY timestamp ASC, message_id ASC")
	if err != nil {
		return nil, err
	}
	return AggregateConversations(rows, s.identity), nil
}

func (s *pgMessageStore) GetConversationMessages(ctx context.Context, conversationID string) ([]model.StoredMessage, error) {
	return s.query(ctx, "WHERE conversation_id = $1 ORDER BY timestamp ASC, message_id ASC", conversationID)
}

func (s *pgMessageStore) GetRecentMessages(ctx context.Context, limit int) ([]model.StoredMessage, error) {
	return s.query(ctx, "ORDER BY timestamp DESC, message_id DESC LIMIT $1", recentLimit(limit))
}

func (s *pgMessageStore) CountMessages(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", s.table)).Scan(&n); err != nil {
		slog.ErrorContext(ctx, "failed to count messages", "error", err, "table", s.table)
		return 0, fmt.Errorf("counting %s messages: %w", s.platform, err)
	}
	return n, nil
}

func (s *pgMessageStore) query(ctx context.Context, clause string, args ...any) ([]model.StoredMessage, error) {
	sql := fmt.Sprintf("SELECT %s FROM %s %s", messageColumns, s.table, clause)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		slog.ErrorContext(ctx, "failed to query messages",
			"error", err,
			"table", s.table,
			"clause", strings.TrimSpace(clause))
		return nil, fmt.Errorf("querying %s messages: %w", s.platform, err)
	}

	out, err := pgx.CollectRows(rows, scanStoredMessage)
	if err != nil {
		slog.ErrorContext(ctx, "failed to scan messages", "error", err, "table", s.table)
		return nil, fmt.Errorf("scanning %s messages: %w", s.platform, err)
	}
	return out, nil
}

func scanStoredMessage(row pgx.CollectableRow) (model.StoredMessage, error) {
	var (
		m           model.StoredMessage
		attachments []byte
		platform    string
		repliedBy   *string
	)
	err := row.Scan(
		&m.ID,
		&m.MessageID,
		&m.ConversationID,
		&m.SenderID,
		&m.SenderName,
		&m.RecipientID,
		&m.MessageText,
		&attachments,
		&m.Timestamp,
		&platform,
		&m.IsReplied,
		&repliedBy,
		&m.ReplyMessageID,
		&m.IsRead,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return model.StoredMessage{}, err
	}

	m.Platform = model.Platform(platform)
	if repliedBy != nil {
		rb := model.RepliedBy(*repliedBy)
		m.RepliedBy = &rb
	}
	m.Attachments = []model.Attachment{}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &m.Attachments); err != nil {
			return model.StoredMessage{}, fmt.Errorf("decoding attachments for %s: %w", m.MessageID, err)
		}
	}
	return m, nil
}

// storeEach applies per-row upserts in order; rows before a failure stay applied.
func storeEach(ctx context.Context, s MessageStore, msgs []model.StoredMessage) (BatchResult, error) {
	var result BatchResult
	for i := range msgs {
		inserted, err := s.StoreMessage(ctx, &msgs[i])
		if err != nil {
			return result, err
		}
		result.Stored++
		if inserted {
			result.Inserted = append(result.Inserted, msgs[i])
		}
	}
	return result, nil
}

func nonNilAttachments(a []model.Attachment) []model.Attachment {
	if a == nil {
		return []model.Attachment{}
	}
	return a
}
