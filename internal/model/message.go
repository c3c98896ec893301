package model

import (
	"encoding/json"
	"time"
)

// RepliedBy records who answered a customer message.
type RepliedBy string

const (
	RepliedByAI    RepliedBy = "AI"
	RepliedByHuman RepliedBy = "human"
)

// MessageStatus is the three-state badge shown in the inbox.
// It is always derived from (isRead, isReplied); see StatusOf.
type MessageStatus string

const (
	StatusUnread  MessageStatus = "unread"
	StatusRead    MessageStatus = "read"
	StatusReplied MessageStatus = "replied"
)

// StatusOf is the only place a MessageStatus is produced.
func StatusOf(isRead, isReplied bool) MessageStatus {
	if !isRead {
		return StatusUnread
	}
	if isReplied {
		return StatusReplied
	}
	return StatusRead
}

type Attachment struct {
	Type     string `json:"type,omitempty"`
	URL      string `json:"url,omitempty"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

type MessageContent struct {
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments"`
}

// UnifiedMessage is the cross-platform representation served to the UI.
type UnifiedMessage struct {
	ID             string         `json:"id"`
	Platform       Platform       `json:"platform"`
	SenderID       string         `json:"senderId"`
	SenderName     string         `json:"senderName"`
	SenderEmail    string         `json:"senderEmail,omitempty"`
	Subject        string         `json:"subject,omitempty"`
	Content        MessageContent `json:"content"`
	Timestamp      time.Time      `json:"timestamp"`
	ConversationID string         `json:"conversationId"`
	IsRead         bool           `json:"isRead"`
	IsReplied      bool           `json:"isReplied"`
}

// Status derives the badge state.
func (m UnifiedMessage) Status() MessageStatus {
	return StatusOf(m.IsRead, m.IsReplied)
}

func (m UnifiedMessage) MarshalJSON() ([]byte, error) {
	type alias UnifiedMessage
	if m.Content.Attachments == nil {
		m.Content.Attachments = []Attachment{}
	}
	return json.Marshal(struct {
		alias
		Status MessageStatus `json:"status"`
	}{
		alias:  alias(m),
		Status: m.Status(),
	})
}

// StoredMessage is one persisted Facebook or Instagram message row.
type StoredMessage struct {
	ID             int64        `json:"id"`
	MessageID      string       `json:"message_id"`
	ConversationID string       `json:"conversation_id"`
	SenderID       string       `json:"sender_id"`
	SenderName     string       `json:"sender_name"`
	RecipientID    string       `json:"receipt_id"`
	MessageText    *string      `json:"message_text"`
	Attachments    []Attachment `json:"attachments"`
	Timestamp      time.Time    `json:"timestamp"`
	Platform       Platform     `json:"platform"`
	IsReplied      bool         `json:"is_replied"`
	RepliedBy      *RepliedBy   `json:"replied_by"`
	ReplyMessageID *string      `json:"reply_message_id"`
	IsRead         bool         `json:"is_read"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Text returns the message text, or "" when the platform sent none.
func (m StoredMessage) Text() string {
	if m.MessageText == nil {
		return ""
	}
	return *m.MessageText
}

// Conversation is derived from stored rows sharing a conversation id; it is never persisted.
type Conversation struct {
	ConversationID string          `json:"conversationId"`
	Platform       Platform        `json:"platform"`
	Messages       []StoredMessage `json:"messages"`
	LastMessage    StoredMessage   `json:"lastMessage"`
	UnreadCount    int             `json:"unreadCount"`
	IsReplied      bool            `json:"isReplied"`
	Participants   []string        `json:"participants"`
}
