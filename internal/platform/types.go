package platform

import (
	"context"
	"time"
)

// GraphUser is a participant reference in Graph API payloads.
type GraphUser struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

type GraphAttachment struct {
	ID        string      `json:"id,omitempty"`
	MimeType  string      `json:"mime_type,omitempty"`
	Name      string      `json:"name,omitempty"`
	FileURL   string      `json:"file_url,omitempty"`
	ImageData *GraphMedia `json:"image_data,omitempty"`
	VideoData *GraphMedia `json:"video_data,omitempty"`
}

type GraphMedia struct {
	URL string `json:"url"`
}

// GraphUsers and GraphAttachments are Graph's {"data": [...]} edge wrappers.
type GraphUsers struct {
	Data []GraphUser `json:"data"`
}

type GraphAttachments struct {
	Data []GraphAttachment `json:"data"`
}

// GraphMessage is a Messenger or Instagram Direct message as returned by the Graph API.
// Messenger uses "message" for the body; some Instagram payloads use "text".
type GraphMessage struct {
	ID          string            `json:"id"`
	CreatedTime string            `json:"created_time"`
	From        *GraphUser        `json:"from,omitempty"`
	To          *GraphUsers       `json:"to,omitempty"`
	Message     *string           `json:"message,omitempty"`
	Text        *string           `json:"text,omitempty"`
	Attachments *GraphAttachments `json:"attachments,omitempty"`
}

// GraphConversation is a thread summary from /{page-id}/conversations.
type GraphConversation struct {
	ID           string      `json:"id"`
	UpdatedTime  string      `json:"updated_time,omitempty"`
	MessageCount int         `json:"message_count,omitempty"`
	UnreadCount  int         `json:"unread_count,omitempty"`
	Participants *GraphUsers `json:"participants,omitempty"`
}

// GmailMessage is a Gmail message reduced to the fields the inbox needs.
type GmailMessage struct {
	ID          string
	ThreadID    string
	Sender      string
	SenderEmail string
	Subject     string
	Body        string
	Timestamp   time.Time
	Unread      bool
	Attachments []GmailAttachment
}

type GmailAttachment struct {
	Filename string
	MimeType string
	ID       string
}

// SendResult is the uniform outcome of a send across Facebook and Instagram.
type SendResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ConversationFetcher pulls conversations and their messages from one account.
type ConversationFetcher interface {
	ListConversations(ctx context.Context, limit int) ([]GraphConversation, error)
	ListMessages(ctx context.Context, conversationID string, limit int) ([]GraphMessage, error)
}

// MessageSender sends a text message to a platform user.
type MessageSender interface {
	SendMessage(ctx context.Context, recipientID, text string) (SendResult, error)
}

// SocialClient is a fetcher that can also send; one per Facebook page or Instagram account.
type SocialClient interface {
	ConversationFetcher
	MessageSender
}

// GmailClient is the live Gmail collaborator. Gmail history is not persisted.
type GmailClient interface {
	ListMessages(ctx context.Context, limit int) ([]GmailMessage, error)
	ReplyToThread(ctx context.Context, params GmailReplyParams) (string, error)
	MarkRead(ctx context.Context, messageID string) error
}

type GmailReplyParams struct {
	ThreadID string
	To       string
	Subject  string
	Body     string
}
