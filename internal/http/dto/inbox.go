package dto

import (
	"github.com/imranmit2020/pro-login-flow-sub000/internal/model"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/service"
)

const (
	ActionMarkRead         = "mark_read"
	ActionSyncConversation = "sync_conversation"
)

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type SendMessageRequest struct {
	RecipientID      string `json:"recipientId" binding:"required"`
	Message          string `json:"message" binding:"required"`
	ReplyToMessageID string `json:"replyToMessageId,omitempty"`
	AccountID        string `json:"accountId,omitempty"`
}

type SendMessageResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
}

type MessageActionRequest struct {
	Action         string `json:"action" binding:"required"`
	ConversationID string `json:"conversationId,omitempty"`
	MessageID      string `json:"messageId,omitempty"`
}

type MessageActionResponse struct {
	Success bool   `json:"success"`
	Action  string `json:"action"`
	Updated int64  `json:"updated,omitempty"`
	Queued  bool   `json:"queued,omitempty"`
}

type ConversationListResponse struct {
	Success       bool                 `json:"success"`
	Platform      model.Platform       `json:"platform"`
	Source        service.Source       `json:"source"`
	Conversations []model.Conversation `json:"conversations"`
}

type ConversationMessagesResponse struct {
	Success        bool                  `json:"success"`
	Platform       model.Platform        `json:"platform"`
	Source         service.Source        `json:"source"`
	ConversationID string                `json:"conversationId"`
	Messages       []model.StoredMessage `json:"messages"`
}

type GmailMessagesResponse struct {
	Success  bool                   `json:"success"`
	Messages []model.UnifiedMessage `json:"messages"`
}

type GmailReplyRequest struct {
	ThreadID string `json:"threadId" binding:"required"`
	To       string `json:"to" binding:"required"`
	Subject  string `json:"subject"`
	Body     string `json:"body" binding:"required"`
}

type FeedResponse struct {
	Success bool `json:"success"`
	*model.FeedResult
}

type SummaryResponse struct {
	Success   bool                    `json:"success"`
	Platforms []model.PlatformSummary `json:"platforms"`
}

type SyncStatusResponse struct {
	Success   bool                 `json:"success"`
	Platforms []service.SyncStatus `json:"platforms"`
}

type AcceptedResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type AutoReplyStatus struct {
	Success bool `json:"success"`
	Enabled bool `json:"enabled"`
}

type AutoReplyToggleRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}
