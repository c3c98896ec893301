package mapper

import (
	"strings"

	"github.com/imranmit2020/pro-login-flow-sub000/internal/model"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/platform"
)

// GmailIDPrefix qualifies Gmail ids so they never collide with Graph message ids.
const GmailIDPrefix = "gmail_"

// GmailMessageID strips the feed prefix to recover the Gmail API id.
func GmailMessageID(unifiedID string) string {
	return strings.TrimPrefix(unifiedID, GmailIDPrefix)
}

// GmailToUnified maps live Gmail mail. Gmail reply state is not tracked, so
// IsReplied is always false.
func GmailToUnified(msg platform.GmailMessage) model.UnifiedMessage {
	attachments := make([]model.Attachment, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		attachments = append(attachments, model.Attachment{
			Type:     attachmentType(a.MimeType),
			Name:     a.Filename,
			MimeType: a.MimeType,
		})
	}

	name := msg.Sender
	if name == "" {
		name = msg.SenderEmail
	}

	return model.UnifiedMessage{
		ID:             GmailIDPrefix + msg.ID,
		Platform:       model.PlatformGmail,
		SenderID:       msg.SenderEmail,
		SenderName:     name,
		SenderEmail:    msg.SenderEmail,
		Subject:        msg.Subject,
		Content:        model.MessageContent{Text: msg.Body, Attachments: attachments},
		Timestamp:      msg.Timestamp.UTC(),
		ConversationID: msg.ThreadID,
		IsRead:         !msg.Unread,
		IsReplied:      false,
	}
}
