package mapper

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/imranmit2020/pro-login-flow-sub000/internal/model"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/platform"
)

// AttachmentLabel is the preview text for a message that carries only attachments.
const AttachmentLabel = "📎 Attachment"

// graphTimeLayout is the created_time format the Graph API emits.
const graphTimeLayout = "2006-01-02T15:04:05-0700"

var ErrMissingSender = errors.New("message has no sender id")

// MappingError reports a platform message that cannot be normalized.
type MappingError struct {
	Platform  model.Platform
	MessageID string
	Err       error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("mapping %s message %q: %v", e.Platform, e.MessageID, e.Err)
}

func (e *MappingError) Unwrap() error {
	return e.Err
}

// SocialMapper normalizes Graph API messages into stored rows.
type SocialMapper interface {
	Platform() model.Platform
	ToStored(msg platform.GraphMessage, conversationID string) (*model.StoredMessage, error)
}

// graphMapper holds the shared Facebook/Instagram mapping; the platforms only
// differ in which ids count as the business.
type graphMapper struct {
	platform model.Platform
	identity model.BusinessIdentity
}

func (m *graphMapper) Platform() model.Platform {
	return m.platform
}

func (m *graphMapper) ToStored(msg platform.GraphMessage, conversationID string) (*model.StoredMessage, error) {
	if msg.From == nil || msg.From.ID == "" {
		return nil, &MappingError{Platform: m.platform, MessageID: msg.ID, Err: ErrMissingSender}
	}
	if msg.ID == "" {
		return nil, &MappingError{Platform: m.platform, MessageID: msg.ID, Err: errors.New("message has no id")}
	}

	ts, err := ParseGraphTime(msg.CreatedTime)
	if err != nil {
		return nil, &MappingError{Platform: m.platform, MessageID: msg.ID, Err: err}
	}

	senderID := msg.From.ID
	row := &model.StoredMessage{
		MessageID:      msg.ID,
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderName:     senderName(msg.From),
		RecipientID:    recipientID(msg),
		MessageText:    messageText(msg),
		Attachments:    graphAttachments(msg),
		Timestamp:      ts,
		Platform:       m.platform,
	}

	if m.identity.IsBusinessSender(senderID) {
		if name, ok := m.identity.DisplayName(senderID); ok && name != "" {
			row.SenderName = name
		}
		human := model.RepliedByHuman
		row.IsReplied = true
		row.RepliedBy = &human
		row.IsRead = true
	}

	return row, nil
}

// ParseGraphTime accepts the Graph created_time format and RFC 3339.
func ParseGraphTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("message has no created_time")
	}
	if t, err := time.Parse(graphTimeLayout, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing created_time %q: %w", s, err)
	}
	return t.UTC(), nil
}

func senderName(u *platform.GraphUser) string {
	switch {
	case u.Name != "":
		return u.Name
	case u.Username != "":
		return u.Username
	default:
		return u.ID
	}
}

func recipientID(msg platform.GraphMessage) string {
	if msg.To == nil || len(msg.To.Data) == 0 {
		return ""
	}
	return msg.To.Data[0].ID
}

// messageText never returns a pointer to "" so absent text stays NULL in storage.
func messageText(msg platform.GraphMessage) *string {
	for _, candidate := range []*string{msg.Message, msg.Text} {
		if candidate != nil && *candidate != "" {
			text := *candidate
			return &text
		}
	}
	return nil
}

func graphAttachments(msg platform.GraphMessage) []model.Attachment {
	if msg.Attachments == nil || len(msg.Attachments.Data) == 0 {
		return []model.Attachment{}
	}

	out := make([]model.Attachment, 0, len(msg.Attachments.Data))
	for _, a := range msg.Attachments.Data {
		att := model.Attachment{
			Name:     a.Name,
			MimeType: a.MimeType,
			URL:      a.FileURL,
			Type:     attachmentType(a.MimeType),
		}
		if a.ImageData != nil && a.ImageData.URL != "" {
			att.URL = a.ImageData.URL
			att.Type = "image"
		}
		if a.VideoData != nil && a.VideoData.URL != "" {
			att.URL = a.VideoData.URL
			att.Type = "video"
		}
		out = append(out, att)
	}
	return out
}

func attachmentType(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return "image"
	case strings.HasPrefix(mimeType, "video/"):
		return "video"
	case strings.HasPrefix(mimeType, "audio/"):
		return "audio"
	default:
		return "file"
	}
}

// PreviewText is the single line shown for a message in conversation lists.
func PreviewText(row model.StoredMessage) string {
	if text := row.Text(); text != "" {
		return text
	}
	if len(row.Attachments) > 0 {
		return AttachmentLabel
	}
	return ""
}

// StoredToUnified converts a persisted row into the feed representation.
func StoredToUnified(row model.StoredMessage) model.UnifiedMessage {
	attachments := row.Attachments
	if attachments == nil {
		attachments = []model.Attachment{}
	}
	return model.UnifiedMessage{
		ID:             row.MessageID,
		Platform:       row.Platform,
		SenderID:       row.SenderID,
		SenderName:     row.SenderName,
		Content:        model.MessageContent{Text: PreviewText(row), Attachments: attachments},
		Timestamp:      row.Timestamp,
		ConversationID: row.ConversationID,
		IsRead:         row.IsRead || row.IsReplied,
		IsReplied:      row.IsReplied,
	}
}

// New returns the normalizer for a social platform.
func New(p model.Platform, identity model.BusinessIdentity) (SocialMapper, error) {
	if !p.IsSocial() {
		return nil, fmt.Errorf("platform %q has no graph mapper", p)
	}
	return &graphMapper{platform: p, identity: identity}, nil
}
