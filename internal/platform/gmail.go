package platform

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/mail"
	"slices"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/imranmit2020/pro-login-flow-sub000/internal/model"
)

const gmailFetchConcurrency = 5

type GmailConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	UserID       string
	Query        string
	Timeout      time.Duration
}

type gmailClient struct {
	svc    *gmail.Service
	userID string
	query  string
}

// NewGmailClient builds a Gmail client that refreshes its access token from the
// configured refresh token.
func NewGmailClient(ctx context.Context, cfg GmailConfig) (GmailClient, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, errors.New("gmail client id, secret and refresh token are required")
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailModifyScope},
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: timeout})
	httpClient := oauth2.NewClient(ctx, oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken}))

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}

	userID := cfg.UserID
	if userID == "" {
		userID = "me"
	}

	return &gmailClient{svc: svc, userID: userID, query: cfg.Query}, nil
}

func (c *gmailClient) ListMessages(ctx context.Context, limit int) ([]GmailMessage, error) {
	call := c.svc.Users.Messages.List(c.userID).MaxResults(int64(limit)).Context(ctx)
	if c.query != "" {
		call = call.Q(c.query)
	}
	list, err := call.Do()
	if err != nil {
		return nil, wrapGmailError("listing messages", err)
	}

	out := make([]GmailMessage, len(list.Messages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(gmailFetchConcurrency)
	for i, ref := range list.Messages {
		g.Go(func() error {
			msg, err := c.svc.Users.Messages.Get(c.userID, ref.Id).Format("full").Context(gctx).Do()
			if err != nil {
				return wrapGmailError("getting message "+ref.Id, err)
			}
			out[i] = parseGmailMessage(msg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *gmailClient) ReplyToThread(ctx context.Context, params GmailReplyParams) (string, error) {
	if params.To == "" || params.Body == "" {
		return "", errors.New("recipient and body are required")
	}
	to, err := replyRecipient(params.To)
	if err != nil {
		return "", err
	}

	var raw strings.Builder
	fmt.Fprintf(&raw, "To: %s\r\n", to)
	fmt.Fprintf(&raw, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", replySubject(params.Subject)))
	if params.ThreadID != "" {
		if parent, refs := c.threadParent(ctx, params.ThreadID); parent != "" {
			fmt.Fprintf(&raw, "In-Reply-To: %s\r\n", parent)
			fmt.Fprintf(&raw, "References: %s\r\n", strings.TrimSpace(refs+" "+parent))
		}
	}
	raw.WriteString("MIME-Version: 1.0\r\n")
	raw.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	raw.WriteString(params.Body)

	sent, err := c.svc.Users.Messages.Send(c.userID, &gmail.Message{
		Raw:      base64.URLEncoding.EncodeToString([]byte(raw.String())),
		ThreadId: params.ThreadID,
	}).Context(ctx).Do()
	if err != nil {
		return "", wrapGmailError("sending reply", err)
	}
	return sent.Id, nil
}

// threadParent returns the Message-ID and References of the newest message in
// the thread. Lookup failures leave the reply threaded by ThreadId only.
func (c *gmailClient) threadParent(ctx context.Context, threadID string) (messageID, references string) {
	thread, err := c.svc.Users.Threads.Get(c.userID, threadID).
		Format("metadata").
		MetadataHeaders("Message-ID", "References").
		Context(ctx).Do()
	if err != nil || len(thread.Messages) == 0 {
		return "", ""
	}
	last := thread.Messages[len(thread.Messages)-1]
	if last.Payload == nil {
		return "", ""
	}
	for _, h := range last.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "message-id":
			messageID = singleLine(h.Value)
		case "references":
			references = singleLine(h.Value)
		}
	}
	return messageID, references
}

// replyRecipient accepts exactly one address and renders it safely for a header.
func replyRecipient(to string) (string, error) {
	if strings.ContainsAny(to, "\r\n") {
		return "", fmt.Errorf("%w: recipient contains a line break", ErrInvalidHeader)
	}
	addr, err := mail.ParseAddress(to)
	if err != nil {
		return "", fmt.Errorf("%w: recipient %q: %v", ErrInvalidHeader, to, err)
	}
	return addr.String(), nil
}

func replySubject(subject string) string {
	subject = singleLine(subject)
	if subject != "" && !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}
	return subject
}

// singleLine folds CR and LF into spaces so a value cannot start a new header.
func singleLine(v string) string {
	return strings.Join(strings.FieldsFunc(v, func(r rune) bool { return r == '\r' || r == '\n' }), " ")
}

func (c *gmailClient) MarkRead(ctx context.Context, messageID string) error {
	_, err := c.svc.Users.Messages.Modify(c.userID, messageID, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	if err != nil {
		return wrapGmailError("marking message read", err)
	}
	return nil
}

func parseGmailMessage(msg *gmail.Message) GmailMessage {
	out := GmailMessage{
		ID:        msg.Id,
		ThreadID:  msg.ThreadId,
		Timestamp: time.UnixMilli(msg.InternalDate).UTC(),
		Unread:    slices.Contains(msg.LabelIds, "UNREAD"),
	}
	if msg.Payload == nil {
		out.Body = msg.Snippet
		return out
	}

	for _, h := range msg.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "from":
			out.Sender, out.SenderEmail = parseAddress(h.Value)
		case "subject":
			out.Subject = h.Value
		}
	}

	out.Body = plainTextBody(msg.Payload)
	if out.Body == "" {
		out.Body = msg.Snippet
	}
	out.Attachments = collectAttachments(msg.Payload, nil)
	return out
}

func parseAddress(v string) (name, email string) {
	addr, err := mail.ParseAddress(v)
	if err != nil {
		return v, v
	}
	return addr.Name, addr.Address
}

func plainTextBody(part *gmail.MessagePart) string {
	if part == nil {
		return ""
	}
	if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
		return decodeBase64URL(part.Body.Data)
	}
	for _, p := range part.Parts {
		if body := plainTextBody(p); body != "" {
			return body
		}
	}
	return ""
}

func collectAttachments(part *gmail.MessagePart, acc []GmailAttachment) []GmailAttachment {
	if part == nil {
		return acc
	}
	if part.Filename != "" && part.Body != nil && part.Body.AttachmentId != "" {
		acc = append(acc, GmailAttachment{
			Filename: part.Filename,
			MimeType: part.MimeType,
			ID:       part.Body.AttachmentId,
		})
	}
	for _, p := range part.Parts {
		acc = collectAttachments(p, acc)
	}
	return acc
}

func decodeBase64URL(data string) string {
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(b)
	}
	if b, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		return string(b)
	}
	return ""
}

func wrapGmailError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return &Error{
			Platform: model.PlatformGmail,
			Status:   apiErr.Code,
			Message:  apiErr.Message,
			Err:      err,
		}
	}
	return &Error{
		Platform: model.PlatformGmail,
		Message:  fmt.Sprintf("%s: %v", op, err),
		Err:      err,
	}
}
