package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	fb "github.com/huandu/facebook/v2"

	"github.com/imranmit2020/pro-login-flow-sub000/internal/model"
)

const messageFields = "id,created_time,from,to,message,attachments{id,mime_type,name,file_url,image_data,video_data}"

type GraphConfig struct {
	AppID       string
	AppSecret   string
	APIVersion  string
	AccessToken string
	// AccountID is the page id (Facebook) or business account id (Instagram).
	AccountID string
	Timeout   time.Duration
}

// GraphClient talks to the Graph API on behalf of one page or Instagram account.
type GraphClient struct {
	session   *fb.Session
	platform  model.Platform
	accountID string
}

var _ SocialClient = (*GraphClient)(nil)

func NewGraphClient(p model.Platform, cfg GraphConfig) (*GraphClient, error) {
	if !p.IsSocial() {
		return nil, fmt.Errorf("graph client does not support platform %q", p)
	}
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("%s access token is required", p)
	}

	app := fb.New(cfg.AppID, cfg.AppSecret)
	session := app.Session(cfg.AccessToken)
	if cfg.APIVersion != "" {
		session.Version = cfg.APIVersion
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	session.HttpClient = &http.Client{Timeout: timeout}
	if cfg.AppSecret != "" {
		if err := session.EnableAppsecretProof(true); err != nil {
			return nil, fmt.Errorf("enabling appsecret proof: %w", err)
		}
	}

	return &GraphClient{
		session:   session,
		platform:  p,
		accountID: cfg.AccountID,
	}, nil
}

func (c *GraphClient) Platform() model.Platform {
	return c.platform
}

func (c *GraphClient) AccountID() string {
	return c.accountID
}

func (c *GraphClient) ListConversations(ctx context.Context, limit int) ([]GraphConversation, error) {
	params := fb.Params{
		"fields": "id,updated_time,message_count,unread_count,participants",
		"limit":  limit,
	}
	if c.platform == model.PlatformInstagram {
		params["platform"] = "instagram"
	}

	res, err := c.session.WithContext(ctx).Get("/me/conversations", params)
	if err != nil {
		return nil, c.wrapError("listing conversations", err)
	}

	var page struct {
		Data []GraphConversation `json:"data"`
	}
	if err := decodeResult(res, &page); err != nil {
		return nil, fmt.Errorf("decoding %s conversations: %w", c.platform, err)
	}
	return page.Data, nil
}

func (c *GraphClient) ListMessages(ctx context.Context, conversationID string, limit int) ([]GraphMessage, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("conversation id is required")
	}

	res, err := c.session.WithContext(ctx).Get("/"+conversationID+"/messages", fb.Params{
		"fields": messageFields,
		"limit":  limit,
	})
	if err != nil {
		return nil, c.wrapError("listing messages", err)
	}

	var page struct {
		Data []GraphMessage `json:"data"`
	}
	if err := decodeResult(res, &page); err != nil {
		return nil, fmt.Errorf("decoding %s messages: %w", c.platform, err)
	}
	return page.Data, nil
}

func (c *GraphClient) SendMessage(ctx context.Context, recipientID, text string) (SendResult, error) {
	if recipientID == "" || text == "" {
		return SendResult{Success: false, Error: "recipient and text are required"}, fmt.Errorf("recipient and text are required")
	}

	res, err := c.session.WithContext(ctx).Post("/me/messages", fb.Params{
		"recipient":      map[string]string{"id": recipientID},
		"message":        map[string]string{"text": text},
		"messaging_type": "RESPONSE",
	})
	if err != nil {
		wrapped := c.wrapError("sending message", err)
		return SendResult{Success: false, Error: wrapped.Error()}, wrapped
	}

	var out struct {
		RecipientID string `json:"recipient_id"`
		MessageID   string `json:"message_id"`
	}
	if err := decodeResult(res, &out); err != nil {
		return SendResult{Success: false, Error: err.Error()}, fmt.Errorf("decoding send response: %w", err)
	}

	slog.DebugContext(ctx, "graph message sent",
		"platform", c.platform,
		"account_id", c.accountID,
		"recipient_id", recipientID,
		"message_id", out.MessageID)

	return SendResult{Success: true, MessageID: out.MessageID}, nil
}

func (c *GraphClient) wrapError(op string, err error) error {
	var fbErr *fb.Error
	if errors.As(err, &fbErr) {
		return &Error{
			Platform: c.platform,
			Code:     fbErr.Code,
			Message:  fbErr.Message,
			Err:      err,
		}
	}
	return &Error{
		Platform: c.platform,
		Message:  fmt.Sprintf("%s: %v", op, err),
		Err:      err,
	}
}

// decodeResult round-trips a Graph result through encoding/json so the json
// tags on our payload types are the single source of field names.
func decodeResult(res fb.Result, v any) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
