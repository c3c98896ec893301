package reply

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/imranmit2020/pro-login-flow-sub000/common/logger"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/model"
)

const maxWebhookBody = 1 << 20

// WebhookPayload is the envelope posted to the n8n workflow.
type WebhookPayload struct {
	MessageID      string         `json:"messageId"`
	Platform       model.Platform `json:"platform"`
	SenderID       string         `json:"senderId"`
	SenderName     string         `json:"senderName"`
	Content        string         `json:"content"`
	Timestamp      time.Time      `json:"timestamp"`
	ConversationID string         `json:"conversationId"`
}

type webhookResponse struct {
	Output *string `json:"output"`
	Reply  *string `json:"reply"`
}

func (r webhookResponse) text() string {
	if r.Output != nil && *r.Output != "" {
		return *r.Output
	}
	if r.Reply != nil {
		return *r.Reply
	}
	return ""
}

type WebhookConfig struct {
	URL      string
	Timeout  time.Duration
	Fallback string
}

// WebhookGenerator asks an n8n workflow for the reply text.
type WebhookGenerator struct {
	url      string
	fallback string
	client   *http.Client
}

func NewWebhookGenerator(cfg WebhookConfig) (*WebhookGenerator, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WebhookGenerator{
		url:      cfg.URL,
		fallback: cfg.Fallback,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

func (g *WebhookGenerator) Generate(ctx context.Context, msg model.UnifiedMessage) (string, error) {
	body, err := json.Marshal(WebhookPayload{
		MessageID:      msg.ID,
		Platform:       msg.Platform,
		SenderID:       msg.SenderID,
		SenderName:     msg.SenderName,
		Content:        msg.Content.Text,
		Timestamp:      msg.Timestamp,
		ConversationID: msg.ConversationID,
	})
	if err != nil {
		return "", fmt.Errorf("encoding webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling reply webhook: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxWebhookBody))
	if err != nil {
		return "", fmt.Errorf("reading webhook response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("reply webhook returned %d: %s", resp.StatusCode, logger.Truncate(string(raw), 200))
	}

	text := parseWebhookReply(raw)
	slog.DebugContext(ctx, "reply webhook answered",
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"empty", text == "")

	return fallbackOr(text, g.fallback), nil
}

// parseWebhookReply accepts an object or the array n8n emits for
// "respond with all items", reading output before reply.
func parseWebhookReply(raw []byte) string {
	var single webhookResponse
	if err := json.Unmarshal(raw, &single); err == nil {
		return single.text()
	}

	var many []webhookResponse
	if err := json.Unmarshal(raw, &many); err == nil {
		for _, r := range many {
			if t := r.text(); t != "" {
				return t
			}
		}
	}
	return ""
}
