package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/imranmit2020/pro-login-flow-sub000/internal/model"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/service"
)

const (
	signatureHeader = "X-Hub-Signature-256"
	// Meta batches entries but stays far below this.
	maxEventBody = 1 << 20
)

// SyncTrigger is what the webhook needs from the service layer. *service.Services satisfies it.
type SyncTrigger interface {
	Sync(p model.Platform) (service.SyncService, error)
	Background() *service.Background
}

// MetaWebhookHandler receives Messenger and Instagram messaging events.
// Events carry no conversation id, so a delivery triggers a sync pass for
// the platform and the pass stores and enqueues the new messages.
type MetaWebhookHandler struct {
	verifyToken string
	appSecret   string
	services    SyncTrigger
	pending     map[model.Platform]*atomic.Bool
}

func NewMetaWebhookHandler(verifyToken, appSecret string, services SyncTrigger) *MetaWebhookHandler {
	pending := make(map[model.Platform]*atomic.Bool, len(model.SocialPlatforms))
	for _, p := range model.SocialPlatforms {
		pending[p] = &atomic.Bool{}
	}
	return &MetaWebhookHandler{
		verifyToken: verifyToken,
		appSecret:   appSecret,
		services:    services,
		pending:     pending,
	}
}

// Verify answers the subscription handshake.
func (h *MetaWebhookHandler) Verify(c *gin.Context) {
	if h.verifyToken == "" ||
		c.Query("hub.mode") != "subscribe" ||
		!hmac.Equal([]byte(c.Query("hub.verify_token")), []byte(h.verifyToken)) {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "verification failed"})
		return
	}
	c.String(http.StatusOK, c.Query("hub.challenge"))
}

func (h *MetaWebhookHandler) HandleEvent(c *gin.Context) {
	ctx := c.Request.Context()

	if h.appSecret == "" {
		slog.ErrorContext(ctx, "meta webhook event refused: no app secret to verify it")
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "webhook signature verification is not configured"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxEventBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "error": "request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "failed to read request body"})
		return
	}

	if !validSignature(h.appSecret, c.GetHeader(signatureHeader), body) {
		slog.WarnContext(ctx, "meta webhook signature mismatch")
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid signature"})
		return
	}

	var payload metaWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid payload"})
		return
	}

	p, ok := payloadPlatform(payload.Object)
	if !ok {
		slog.InfoContext(ctx, "ignoring meta webhook object", "object", payload.Object)
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	incoming := payload.incomingCount()
	slog.InfoContext(ctx, "meta webhook received",
		"platform", p,
		"entries", len(payload.Entry),
		"incoming", incoming)

	if incoming > 0 {
		h.triggerSync(ctx, p)
	}

	// Meta retries anything that is not a fast 200.
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// triggerSync starts one pass per platform; deliveries that arrive while a
// pass is running are covered by it.
func (h *MetaWebhookHandler) triggerSync(ctx context.Context, p model.Platform) {
	svc, err := h.services.Sync(p)
	if err != nil {
		slog.WarnContext(ctx, "no sync service for webhook platform", "platform", p, "error", err)
		return
	}
	flag := h.pending[p]
	if !flag.CompareAndSwap(false, true) {
		return
	}
	h.services.Background().FireAndForget(ctx, "webhook.sync."+string(p), func(ctx context.Context) error {
		defer flag.Store(false)
		_, err := svc.SyncMessages(ctx)
		return err
	})
}

func validSignature(secret, header string, body []byte) bool {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

func payloadPlatform(object string) (model.Platform, bool) {
	switch object {
	case "page":
		return model.PlatformFacebook, true
	case "instagram":
		return model.PlatformInstagram, true
	default:
		return "", false
	}
}

type metaWebhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID        string `json:"id"`
		Time      int64  `json:"time"`
		Messaging []struct {
			Sender struct {
				ID string `json:"id"`
			} `json:"sender"`
			Recipient struct {
				ID string `json:"id"`
			} `json:"recipient"`
			Timestamp int64 `json:"timestamp"`
			Message   *struct {
				MID    string `json:"mid"`
				Text   string `json:"text"`
				IsEcho bool   `json:"is_echo"`
			} `json:"message"`
		} `json:"messaging"`
	} `json:"entry"`
}

// incomingCount counts customer messages, skipping echoes of our own sends.
func (p metaWebhookPayload) incomingCount() int {
	n := 0
	for _, e := range p.Entry {
		for _, m := range e.Messaging {
			if m.Message != nil && !m.Message.IsEcho {
				n++
			}
		}
	}
	return n
}
