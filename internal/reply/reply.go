// Package reply produces the text of automatic replies to customer messages.
package reply

import (
	"context"
	"strings"

	"github.com/imranmit2020/pro-login-flow-sub000/internal/model"
)

// DefaultFallbackReply is sent when a generator answers without usable text.
const DefaultFallbackReply = "Thank you for reaching out! We've received your message and a member of our team will get back to you shortly."

// Generator turns a customer message into reply text. A nil error always
// comes with non-empty text.
type Generator interface {
	Generate(ctx context.Context, msg model.UnifiedMessage) (string, error)
}

func fallbackOr(text, fallback string) string {
	if t := strings.TrimSpace(text); t != "" {
		return t
	}
	if f := strings.TrimSpace(fallback); f != "" {
		return f
	}
	return DefaultFallbackReply
}
