package llm

import (
	"context"
	"errors"
	"regexp"
	"time"
)

var nameInvalidChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// ErrRefused is returned when the model declines to answer.
var ErrRefused = errors.New("model refused the request")

// Config holds LLM client configuration.
type Config struct {
	APIKey  string // Required: API key for the provider
	BaseURL string // Optional: custom API endpoint (any OpenAI-compatible server)
	Model   string // Model name (e.g., "gpt-4o-mini")

	// MaxRetries bounds retries of rate-limited or failed calls; zero means 2.
	MaxRetries int
	// Timeout bounds one attempt; zero means 30s.
	Timeout time.Duration
}

// Client produces structured completions over a short conversation.
type Client interface {
	Chat(ctx context.Context, req Request, result any) (*Response, error)
	Model() string
}

// Request is one structured completion. History is replayed between the
// system prompt and the schema-constrained answer.
type Request struct {
	SystemPrompt string
	History      []Message
	SchemaName   string
	Schema       any
	MaxTokens    int
	Temperature  *float64 // nil = model default, explicit 0 = deterministic
}

// Message represents a conversation message.
type Message struct {
	Role    string // "user" or "assistant"
	Name    string // Optional: participant name (user messages only)
	Content string
}

type Response struct {
	PromptTokens     int
	CompletionTokens int
}

// SanitizeName converts a display name to a valid OpenAI name parameter.
// The name must match ^[a-zA-Z0-9_-]{1,64}$.
// Invalid characters are replaced with underscores, and the result is truncated to 64 characters.
func SanitizeName(username string) string {
	sanitized := nameInvalidChars.ReplaceAllString(username, "_")
	if len(sanitized) > 64 {
		sanitized = sanitized[:64]
	}
	return sanitized
}

func Temp(t float64) *float64 {
	return &t
}
