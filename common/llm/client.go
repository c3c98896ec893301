package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	defaultModel      = "gpt-4o-mini"
	defaultMaxTokens  = 500
	defaultMaxRetries = 2
	defaultTimeout    = 30 * time.Second
	retryBaseDelay    = 500 * time.Millisecond
)

type client struct {
	openai     openai.Client
	model      string
	maxRetries int
}

func New(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("API key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	// Retries happen in Chat so IsRetryable decides, not the SDK.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	return &client{
		openai:     openai.NewClient(opts...),
		model:      model,
		maxRetries: maxRetries,
	}, nil
}

// Chat asks for a schema-constrained answer and decodes it into result.
func (c *client) Chat(ctx context.Context, req Request, result any) (*Response, error) {
	params := c.params(req)

	var (
		resp *openai.ChatCompletion
		err  error
	)
	for attempt := 0; ; attempt++ {
		start := time.Now()
		resp, err = c.openai.Chat.Completions.New(ctx, params)
		if err == nil {
			slog.DebugContext(ctx, "llm chat completed",
				"model", c.model,
				"attempt", attempt+1,
				"duration_ms", time.Since(start).Milliseconds(),
				"prompt_tokens", resp.Usage.PromptTokens,
				"completion_tokens", resp.Usage.CompletionTokens)
			break
		}
		if attempt >= c.maxRetries || !IsRetryable(ctx, err) {
			return nil, fmt.Errorf("openai chat: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("openai chat: %w", ctx.Err())
		case <-time.After(retryBaseDelay << attempt):
		}
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("no choices in response")
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return nil, fmt.Errorf("%w: %s", ErrRefused, choice.Message.Refusal)
	}
	if choice.FinishReason == "length" {
		return nil, errors.New("response truncated by the token limit")
	}
	if err := json.Unmarshal([]byte(choice.Message.Content), result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &Response{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
	}, nil
}

func (c *client) params(req Request) openai.ChatCompletionNewParams {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	params := openai.ChatCompletionNewParams{
		Model:     c.model,
		Messages:  convertMessages(req.SystemPrompt, req.History),
		MaxTokens: openai.Int(int64(maxTokens)),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   req.SchemaName,
					Schema: req.Schema,
					Strict: openai.Bool(true),
				},
			},
		},
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	return params
}

func (c *client) Model() string {
	return c.model
}

func convertMessages(system string, history []Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	if system != "" {
		result = append(result, openai.SystemMessage(system))
	}

	for _, msg := range history {
		if msg.Role == "assistant" {
			result = append(result, openai.AssistantMessage(msg.Content))
			continue
		}
		name := SanitizeName(msg.Name)
		if name == "" {
			result = append(result, openai.UserMessage(msg.Content))
			continue
		}
		result = append(result, openai.ChatCompletionMessageParamUnion{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Name: openai.String(name),
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfString: openai.String(msg.Content),
				},
			},
		})
	}
	return result
}

// GenerateSchema reflects a strict JSON schema for T.
func GenerateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

// IsRetryable reports whether a failed call is worth repeating: rate limits,
// server errors and transport failures are; cancellations and other 4xx are not.
func IsRetryable(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		retryable := apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError
		level := slog.LevelWarn
		if !retryable {
			level = slog.LevelError
		}
		slog.Log(ctx, level, "llm api error",
			"status_code", apiErr.StatusCode,
			"error_code", apiErr.Code,
			"retryable", retryable)
		return retryable
	}

	slog.WarnContext(ctx, "llm transport error, will retry", "error", err)
	return true
}
