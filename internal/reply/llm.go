package reply

import (
	"context"
	"fmt"

	"github.com/imranmit2020/pro-login-flow-sub000/common/llm"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/model"
)

const systemPrompt = `You are the front-desk assistant of a dental practice answering patients on %s.
Reply in the patient's language, in at most three short sentences.
Be warm and professional. Never give a diagnosis or quote prices.
For appointments, ask for a preferred day and time and say the team will confirm.`

type draftReply struct {
	Reply string `json:"reply" jsonschema:"description=The message to send to the patient"`
}

// LLMGenerator drafts replies with an OpenAI-compatible model.
type LLMGenerator struct {
	client   llm.Client
	fallback string
}

func NewLLMGenerator(client llm.Client, fallback string) *LLMGenerator {
	return &LLMGenerator{client: client, fallback: fallback}
}

func (g *LLMGenerator) Generate(ctx context.Context, msg model.UnifiedMessage) (string, error) {
	var draft draftReply
	_, err := g.client.Chat(ctx, llm.Request{
		SystemPrompt: fmt.Sprintf(systemPrompt, msg.Platform),
		History: []llm.Message{{
			Role:    "user",
			Name:    msg.SenderName,
			Content: msg.Content.Text,
		}},
		SchemaName:  "patient_reply",
		Schema:      llm.GenerateSchema[draftReply](),
		Temperature: llm.Temp(0.3),
	}, &draft)
	if err != nil {
		return "", fmt.Errorf("drafting reply: %w", err)
	}
	return fallbackOr(draft.Reply, g.fallback), nil
}
