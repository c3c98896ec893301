package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/imranmit2020/pro-login-flow-sub000/internal/model"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/platform"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/store"
)

const graphTime = "2006-01-02T15:04:05-0700"

// mockSocialClient serves canned Graph data for one page or account.
type mockSocialClient struct {
	mu sync.Mutex

	accountID     string
	conversations []string
	messages      map[string][]platform.GraphMessage

	listConversationsErr error
	listMessagesErr      map[string]error
	sendFn               func(ctx context.Context, recipientID, text string) (platform.SendResult, error)

	sent []sentMessage
}

type sentMessage struct {
	RecipientID string
	Text        string
}

func newMockSocialClient(accountID string) *mockSocialClient {
	return &mockSocialClient{
		accountID:       accountID,
		messages:        make(map[string][]platform.GraphMessage),
		listMessagesErr: make(map[string]error),
	}
}

func (m *mockSocialClient) addConversation(id string, msgs ...platform.GraphMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations = append(m.conversations, id)
	m.messages[id] = msgs
}

func (m *mockSocialClient) ListConversations(ctx context.Context, limit int) ([]platform.GraphConversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listConversationsErr != nil {
		return nil, m.listConversationsErr
	}
	out := make([]platform.GraphConversation, 0, len(m.conversations))
	for _, id := range m.conversations {
		if len(out) == limit {
			break
		}
		out = append(out, platform.GraphConversation{ID: id})
	}
	return out, nil
}

func (m *mockSocialClient) ListMessages(ctx context.Context, conversationID string, limit int) ([]platform.GraphMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.listMessagesErr[conversationID]; err != nil {
		return nil, err
	}
	msgs, ok := m.messages[conversationID]
	if !ok {
		return nil, &platform.Error{Platform: model.PlatformFacebook, Code: 100, Message: "unknown conversation"}
	}
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (m *mockSocialClient) SendMessage(ctx context.Context, recipientID, text string) (platform.SendResult, error) {
	m.mu.Lock()
	m.sent = append(m.sent, sentMessage{RecipientID: recipientID, Text: text})
	n := len(m.sent)
	fn := m.sendFn
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, recipientID, text)
	}
	return platform.SendResult{Success: true, MessageID: fmt.Sprintf("m_reply_%d", n)}, nil
}

func (m *mockSocialClient) sentMessages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage{}, m.sent...)
}

type mockGenerator struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
	seen  []string
}

func (m *mockGenerator) Generate(ctx context.Context, msg model.UnifiedMessage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.seen = append(m.seen, msg.ID)
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

func (m *mockGenerator) seenIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.seen...)
}

func (m *mockGenerator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockGmailClient struct {
	mu       sync.Mutex
	messages []platform.GmailMessage
	listErr  error
	replies  []platform.GmailReplyParams
	read     []string
}

func (m *mockGmailClient) ListMessages(ctx context.Context, limit int) ([]platform.GmailMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.messages, nil
}

func (m *mockGmailClient) ReplyToThread(ctx context.Context, params platform.GmailReplyParams) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, params)
	return "gmail_sent_1", nil
}

func (m *mockGmailClient) MarkRead(ctx context.Context, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.read = append(m.read, messageID)
	return nil
}

// recordingEnqueuer captures what sync hands to auto-reply.
type recordingEnqueuer struct {
	mu       sync.Mutex
	messages []model.StoredMessage
	catchUps int
}

func (r *recordingEnqueuer) EnqueueAutoReply(ctx context.Context, msg model.StoredMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

func (r *recordingEnqueuer) EnqueueCatchUp(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.catchUps++
	return nil
}

func (r *recordingEnqueuer) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.messages))
	for _, m := range r.messages {
		ids = append(ids, m.MessageID)
	}
	return ids
}

// failingStore wraps a MessageStore and fails reads on demand.
type failingStore struct {
	store.MessageStore
	readErr error
}

func (f *failingStore) GetRecentMessages(ctx context.Context, limit int) ([]model.StoredMessage, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.MessageStore.GetRecentMessages(ctx, limit)
}

func (f *failingStore) GetConversations(ctx context.Context) ([]model.Conversation, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.MessageStore.GetConversations(ctx)
}

var errUpstream = errors.New("upstream unavailable")

func text(s string) *string { return &s }

func graphMessage(id, fromID, fromName, toID, body string, at time.Time) platform.GraphMessage {
	return platform.GraphMessage{
		ID:          id,
		CreatedTime: at.Format(graphTime),
		From:        &platform.GraphUser{ID: fromID, Name: fromName},
		To:          &platform.GraphUsers{Data: []platform.GraphUser{{ID: toID}}},
		Message:     text(body),
	}
}

func customerRow(p model.Platform, id, conv, recipient string, at time.Time) model.StoredMessage {
	return model.StoredMessage{
		MessageID:      id,
		ConversationID: conv,
		SenderID:       "u1",
		SenderName:     "Jane",
		RecipientID:    recipient,
		MessageText:    text("hello from " + id),
		Timestamp:      at,
		Platform:       p,
	}
}
