package reply_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/imranmit2020/pro-login-flow-sub000/common/llm"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/model"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/reply"
)

var customerMessage = model.UnifiedMessage{
	ID:             "m1",
	Platform:       model.PlatformFacebook,
	SenderID:       "u1",
	SenderName:     "Jane",
	Content:        model.MessageContent{Text: "Do you have openings Friday?"},
	Timestamp:      time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	ConversationID: "c1",
}

var _ = Describe("WebhookGenerator", func() {
	var (
		ctx      context.Context
		server   *httptest.Server
		response string
		status   int
		received reply.WebhookPayload
	)

	BeforeEach(func() {
		ctx = context.Background()
		status = http.StatusOK
		received = reply.WebhookPayload{}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.Method).To(Equal(http.MethodPost))
			Expect(r.Header.Get("Content-Type")).To(Equal("application/json"))
			Expect(json.NewDecoder(r.Body).Decode(&received)).To(Succeed())
			w.WriteHeader(status)
			_, _ = w.Write([]byte(response))
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	generate := func() (string, error) {
		g, err := reply.NewWebhookGenerator(reply.WebhookConfig{URL: server.URL, Timeout: time.Second})
		Expect(err).ToNot(HaveOccurred())
		return g.Generate(ctx, customerMessage)
	}

	It("posts the message envelope", func() {
		response = `{"output":"See you Friday"}`
		_, err := generate()
		Expect(err).ToNot(HaveOccurred())
		Expect(received.MessageID).To(Equal("m1"))
		Expect(received.Platform).To(Equal(model.PlatformFacebook))
		Expect(received.SenderID).To(Equal("u1"))
		Expect(received.SenderName).To(Equal("Jane"))
		Expect(received.Content).To(Equal("Do you have openings Friday?"))
		Expect(received.ConversationID).To(Equal("c1"))
		Expect(received.Timestamp.Equal(customerMessage.Timestamp)).To(BeTrue())
	})

	DescribeTable("reads the reply text",
		func(body, expected string) {
			response = body
			text, err := generate()
			Expect(err).ToNot(HaveOccurred())
			Expect(text).To(Equal(expected))
		},
		Entry("output field", `{"output":"From output"}`, "From output"),
		Entry("reply field", `{"reply":"Thanks!"}`, "Thanks!"),
		Entry("output wins over reply", `{"output":"first","reply":"second"}`, "first"),
		Entry("array of items", `[{"output":"From array"}]`, "From array"),
		Entry("empty object falls back", `{}`, reply.DefaultFallbackReply),
		Entry("blank reply falls back", `{"reply":"   "}`, reply.DefaultFallbackReply),
		Entry("non-json falls back", `ok`, reply.DefaultFallbackReply),
	)

	It("uses the configured fallback", func() {
		response = `{}`
		g, err := reply.NewWebhookGenerator(reply.WebhookConfig{URL: server.URL, Fallback: "We'll be in touch."})
		Expect(err).ToNot(HaveOccurred())
		text, err := g.Generate(ctx, customerMessage)
		Expect(err).ToNot(HaveOccurred())
		Expect(text).To(Equal("We'll be in touch."))
	})

	It("fails on non-2xx responses", func() {
		status = http.StatusBadGateway
		response = `{"reply":"ignored"}`
		_, err := generate()
		Expect(err).To(HaveOccurred())
	})

	It("requires a url", func() {
		_, err := reply.NewWebhookGenerator(reply.WebhookConfig{})
		Expect(err).To(HaveOccurred())
	})
})

type fakeLLM struct {
	reply string
	err   error
	req   llm.Request
}

func (f *fakeLLM) Chat(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	data, _ := json.Marshal(map[string]string{"reply": f.reply})
	return &llm.Response{}, json.Unmarshal(data, result)
}

func (f *fakeLLM) Model() string { return "fake" }

var _ = Describe("LLMGenerator", func() {
	It("returns the drafted reply", func() {
		client := &fakeLLM{reply: "We have openings at 10am."}
		text, err := reply.NewLLMGenerator(client, "").Generate(context.Background(), customerMessage)
		Expect(err).ToNot(HaveOccurred())
		Expect(text).To(Equal("We have openings at 10am."))
		Expect(client.req.History).To(HaveLen(1))
		Expect(client.req.History[0].Name).To(Equal("Jane"))
		Expect(client.req.SystemPrompt).To(ContainSubstring("facebook"))
	})

	It("falls back on an empty draft", func() {
		text, err := reply.NewLLMGenerator(&fakeLLM{}, "").Generate(context.Background(), customerMessage)
		Expect(err).ToNot(HaveOccurred())
		Expect(text).To(Equal(reply.DefaultFallbackReply))
	})

	It("propagates model errors", func() {
		_, err := reply.NewLLMGenerator(&fakeLLM{err: errors.New("boom")}, "").Generate(context.Background(), customerMessage)
		Expect(err).To(HaveOccurred())
	})
})
