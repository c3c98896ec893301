package platform

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// fakeGmail serves the two endpoints ReplyToThread touches and keeps every sent message.
type fakeGmail struct {
	mu     sync.Mutex
	thread *gmail.Thread
	sent   []*gmail.Message
}

func (f *fakeGmail) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/messages/send"):
		body, _ := io.ReadAll(r.Body)
		var msg gmail.Message
		if err := json.Unmarshal(body, &msg); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.sent = append(f.sent, &msg)
		_ = json.NewEncoder(w).Encode(gmail.Message{Id: "sent_1", ThreadId: msg.ThreadId})
	case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/threads/"):
		if f.thread == nil {
			http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(f.thread)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeGmail) lastSent() *mail.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	Expect(f.sent).ToNot(BeEmpty())
	raw, err := base64.URLEncoding.DecodeString(f.sent[len(f.sent)-1].Raw)
	Expect(err).ToNot(HaveOccurred())
	msg, err := mail.ReadMessage(strings.NewReader(string(raw)))
	Expect(err).ToNot(HaveOccurred())
	return msg
}

var _ = Describe("gmailClient.ReplyToThread", func() {
	var (
		ctx    context.Context
		fake   *fakeGmail
		server *httptest.Server
		client *gmailClient
	)

	BeforeEach(func() {
		ctx = context.Background()
		fake = &fakeGmail{}
		server = httptest.NewServer(fake)
		DeferCleanup(server.Close)

		svc, err := gmail.NewService(ctx,
			option.WithHTTPClient(server.Client()),
			option.WithEndpoint(server.URL+"/"))
		Expect(err).ToNot(HaveOccurred())
		client = &gmailClient{svc: svc, userID: "me"}
	})

	It("sends a threaded plain-text reply", func() {
		fake.thread = &gmail.Thread{Id: "th_1", Messages: []*gmail.Message{{
			Id: "g1",
			Payload: &gmail.MessagePart{Headers: []*gmail.MessagePartHeader{
				{Name: "Message-ID", Value: "<first@mail.example.com>"},
			}},
		}, {
			Id: "g2",
			Payload: &gmail.MessagePart{Headers: []*gmail.MessagePartHeader{
				{Name: "Message-ID", Value: "<second@mail.example.com>"},
				{Name: "References", Value: "<first@mail.example.com>"},
			}},
		}}}

		id, err := client.ReplyToThread(ctx, GmailReplyParams{
			ThreadID: "th_1",
			To:       "Jane Doe <jane@example.com>",
			Subject:  "Cleaning",
			Body:     "Friday at 10 works.",
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(id).To(Equal("sent_1"))
		Expect(fake.sent[0].ThreadId).To(Equal("th_1"))

		msg := fake.lastSent()
		Expect(msg.Header.Get("To")).To(Equal(`"Jane Doe" <jane@example.com>`))
		Expect(msg.Header.Get("Subject")).To(Equal("Re: Cleaning"))
		Expect(msg.Header.Get("In-Reply-To")).To(Equal("<second@mail.example.com>"))
		Expect(msg.Header.Get("References")).To(Equal("<first@mail.example.com> <second@mail.example.com>"))
		body, _ := io.ReadAll(msg.Body)
		Expect(string(body)).To(Equal("Friday at 10 works."))
	})

	It("keeps a line break in the subject from adding headers", func() {
		_, err := client.ReplyToThread(ctx, GmailReplyParams{
			ThreadID: "th_1",
			To:       "patient@example.com",
			Subject:  "Hello\r\nBcc: someone@elsewhere.test",
			Body:     "Hi",
		})
		Expect(err).ToNot(HaveOccurred())

		msg := fake.lastSent()
		Expect(msg.Header).ToNot(HaveKey("Bcc"))
		Expect(msg.Header.Get("Subject")).To(Equal("Re: Hello Bcc: someone@elsewhere.test"))
		Expect(msg.Header.Get("In-Reply-To")).To(BeEmpty())
	})

	It("refuses a recipient that carries extra headers", func() {
		_, err := client.ReplyToThread(ctx, GmailReplyParams{
			ThreadID: "th_1",
			To:       "patient@example.com\r\nBcc: someone@elsewhere.test",
			Body:     "Hi",
		})
		Expect(err).To(MatchError(ErrInvalidHeader))
		Expect(fake.sent).To(BeEmpty())
	})

	It("refuses more than one recipient", func() {
		_, err := client.ReplyToThread(ctx, GmailReplyParams{
			To:   "a@example.com, b@example.com",
			Body: "Hi",
		})
		Expect(err).To(MatchError(ErrInvalidHeader))
	})

	It("encodes a non-ASCII subject", func() {
		_, err := client.ReplyToThread(ctx, GmailReplyParams{
			To:      "patient@example.com",
			Subject: "Zahnreinigung für Jürgen",
			Body:    "Hi",
		})
		Expect(err).ToNot(HaveOccurred())

		msg := fake.lastSent()
		raw := msg.Header["Subject"][0]
		Expect(raw).To(HavePrefix("=?utf-8?q?"))

		decoded, err := new(mime.WordDecoder).DecodeHeader(raw)
		Expect(err).ToNot(HaveOccurred())
		Expect(decoded).To(Equal("Re: Zahnreinigung für Jürgen"))
	})
})
