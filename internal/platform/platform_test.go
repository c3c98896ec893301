package platform

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	fb "github.com/huandu/facebook/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/api/gmail/v1"

	"github.com/imranmit2020/pro-login-flow-sub000/internal/model"
)

var _ = Describe("Error", func() {
	DescribeTable("HTTPStatus",
		func(status, code, expected int) {
			err := &Error{Platform: model.PlatformFacebook, Status: status, Code: code}
			Expect(err.HTTPStatus()).To(Equal(expected))
		},
		Entry("transport 403 passes through", http.StatusForbidden, 0, http.StatusForbidden),
		Entry("transport 401 passes through", http.StatusUnauthorized, 0, http.StatusUnauthorized),
		Entry("graph permission code", 0, 200, http.StatusForbidden),
		Entry("graph capability code", 0, 10, http.StatusForbidden),
		Entry("graph expired token", 0, 190, http.StatusUnauthorized),
		Entry("graph invalid parameter", 0, 100, http.StatusBadRequest),
		Entry("anything else", http.StatusBadGateway, 1, http.StatusInternalServerError),
	)

	It("is found through wrapping", func() {
		wrapped := fmt.Errorf("syncing: %w", &Error{Platform: model.PlatformInstagram, Code: 190, Message: "expired"})
		status, ok := StatusFor(wrapped)
		Expect(ok).To(BeTrue())
		Expect(status).To(Equal(http.StatusUnauthorized))

		_, ok = StatusFor(errors.New("plain"))
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("GraphClient", func() {
	It("preserves the vendor message and code", func() {
		c := &GraphClient{platform: model.PlatformFacebook}
		err := c.wrapError("sending message", &fb.Error{Message: "(#10) outside allowed window", Code: 10})

		var perr *Error
		Expect(errors.As(err, &perr)).To(BeTrue())
		Expect(perr.Code).To(Equal(10))
		Expect(perr.Message).To(ContainSubstring("outside allowed window"))
		Expect(perr.HTTPStatus()).To(Equal(http.StatusForbidden))
	})

	It("decodes results through json tags", func() {
		res := fb.Result{
			"data": []any{
				map[string]any{
					"id":           "m1",
					"created_time": "2024-05-01T10:00:00+0000",
					"from":         map[string]any{"id": "u1", "name": "Jane"},
					"message":      "hello",
				},
			},
		}
		var page struct {
			Data []GraphMessage `json:"data"`
		}
		Expect(decodeResult(res, &page)).To(Succeed())
		Expect(page.Data).To(HaveLen(1))
		Expect(page.Data[0].From.ID).To(Equal("u1"))
		Expect(*page.Data[0].Message).To(Equal("hello"))
	})

	It("rejects non-social platforms", func() {
		_, err := NewGraphClient(model.PlatformGmail, GraphConfig{AccessToken: "t"})
		Expect(err).To(HaveOccurred())
	})

	It("requires an access token", func() {
		_, err := NewGraphClient(model.PlatformFacebook, GraphConfig{})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("parseGmailMessage", func() {
	It("extracts sender, subject, body and attachments", func() {
		body := base64.URLEncoding.EncodeToString([]byte("Can I reschedule?"))
		msg := &gmail.Message{
			Id:           "g1",
			ThreadId:     "t1",
			InternalDate: time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC).UnixMilli(),
			LabelIds:     []string{"INBOX", "UNREAD"},
			Payload: &gmail.MessagePart{
				MimeType: "multipart/mixed",
				Headers: []*gmail.MessagePartHeader{
					{Name: "From", Value: "Jane Doe <jane@example.com>"},
					{Name: "Subject", Value: "Appointment"},
				},
				Parts: []*gmail.MessagePart{
					{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: body}},
					{MimeType: "application/pdf", Filename: "insurance.pdf", Body: &gmail.MessagePartBody{AttachmentId: "att1"}},
				},
			},
		}

		out := parseGmailMessage(msg)
		Expect(out.Sender).To(Equal("Jane Doe"))
		Expect(out.SenderEmail).To(Equal("jane@example.com"))
		Expect(out.Subject).To(Equal("Appointment"))
		Expect(out.Body).To(Equal("Can I reschedule?"))
		Expect(out.Unread).To(BeTrue())
		Expect(out.Timestamp).To(Equal(time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)))
		Expect(out.Attachments).To(ConsistOf(GmailAttachment{Filename: "insurance.pdf", MimeType: "application/pdf", ID: "att1"}))
	})

	It("falls back to the snippet when there is no plain text part", func() {
		out := parseGmailMessage(&gmail.Message{Id: "g2", Snippet: "preview"})
		Expect(out.Body).To(Equal("preview"))
		Expect(out.Unread).To(BeFalse())
	})
})
