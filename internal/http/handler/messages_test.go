package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/imranmit2020/pro-login-flow-sub000/internal/http/handler"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/model"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/platform"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/service"
)

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			Expect(json.NewEncoder(&buf).Encode(b)).To(Succeed())
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var resp map[string]any
	Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
	return resp
}

var _ = Describe("MessagesHandler", func() {
	var (
		router *gin.Engine
		fb     *mockMessagesService
		gmail  *mockGmailService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		fb = &mockMessagesService{platform: model.PlatformFacebook}
		gmail = &mockGmailService{}
		h := handler.NewMessagesHandler(&fakeServices{
			messages: map[model.Platform]service.MessagesService{model.PlatformFacebook: fb},
			gmail:    gmail,
		})
		router = gin.New()
		router.GET("/api/:platform/messages", h.List)
		router.POST("/api/:platform/messages", h.Send)
		router.PUT("/api/:platform/messages", h.Update)
	})

	Describe("List", func() {
		It("lists conversations with their source", func() {
			fb.listFn = func(context.Context) (*service.ConversationList, error) {
				return &service.ConversationList{
					Platform:      model.PlatformFacebook,
					Source:        service.SourceLive,
					Conversations: []model.Conversation{{ConversationID: "t_1"}},
				}, nil
			}
			w := doJSON(router, http.MethodGet, "/api/facebook/messages", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decode(w)
			Expect(resp["success"]).To(BeTrue())
			Expect(resp["source"]).To(Equal("live"))
			Expect(resp["conversations"]).To(HaveLen(1))
		})

		It("returns one thread when a conversation id is given", func() {
			w := doJSON(router, http.MethodGet, "/api/facebook/messages?conversationId=t_9", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decode(w)
			Expect(resp["conversationId"]).To(Equal("t_9"))
			Expect(resp["messages"]).To(BeEmpty())
		})

		It("lists live gmail", func() {
			gmail.listFn = func(_ context.Context, limit int) ([]model.UnifiedMessage, error) {
				Expect(limit).To(Equal(5))
				return []model.UnifiedMessage{{ID: "gmail_a", Platform: model.PlatformGmail}}, nil
			}
			w := doJSON(router, http.MethodGet, "/api/gmail/messages?limit=5", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decode(w)["messages"]).To(HaveLen(1))
		})

		It("rejects unknown platforms", func() {
			w := doJSON(router, http.MethodGet, "/api/myspace/messages", nil)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(decode(w)["success"]).To(BeFalse())
		})

		It("returns 503 when gmail is not configured", func() {
			gmail.listFn = func(context.Context, int) ([]model.UnifiedMessage, error) {
				return nil, fmt.Errorf("gmail: %w", platform.ErrNoClient)
			}
			w := doJSON(router, http.MethodGet, "/api/gmail/messages", nil)
			Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
		})

		It("returns 400 for platforms without a messages service", func() {
			w := doJSON(router, http.MethodGet, "/api/instagram/messages", nil)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("Send", func() {
		It("sends a social reply", func() {
			var got service.SendParams
			fb.sendFn = func(_ context.Context, params service.SendParams) (platform.SendResult, error) {
				got = params
				return platform.SendResult{Success: true, MessageID: "m_out"}, nil
			}
			w := doJSON(router, http.MethodPost, "/api/facebook/messages", map[string]string{
				"recipientId":      "u1",
				"message":          "See you at 3pm",
				"replyToMessageId": "m_1",
			})

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decode(w)["messageId"]).To(Equal("m_out"))
			Expect(got.ReplyToMessageID).To(Equal("m_1"))
		})

		It("returns 400 when required fields are missing", func() {
			w := doJSON(router, http.MethodPost, "/api/facebook/messages", map[string]string{"message": "hi"})
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("maps platform auth errors", func() {
			fb.sendFn = func(context.Context, service.SendParams) (platform.SendResult, error) {
				return platform.SendResult{}, &platform.Error{Platform: model.PlatformFacebook, Code: 190, Message: "token expired"}
			}
			w := doJSON(router, http.MethodPost, "/api/facebook/messages", map[string]string{"recipientId": "u1", "message": "hi"})
			Expect(w.Code).To(Equal(http.StatusUnauthorized))
		})

		It("returns 500 on unexpected failures", func() {
			fb.sendFn = func(context.Context, service.SendParams) (platform.SendResult, error) {
				return platform.SendResult{}, errors.New("boom")
			}
			w := doJSON(router, http.MethodPost, "/api/facebook/messages", map[string]string{"recipientId": "u1", "message": "hi"})
			Expect(w.Code).To(Equal(http.StatusInternalServerError))
			Expect(decode(w)["error"]).To(Equal("boom"))
		})

		It("replies on a gmail thread", func() {
			var got platform.GmailReplyParams
			gmail.replyFn = func(_ context.Context, params platform.GmailReplyParams) (string, error) {
				got = params
				return "g_1", nil
			}
			w := doJSON(router, http.MethodPost, "/api/gmail/messages", map[string]string{
				"threadId": "th_a",
				"to":       "pat@example.com",
				"subject":  "Re: Cleaning",
				"body":     "Tuesday works.",
			})

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(got.ThreadID).To(Equal("th_a"))
		})
	})

	Describe("Update", func() {
		It("marks a conversation read", func() {
			fb.markReadFn = func(_ context.Context, id string) (int64, error) {
				Expect(id).To(Equal("t_1"))
				return 3, nil
			}
			w := doJSON(router, http.MethodPut, "/api/facebook/messages", map[string]string{
				"action":         "mark_read",
				"conversationId": "t_1",
			})

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decode(w)["updated"]).To(BeNumerically("==", 3))
		})

		It("queues a conversation sync", func() {
			w := doJSON(router, http.MethodPut, "/api/facebook/messages", map[string]string{
				"action":         "sync_conversation",
				"conversationId": "t_2",
			})

			Expect(w.Code).To(Equal(http.StatusAccepted))
			Expect(fb.syncRequested).To(ConsistOf("t_2"))
		})

		It("marks a gmail message read", func() {
			var got string
			gmail.markReadFn = func(_ context.Context, id string) error {
				got = id
				return nil
			}
			w := doJSON(router, http.MethodPut, "/api/gmail/messages", map[string]string{
				"action":    "mark_read",
				"messageId": "gmail_a",
			})

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(got).To(Equal("gmail_a"))
		})

		It("rejects unknown actions", func() {
			w := doJSON(router, http.MethodPut, "/api/facebook/messages", map[string]string{
				"action":         "archive",
				"conversationId": "t_1",
			})
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("requires a conversation id for social actions", func() {
			w := doJSON(router, http.MethodPut, "/api/facebook/messages", `{"action":"mark_read"}`)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})
})
