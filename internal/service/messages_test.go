package service_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/imranmit2020/pro-login-flow-sub000/internal/mapper"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/model"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/platform"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/service"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/store"
)

var _ = Describe("MessagesService", func() {
	const pageA, pageB = "PA", "PB"

	var (
		ctx        context.Context
		now        time.Time
		ms         store.MessageStore
		clientA    *mockSocialClient
		clientB    *mockSocialClient
		background *service.Background
		svc        service.MessagesService
	)

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Now().UTC().Truncate(time.Second)
		identity := model.NewBusinessIdentity().With(pageA, "Smile Dental").With(pageB, "Smile Dental Downtown")
		ms = store.NewMemoryMessageStore(model.PlatformFacebook, identity)

		clientA = newMockSocialClient(pageA)
		clientA.addConversation("t_1",
			graphMessage("m_1", "u1", "Jane", pageA, "Can I book a cleaning?", now.Add(-time.Minute)))
		clientB = newMockSocialClient(pageB)

		registry := platform.NewRegistry()
		accountA := platform.Account{ID: pageA, Client: clientA}
		accountB := platform.Account{ID: pageB, Client: clientB}
		registry.Register(model.PlatformFacebook, accountA)
		registry.Register(model.PlatformFacebook, accountB)

		syncSvc := service.NewSyncService(service.SyncServiceParams{
			Platform: model.PlatformFacebook,
			Accounts: registry.Accounts(model.PlatformFacebook),
			Store:    ms,
			Mapper:   mapper.NewFacebookMapper(identity),
		})
		background = service.NewBackground(nil)
		svc = service.NewMessagesService(ms, syncSvc, registry, background, nil)
	})

	AfterEach(func() {
		Expect(background.Wait(ctx)).To(Succeed())
	})

	Describe("ListConversations", func() {
		It("falls back to the live API while the store is empty and syncs behind it", func() {
			list, err := svc.ListConversations(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(list.Source).To(Equal(service.SourceLive))
			Expect(list.Conversations).To(HaveLen(1))

			Expect(background.Wait(ctx)).To(Succeed())
			count, _ := ms.CountMessages(ctx)
			Expect(count).To(BeNumerically("==", 1))

			list, err = svc.ListConversations(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(list.Source).To(Equal(service.SourceStore))
		})
	})

	Describe("ConversationMessages", func() {
		It("requires a conversation id", func() {
			_, err := svc.ConversationMessages(ctx, "")
			Expect(err).To(MatchError(service.ErrInvalidRequest))
		})

		It("reads stored history in order", func() {
			row := customerRow(model.PlatformFacebook, "m_0", "t_1", pageA, now.Add(-time.Hour))
			_, err := ms.StoreMessage(ctx, &row)
			Expect(err).ToNot(HaveOccurred())

			thread, err := svc.ConversationMessages(ctx, "t_1")
			Expect(err).ToNot(HaveOccurred())
			Expect(thread.Source).To(Equal(service.SourceStore))
			Expect(thread.Messages[0].MessageID).To(Equal("m_0"))
		})
	})

	Describe("Send", func() {
		It("validates input", func() {
			_, err := svc.Send(ctx, service.SendParams{Message: "hi"})
			Expect(err).To(MatchError(service.ErrInvalidRequest))

			_, err = svc.Send(ctx, service.SendParams{RecipientID: "u1", Message: "  "})
			Expect(err).To(MatchError(service.ErrInvalidRequest))
		})

		It("sends from the page that received the message and marks it replied by a human", func() {
			row := customerRow(model.PlatformFacebook, "m_5", "t_5", pageB, now.Add(-time.Minute))
			_, err := ms.StoreMessage(ctx, &row)
			Expect(err).ToNot(HaveOccurred())

			result, err := svc.Send(ctx, service.SendParams{
				RecipientID:      "u1",
				Message:          "See you at 3pm",
				ReplyToMessageID: "m_5",
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Success).To(BeTrue())
			Expect(clientB.sentMessages()).To(HaveLen(1))
			Expect(clientA.sentMessages()).To(BeEmpty())

			stored, err := ms.GetMessage(ctx, "m_5")
			Expect(err).ToNot(HaveOccurred())
			Expect(stored.IsReplied).To(BeTrue())
			Expect(*stored.RepliedBy).To(Equal(model.RepliedByHuman))
		})

		It("needs an account when several pages are configured", func() {
			_, err := svc.Send(ctx, service.SendParams{RecipientID: "u1", Message: "hi"})
			Expect(err).To(MatchError(platform.ErrNoClient))
		})

		It("surfaces platform errors", func() {
			clientA.sendFn = func(context.Context, string, string) (platform.SendResult, error) {
				return platform.SendResult{}, &platform.Error{Platform: model.PlatformFacebook, Code: 10, Message: "permission denied"}
			}
			result, err := svc.Send(ctx, service.SendParams{RecipientID: "u1", Message: "hi", AccountID: pageA})
			Expect(err).To(HaveOccurred())
			Expect(result.Success).To(BeFalse())

			status, ok := platform.StatusFor(err)
			Expect(ok).To(BeTrue())
			Expect(status).To(Equal(403))
		})
	})

	Describe("MarkConversationRead", func() {
		It("marks every row of the thread", func() {
			for _, id := range []string{"m_a", "m_b"} {
				row := customerRow(model.PlatformFacebook, id, "t_7", pageA, now)
				_, err := ms.StoreMessage(ctx, &row)
				Expect(err).ToNot(HaveOccurred())
			}
			n, err := svc.MarkConversationRead(ctx, "t_7")
			Expect(err).ToNot(HaveOccurred())
			Expect(n).To(BeNumerically("==", 2))
		})
	})
})

var _ = Describe("GmailService", func() {
	var (
		ctx        context.Context
		client     *mockGmailClient
		background *service.Background
	)

	BeforeEach(func() {
		ctx = context.Background()
		background = service.NewBackground(nil)
		client = &mockGmailClient{messages: []platform.GmailMessage{
			{ID: "a", ThreadID: "th_a", SenderEmail: "pat@example.com", Timestamp: time.Now().Add(-time.Minute), Unread: true},
		}}
	})

	It("lists live mail", func() {
		svc := service.NewGmailService(client, nil, background, nil)
		msgs, err := svc.List(ctx, 10)
		Expect(err).ToNot(HaveOccurred())
		Expect(msgs).To(HaveLen(1))
		Expect(msgs[0].ID).To(Equal("gmail_a"))
	})

	It("hands fresh unread mail to auto-reply", func() {
		autoReply := service.NewAutoReplyService(service.AutoReplyParams{
			Stores:    store.NewMemoryStores(model.NewBusinessIdentity(), model.NewBusinessIdentity()),
			Gmail:     client,
			Generator: &mockGenerator{text: "Thanks, we will call you."},
			Toggle:    service.NewMemoryToggleStore(true),
		})
		svc := service.NewGmailService(client, autoReply, background, nil)

		_, err := svc.List(ctx, 10)
		Expect(err).ToNot(HaveOccurred())
		Expect(background.Wait(ctx)).To(Succeed())
		Expect(client.replies).To(HaveLen(1))
	})

	It("strips the feed prefix when marking read", func() {
		svc := service.NewGmailService(client, nil, background, nil)
		Expect(svc.MarkRead(ctx, "gmail_a")).To(Succeed())
		Expect(client.read).To(ConsistOf("a"))
	})

	DescribeTable("rejects replies that would break out of their header",
		func(to, subject string) {
			svc := service.NewGmailService(client, nil, background, nil)
			_, err := svc.Reply(ctx, platform.GmailReplyParams{ThreadID: "th_a", To: to, Subject: subject, Body: "See you"})
			Expect(err).To(MatchError(service.ErrInvalidRequest))
			Expect(client.replies).To(BeEmpty())
		},
		Entry("line break in the subject", "pat@example.com", "Hello\r\nBcc: someone@elsewhere.test"),
		Entry("line break in the recipient", "pat@example.com\nBcc: someone@elsewhere.test", "Hello"),
	)

	It("reports a missing client", func() {
		svc := service.NewGmailService(nil, nil, background, nil)
		_, err := svc.List(ctx, 10)
		Expect(err).To(MatchError(platform.ErrNoClient))
	})
})
