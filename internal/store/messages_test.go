package store_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/imranmit2020/pro-login-flow-sub000/internal/mapper"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/model"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/platform"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/store"
)

const pageID = "P"

var base = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func text(s string) *string { return &s }

func customerRow(id, conv string, at time.Duration) model.StoredMessage {
	return model.StoredMessage{
		MessageID:      id,
		ConversationID: conv,
		SenderID:       "u1",
		SenderName:     "Jane",
		RecipientID:    pageID,
		MessageText:    text("hi " + id),
		Timestamp:      base.Add(at),
		Platform:       model.PlatformFacebook,
	}
}

func pageRow(id, conv string, at time.Duration) model.StoredMessage {
	human := model.RepliedByHuman
	return model.StoredMessage{
		MessageID:      id,
		ConversationID: conv,
		SenderID:       pageID,
		SenderName:     "Smile Dental",
		RecipientID:    "u1",
		MessageText:    text("reply " + id),
		Timestamp:      base.Add(at),
		Platform:       model.PlatformFacebook,
		IsReplied:      true,
		RepliedBy:      &human,
	}
}

var _ = Describe("MessageStore", func() {
	var (
		ctx      context.Context
		identity model.BusinessIdentity
		s        store.MessageStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		identity = model.NewBusinessIdentity().With(pageID, "Smile Dental")
		s = store.NewMemoryMessageStore(model.PlatformFacebook, identity)
	})

	Describe("StoreMessages", func() {
		It("builds one conversation from a customer and a page message", func() {
			result, err := s.StoreMessages(ctx, []model.StoredMessage{
				customerRow("m1", "c1", 0),
				pageRow("m2", "c1", time.Minute),
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Stored).To(Equal(2))
			Expect(result.Inserted).To(HaveLen(2))

			convs, err := s.GetConversations(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(convs).To(HaveLen(1))

			conv := convs[0]
			Expect(conv.ConversationID).To(Equal("c1"))
			Expect(conv.UnreadCount).To(Equal(1))
			Expect(conv.IsReplied).To(BeTrue())
			Expect(conv.Messages).To(HaveLen(2))
			Expect(conv.Messages[0].MessageID).To(Equal("m1"))
			Expect(conv.Messages[1].MessageID).To(Equal("m2"))
			Expect(conv.LastMessage.MessageID).To(Equal("m2"))
			Expect(conv.Participants).To(Equal([]string{"Jane", "Smile Dental"}))
		})

		It("never duplicates a message stored twice", func() {
			_, err := s.StoreMessages(ctx, []model.StoredMessage{customerRow("m1", "c1", 0)})
			Expect(err).ToNot(HaveOccurred())

			result, err := s.StoreMessages(ctx, []model.StoredMessage{customerRow("m1", "c1", 0)})
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Stored).To(Equal(1))
			Expect(result.Inserted).To(BeEmpty())

			count, err := s.CountMessages(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(count).To(Equal(int64(1)))
		})

		It("leaves reply state unchanged when the same message is stored again", func() {
			_, err := s.StoreMessages(ctx, []model.StoredMessage{customerRow("m1", "c1", 0), pageRow("m2", "c1", time.Minute)})
			Expect(err).ToNot(HaveOccurred())

			_, err = s.StoreMessages(ctx, []model.StoredMessage{customerRow("m1", "c1", 0), pageRow("m2", "c1", time.Minute)})
			Expect(err).ToNot(HaveOccurred())

			m1, err := s.GetMessage(ctx, "m1")
			Expect(err).ToNot(HaveOccurred())
			Expect(m1.IsReplied).To(BeFalse())
			Expect(m1.RepliedBy).To(BeNil())

			m2, err := s.GetMessage(ctx, "m2")
			Expect(err).ToNot(HaveOccurred())
			Expect(m2.IsReplied).To(BeTrue())
			Expect(*m2.RepliedBy).To(Equal(model.RepliedByHuman))
		})

		It("does not un-reply a message when a later sync stores it again", func() {
			_, err := s.StoreMessage(ctx, ptr(customerRow("m1", "c1", 0)))
			Expect(err).ToNot(HaveOccurred())
			Expect(s.MarkMessageAsReplied(ctx, "m1", model.RepliedByAI, "r1")).To(Succeed())

			inserted, err := s.StoreMessage(ctx, ptr(customerRow("m1", "c1", 0)))
			Expect(err).ToNot(HaveOccurred())
			Expect(inserted).To(BeFalse())

			m1, err := s.GetMessage(ctx, "m1")
			Expect(err).ToNot(HaveOccurred())
			Expect(m1.IsReplied).To(BeTrue())
			Expect(*m1.RepliedBy).To(Equal(model.RepliedByAI))
			Expect(*m1.ReplyMessageID).To(Equal("r1"))
		})

		It("overwrites mutable content on conflict", func() {
			_, err := s.StoreMessage(ctx, ptr(customerRow("m1", "c1", 0)))
			Expect(err).ToNot(HaveOccurred())

			edited := customerRow("m1", "c1", 0)
			edited.MessageText = text("edited")
			_, err = s.StoreMessage(ctx, &edited)
			Expect(err).ToNot(HaveOccurred())

			m1, err := s.GetMessage(ctx, "m1")
			Expect(err).ToNot(HaveOccurred())
			Expect(m1.Text()).To(Equal("edited"))
		})

		It("keeps rows stored before a cancelled write", func() {
			cctx, cancel := context.WithCancel(ctx)
			_, err := s.StoreMessage(cctx, ptr(customerRow("m1", "c1", 0)))
			Expect(err).ToNot(HaveOccurred())
			cancel()

			result, err := s.StoreMessages(cctx, []model.StoredMessage{customerRow("m2", "c1", time.Minute)})
			Expect(err).To(HaveOccurred())
			Expect(result.Stored).To(Equal(0))

			count, _ := s.CountMessages(ctx)
			Expect(count).To(Equal(int64(1)))
		})
	})

	Describe("MarkMessageAsReplied", func() {
		It("updates only the reply fields", func() {
			original := customerRow("m1", "c1", 0)
			_, err := s.StoreMessage(ctx, &original)
			Expect(err).ToNot(HaveOccurred())

			Expect(s.MarkMessageAsReplied(ctx, "m1", model.RepliedByAI, "out-1")).To(Succeed())

			m1, err := s.GetMessage(ctx, "m1")
			Expect(err).ToNot(HaveOccurred())
			Expect(m1.IsReplied).To(BeTrue())
			Expect(*m1.RepliedBy).To(Equal(model.RepliedByAI))
			Expect(*m1.ReplyMessageID).To(Equal("out-1"))
			Expect(m1.Text()).To(Equal(original.Text()))
			Expect(m1.Timestamp).To(Equal(original.Timestamp))
			Expect(m1.SenderID).To(Equal(original.SenderID))
		})

		It("returns ErrNotFound for unknown messages", func() {
			err := s.MarkMessageAsReplied(ctx, "missing", model.RepliedByHuman, "")
			Expect(errors.Is(err, store.ErrNotFound)).To(BeTrue())
		})
	})

	Describe("GetUnrepliedMessages", func() {
		It("returns unreplied rows oldest first", func() {
			_, err := s.StoreMessages(ctx, []model.StoredMessage{
				customerRow("m3", "c2", 3*time.Minute),
				customerRow("m1", "c1", 0),
				pageRow("m2", "c1", time.Minute),
			})
			Expect(err).ToNot(HaveOccurred())

			rows, err := s.GetUnrepliedMessages(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(messageIDs(rows)).To(Equal([]string{"m1", "m3"}))
		})
	})

	Describe("GetRecentMessages", func() {
		It("returns the newest rows first up to the limit", func() {
			_, err := s.StoreMessages(ctx, []model.StoredMessage{
				customerRow("m1", "c1", 0),
				customerRow("m2", "c1", time.Minute),
				customerRow("m3", "c2", 2*time.Minute),
			})
			Expect(err).ToNot(HaveOccurred())

			rows, err := s.GetRecentMessages(ctx, 2)
			Expect(err).ToNot(HaveOccurred())
			Expect(messageIDs(rows)).To(Equal([]string{"m3", "m2"}))
		})

		DescribeTable("falls back to the default limit",
			func(limit int) {
				rows := make([]model.StoredMessage, 0, store.DefaultRecentLimit+5)
				for i := range store.DefaultRecentLimit + 5 {
					rows = append(rows, customerRow(fmt.Sprintf("m%03d", i), "c1", time.Duration(i)*time.Second))
				}
				_, err := s.StoreMessages(ctx, rows)
				Expect(err).ToNot(HaveOccurred())

				recent, err := s.GetRecentMessages(ctx, limit)
				Expect(err).ToNot(HaveOccurred())
				Expect(recent).To(HaveLen(store.DefaultRecentLimit))
				Expect(recent[0].MessageID).To(Equal(fmt.Sprintf("m%03d", store.DefaultRecentLimit+4)))
			},
			Entry("zero", 0),
			Entry("negative", -1),
		)
	})

	Describe("MarkConversationRead", func() {
		It("marks every unread row in the conversation", func() {
			_, err := s.StoreMessages(ctx, []model.StoredMessage{
				customerRow("m1", "c1", 0),
				customerRow("m2", "c1", time.Minute),
				customerRow("m3", "c2", 2*time.Minute),
			})
			Expect(err).ToNot(HaveOccurred())

			n, err := s.MarkConversationRead(ctx, "c1")
			Expect(err).ToNot(HaveOccurred())
			Expect(n).To(Equal(int64(2)))

			rows, _ := s.GetConversationMessages(ctx, "c1")
			for _, r := range rows {
				Expect(r.IsRead).To(BeTrue())
			}
			m3, _ := s.GetMessage(ctx, "m3")
			Expect(m3.IsRead).To(BeFalse())
		})
	})

	Describe("Instagram directionality through the store", func() {
		const businessID = "17841475533389585"

		It("stores the business account's message as replied and others as unreplied", func() {
			igIdentity := model.NewBusinessIdentity().With(businessID, "Smile Dental")
			ig := store.NewMemoryMessageStore(model.PlatformInstagram, igIdentity)
			m := mapper.NewInstagramMapper(businessID, "Smile Dental")

			fromBusiness, err := m.ToStored(platform.GraphMessage{
				ID: "ig1", CreatedTime: "2024-05-01T10:00:00+0000",
				From: &platform.GraphUser{ID: businessID}, Message: text("hello"),
			}, "t1")
			Expect(err).ToNot(HaveOccurred())
			fromCustomer, err := m.ToStored(platform.GraphMessage{
				ID: "ig2", CreatedTime: "2024-05-01T10:00:00+0000",
				From: &platform.GraphUser{ID: "42"}, Message: text("hello"),
			}, "t1")
			Expect(err).ToNot(HaveOccurred())

			_, err = ig.StoreMessages(ctx, []model.StoredMessage{*fromBusiness, *fromCustomer})
			Expect(err).ToNot(HaveOccurred())

			stored, _ := ig.GetMessage(ctx, "ig1")
			Expect(stored.IsReplied).To(BeTrue())
			stored, _ = ig.GetMessage(ctx, "ig2")
			Expect(stored.IsReplied).To(BeFalse())
		})
	})
})

func ptr(m model.StoredMessage) *model.StoredMessage { return &m }

func messageIDs(rows []model.StoredMessage) []string {
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.MessageID)
	}
	return ids
}
