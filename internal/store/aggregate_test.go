package store_test

import (
	"fmt"
	"math/rand"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/imranmit2020/pro-login-flow-sub000/internal/model"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/store"
)

var _ = Describe("AggregateConversations", func() {
	identity := model.NewBusinessIdentity().With(pageID, "Smile Dental")

	It("returns no conversations for no rows", func() {
		Expect(store.AggregateConversations(nil, identity)).To(BeEmpty())
	})

	It("orders conversations by most recent activity and messages chronologically", func() {
		rows := []model.StoredMessage{
			customerRow("a2", "a", 5*time.Minute),
			customerRow("b1", "b", 2*time.Minute),
			customerRow("a1", "a", 0),
			pageRow("b2", "b", 10*time.Minute),
		}

		convs := store.AggregateConversations(rows, identity)
		Expect(convs).To(HaveLen(2))
		Expect(convs[0].ConversationID).To(Equal("b"))
		Expect(convs[1].ConversationID).To(Equal("a"))
		Expect(messageIDs(convs[1].Messages)).To(Equal([]string{"a1", "a2"}))
		Expect(convs[1].LastMessage.MessageID).To(Equal("a2"))
		Expect(convs[1].IsReplied).To(BeFalse())
	})

	It("never counts business messages as unread even if they arrive unreplied", func() {
		stray := pageRow("p1", "c", time.Minute)
		stray.IsReplied = false
		stray.RepliedBy = nil

		convs := store.AggregateConversations([]model.StoredMessage{customerRow("m1", "c", 0), stray}, identity)
		Expect(convs[0].UnreadCount).To(Equal(1))
	})

	It("counts exactly the unreplied customer messages in randomized threads", func() {
		r := rand.New(rand.NewSource(7))
		for trial := 0; trial < 50; trial++ {
			var rows []model.StoredMessage
			expected := map[string]int{}
			for i := 0; i < 30; i++ {
				conv := fmt.Sprintf("c%d", r.Intn(4))
				at := time.Duration(r.Intn(1000)) * time.Second
				id := fmt.Sprintf("t%d-m%d", trial, i)

				var row model.StoredMessage
				if r.Intn(3) == 0 {
					row = pageRow(id, conv, at)
				} else {
					row = customerRow(id, conv, at)
					if r.Intn(2) == 0 {
						ai := model.RepliedByAI
						row.IsReplied = true
						row.RepliedBy = &ai
					} else {
						expected[conv]++
					}
				}
				rows = append(rows, row)
			}

			for _, conv := range store.AggregateConversations(rows, identity) {
				Expect(conv.UnreadCount).To(Equal(expected[conv.ConversationID]), "trial %d conversation %s", trial, conv.ConversationID)
				Expect(conv.Messages).ToNot(BeEmpty())
				for i := 1; i < len(conv.Messages); i++ {
					Expect(conv.Messages[i].Timestamp.Before(conv.Messages[i-1].Timestamp)).To(BeFalse())
				}
			}
		}
	})
})
