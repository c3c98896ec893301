package store

import (
	"slices"
	"sort"

	"github.com/imranmit2020/pro-login-flow-sub000/internal/model"
)

// AggregateConversations groups rows by conversation id. It is recomputed on
// every read; nothing about a conversation is persisted.
//
// Messages within a conversation are chronological and conversations are
// ordered by their last message, most recent first. Only customer rows that
// are not replied count as unread.
func AggregateConversations(rows []model.StoredMessage, identity model.BusinessIdentity) []model.Conversation {
	if len(rows) == 0 {
		return []model.Conversation{}
	}

	sorted := slices.Clone(rows)
	sortChronological(sorted)

	index := make(map[string]int)
	var convs []model.Conversation
	for _, row := range sorted {
		i, ok := index[row.ConversationID]
		if !ok {
			i = len(convs)
			index[row.ConversationID] = i
			convs = append(convs, model.Conversation{
				ConversationID: row.ConversationID,
				Platform:       row.Platform,
				Participants:   []string{},
			})
		}

		conv := &convs[i]
		conv.Messages = append(conv.Messages, row)
		if row.IsReplied {
			conv.IsReplied = true
		}
		if !row.IsReplied && !identity.IsBusinessSender(row.SenderID) {
			conv.UnreadCount++
		}
		if row.SenderName != "" && !slices.Contains(conv.Participants, row.SenderName) {
			conv.Participants = append(conv.Participants, row.SenderName)
		}
	}

	for i := range convs {
		convs[i].LastMessage = convs[i].Messages[len(convs[i].Messages)-1]
	}

	sort.SliceStable(convs, func(a, b int) bool {
		return convs[a].LastMessage.Timestamp.After(convs[b].LastMessage.Timestamp)
	})
	return convs
}

// sortChronological orders rows by timestamp, breaking ties on message id so
// the result does not depend on storage order.
func sortChronological(rows []model.StoredMessage) {
	sort.SliceStable(rows, func(a, b int) bool {
		if rows[a].Timestamp.Equal(rows[b].Timestamp) {
			return rows[a].MessageID < rows[b].MessageID
		}
		return rows[a].Timestamp.Before(rows[b].Timestamp)
	})
}
