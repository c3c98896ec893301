package queue

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"
)

var _ = Describe("ParseMessage", func() {
	It("parses an auto-reply task", func() {
		msg, err := ParseMessage(redis.XMessage{
			ID: "1-0",
			Values: map[string]any{
				"task_type":       "auto_reply",
				"platform":        "facebook",
				"message_id":      "m1",
				"conversation_id": "c1",
				"window":          "10m0s",
				"attempt":         "2",
				"trace_id":        "abc",
			},
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(msg.TaskType).To(Equal(TaskTypeAutoReply))
		Expect(msg.Platform).To(Equal("facebook"))
		Expect(msg.MessageID).To(Equal("m1"))
		Expect(msg.ConversationID).To(Equal("c1"))
		Expect(msg.Window).To(Equal(10 * time.Minute))
		Expect(msg.Attempt).To(Equal(2))
		Expect(msg.TraceID).To(Equal("abc"))
	})

	It("defaults the attempt and infers the task type", func() {
		msg, err := ParseMessage(redis.XMessage{ID: "1-0", Values: map[string]any{
			"platform":   "instagram",
			"message_id": "m1",
		}})
		Expect(err).ToNot(HaveOccurred())
		Expect(msg.TaskType).To(Equal(TaskTypeAutoReply))
		Expect(msg.Attempt).To(Equal(1))
	})

	It("accepts catch-up tasks without a message", func() {
		msg, err := ParseMessage(redis.XMessage{ID: "1-0", Values: map[string]any{"task_type": "catch_up"}})
		Expect(err).ToNot(HaveOccurred())
		Expect(msg.TaskType).To(Equal(TaskTypeCatchUp))
	})

	DescribeTable("rejects malformed entries",
		func(values map[string]any) {
			_, err := ParseMessage(redis.XMessage{ID: "1-0", Values: values})
			Expect(err).To(HaveOccurred())
		},
		Entry("empty", map[string]any{}),
		Entry("auto reply without platform", map[string]any{"task_type": "auto_reply", "message_id": "m1"}),
		Entry("unknown task type", map[string]any{"task_type": "repo_sync"}),
		Entry("bad attempt", map[string]any{"task_type": "catch_up", "attempt": "x"}),
		Entry("bad window", map[string]any{"task_type": "catch_up", "window": "soon"}),
	)

	It("round-trips a requeued message through the stream codec", func() {
		original := Message{
			ID:             "1-0",
			TaskType:       TaskTypeAutoReply,
			Platform:       "facebook",
			MessageID:      "m1",
			ConversationID: "c1",
			Window:         24 * time.Hour,
			TraceID:        "t",
		}
		values := encodeTask(original.Task(3))
		parsed, err := ParseMessage(redis.XMessage{ID: "2-0", Values: values})
		Expect(err).ToNot(HaveOccurred())
		Expect(parsed.Attempt).To(Equal(3))
		Expect(parsed.Window).To(Equal(24 * time.Hour))
		Expect(parsed.MessageID).To(Equal("m1"))
		Expect(parsed.TraceID).To(Equal("t"))
	})

	It("keeps a fresh task on attempt 1 with the auto-reply default", func() {
		values := encodeTask(Task{Platform: "instagram", MessageID: "m9"})
		Expect(values).To(HaveKeyWithValue("task_type", "auto_reply"))
		Expect(values).To(HaveKeyWithValue("attempt", 1))
		Expect(values).ToNot(HaveKey("trace_id"))
		Expect(values).ToNot(HaveKey("window"))
	})
})
