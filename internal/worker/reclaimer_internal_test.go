package worker

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"
)

var _ = Describe("partitionPending", func() {
	pending := []redis.XPendingExt{
		{ID: "1-0", Consumer: "worker", Idle: 6 * time.Minute, RetryCount: 1},
		{ID: "2-0", Consumer: "worker", Idle: 6 * time.Minute, RetryCount: 5},
		{ID: "3-0", Consumer: "worker", Idle: 9 * time.Minute, RetryCount: 7},
	}

	It("dead-letters entries at or over the delivery cap", func() {
		retry, exhausted := partitionPending(pending, 5)
		Expect(retry).To(Equal([]string{"1-0"}))
		Expect(exhausted).To(Equal([]string{"2-0", "3-0"}))
	})

	It("retries everything when the cap is disabled", func() {
		retry, exhausted := partitionPending(pending, 0)
		Expect(retry).To(HaveLen(3))
		Expect(exhausted).To(BeEmpty())
	})
})
