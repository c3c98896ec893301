package worker

import (
	"context"

	"github.com/imranmit2020/pro-login-flow-sub000/internal/queue"
)

// Consumer abstracts the message queue for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// TaskProcessor runs one auto-reply task.
type TaskProcessor interface {
	Process(ctx context.Context, msg queue.Message) error
}
