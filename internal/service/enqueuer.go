package service

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/imranmit2020/pro-login-flow-sub000/internal/model"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/queue"
)

// Enqueuer hands auto-reply work to whoever runs it: the worker over the
// stream, or this process in the background.
type Enqueuer interface {
	AutoReplyEnqueuer
	EnqueueCatchUp(ctx context.Context) error
}

type queueEnqueuer struct {
	producer  queue.Producer
	autoReply AutoReplyService
}

// NewQueueEnqueuer publishes tasks for the worker. Nothing is published while
// auto-reply is off.
func NewQueueEnqueuer(producer queue.Producer, autoReply AutoReplyService) Enqueuer {
	return &queueEnqueuer{producer: producer, autoReply: autoReply}
}

func (e *queueEnqueuer) EnqueueAutoReply(ctx context.Context, msg model.StoredMessage) error {
	if !e.autoReply.Enabled(ctx) {
		return nil
	}
	return e.producer.Enqueue(ctx, queue.Task{
		TaskType:       queue.TaskTypeAutoReply,
		Platform:       string(msg.Platform),
		MessageID:      msg.MessageID,
		ConversationID: msg.ConversationID,
		Window:         ReactiveWindow,
		TraceID:        traceID(ctx),
	})
}

func (e *queueEnqueuer) EnqueueCatchUp(ctx context.Context) error {
	return e.producer.Enqueue(ctx, queue.Task{
		TaskType: queue.TaskTypeCatchUp,
		Window:   CatchUpWindow,
		TraceID:  traceID(ctx),
	})
}

type inlineEnqueuer struct {
	background *Background
	autoReply  AutoReplyService
}

// NewInlineEnqueuer runs auto-reply work in this process when no stream is configured.
func NewInlineEnqueuer(background *Background, autoReply AutoReplyService) Enqueuer {
	return &inlineEnqueuer{background: background, autoReply: autoReply}
}

func (e *inlineEnqueuer) EnqueueAutoReply(ctx context.Context, msg model.StoredMessage) error {
	if !e.autoReply.Enabled(ctx) {
		return nil
	}
	p, id := msg.Platform, msg.MessageID
	e.background.FireAndForget(ctx, "autoreply."+string(p), func(ctx context.Context) error {
		_, err := e.autoReply.ProcessStored(ctx, p, id, ReactiveWindow)
		return err
	})
	return nil
}

func (e *inlineEnqueuer) EnqueueCatchUp(ctx context.Context) error {
	e.background.FireAndForget(ctx, "autoreply.catchup", func(ctx context.Context) error {
		_, err := e.autoReply.CatchUp(ctx)
		return err
	})
	return nil
}

func traceID(ctx context.Context) *string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return nil
	}
	id := sc.TraceID().String()
	return &id
}
