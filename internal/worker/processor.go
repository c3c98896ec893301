package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/imranmit2020/pro-login-flow-sub000/internal/model"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/queue"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/service"
)

// Processor dispatches queued tasks to the auto-reply policy.
type Processor struct {
	autoReply service.AutoReplyService
}

func NewProcessor(autoReply service.AutoReplyService) *Processor {
	return &Processor{autoReply: autoReply}
}

func (p *Processor) Process(ctx context.Context, msg queue.Message) error {
	switch msg.TaskType {
	case queue.TaskTypeAutoReply:
		return p.processAutoReply(ctx, msg)
	case queue.TaskTypeCatchUp:
		return p.processCatchUp(ctx)
	default:
		return fmt.Errorf("unknown task type %q", msg.TaskType)
	}
}

func (p *Processor) processAutoReply(ctx context.Context, msg queue.Message) error {
	platform, err := model.ParsePlatform(msg.Platform)
	if err != nil {
		return err
	}
	window := msg.Window
	if window <= 0 {
		window = service.ReactiveWindow
	}

	outcome, err := p.autoReply.ProcessStored(ctx, platform, msg.MessageID, window)
	if err != nil {
		return fmt.Errorf("auto-reply %s/%s: %w", platform, msg.MessageID, err)
	}
	slog.InfoContext(ctx, "auto-reply task done", "outcome", outcome)
	return nil
}

func (p *Processor) processCatchUp(ctx context.Context) error {
	result, err := p.autoReply.CatchUp(ctx)
	if errors.Is(err, service.ErrAutoReplyDisabled) {
		slog.InfoContext(ctx, "catch-up skipped, auto-reply is off")
		return nil
	}
	if err != nil {
		return fmt.Errorf("catch-up: %w", err)
	}
	slog.InfoContext(ctx, "catch-up task done",
		"considered", result.Considered,
		"replied", result.Replied,
		"failed", result.Failed)
	return nil
}
