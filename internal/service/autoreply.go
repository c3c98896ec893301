package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/imranmit2020/pro-login-flow-sub000/common/logger"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/mapper"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/model"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/platform"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/reply"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/store"
)

const (
	// ReactiveWindow bounds how old a newly seen message may be and still get an automatic answer.
	ReactiveWindow = 10 * time.Minute
	// CatchUpWindow bounds the backlog considered when auto-reply is switched on.
	CatchUpWindow = 24 * time.Hour
	// CatchUpDelay spaces catch-up sends to stay under platform rate limits.
	CatchUpDelay = time.Second
)

var (
	ErrAutoReplyDisabled   = errors.New("auto-reply is disabled")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)

// Outcome is what happened to one auto-reply attempt.
type Outcome string

const (
	OutcomeReplied    Outcome = "replied"
	OutcomeIneligible Outcome = "ineligible"
	OutcomeDisabled   Outcome = "disabled"
	OutcomeInFlight   Outcome = "in_flight"
	OutcomeFailed     Outcome = "failed"
)

// CatchUpResult tallies one catch-up run.
type CatchUpResult struct {
	Considered int                       `json:"considered"`
	Replied    int                       `json:"replied"`
	Skipped    int                       `json:"skipped"`
	Failed     int                       `json:"failed"`
	Errors     map[model.Platform]string `json:"errors,omitempty"`
}

// Eligible decides whether msg gets an automatic answer: a customer message
// that nobody has answered, no older than window. Gmail mail must also be unread.
func Eligible(msg model.UnifiedMessage, identity model.BusinessIdentity, now time.Time, window time.Duration) bool {
	if msg.IsReplied || identity.IsBusinessSender(msg.SenderID) {
		return false
	}
	if msg.Platform == model.PlatformGmail && msg.IsRead {
		return false
	}
	return now.Sub(msg.Timestamp) <= window
}

type AutoReplyService interface {
	Enabled(ctx context.Context) bool
	SetEnabled(ctx context.Context, enabled bool) error
	// Process answers one message if it is still eligible. Social messages are
	// re-read from the store first so a concurrent human reply wins.
	Process(ctx context.Context, msg model.UnifiedMessage, window time.Duration) (Outcome, error)
	ProcessStored(ctx context.Context, p model.Platform, messageID string, window time.Duration) (Outcome, error)
	// CatchUp answers every eligible unreplied social message, one at a time.
	CatchUp(ctx context.Context) (*CatchUpResult, error)
}

type AutoReplyParams struct {
	Stores    *store.Stores
	Senders   *platform.Registry
	Gmail     platform.GmailClient
	Generator reply.Generator
	Toggle    ToggleStore
	Claimer   ReplyClaimer
	Logger    *slog.Logger

	// Delay between catch-up sends; zero means CatchUpDelay.
	Delay time.Duration
	Now   func() time.Time
}

type autoReplyService struct {
	stores    *store.Stores
	senders   *platform.Registry
	gmail     platform.GmailClient
	generator reply.Generator
	toggle    ToggleStore
	claimer   ReplyClaimer
	logger    *slog.Logger
	delay     time.Duration
	now       func() time.Time
}

func NewAutoReplyService(params AutoReplyParams) AutoReplyService {
	s := &autoReplyService{
		stores:    params.Stores,
		senders:   params.Senders,
		gmail:     params.Gmail,
		generator: params.Generator,
		toggle:    params.Toggle,
		claimer:   params.Claimer,
		logger:    params.Logger,
		delay:     params.Delay,
		now:       params.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.toggle == nil {
		s.toggle = NewMemoryToggleStore(false)
	}
	if s.claimer == nil {
		s.claimer = NewMemoryReplyClaimer()
	}
	if s.senders == nil {
		s.senders = platform.NewRegistry()
	}
	if s.delay <= 0 {
		s.delay = CatchUpDelay
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Enabled reads the switch; a read failure counts as off.
func (s *autoReplyService) Enabled(ctx context.Context) bool {
	enabled, err := s.toggle.Enabled(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "reading auto-reply toggle failed", "error", err)
		return false
	}
	return enabled
}

func (s *autoReplyService) SetEnabled(ctx context.Context, enabled bool) error {
	if err := s.toggle.SetEnabled(ctx, enabled); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "auto-reply toggled", "enabled", enabled)
	return nil
}

func (s *autoReplyService) ProcessStored(ctx context.Context, p model.Platform, messageID string, window time.Duration) (Outcome, error) {
	if !p.IsSocial() {
		return OutcomeFailed, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, p)
	}
	return s.Process(ctx, model.UnifiedMessage{ID: messageID, Platform: p}, window)
}

func (s *autoReplyService) Process(ctx context.Context, msg model.UnifiedMessage, window time.Duration) (outcome Outcome, err error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Platform:  logger.Ptr(string(msg.Platform)),
		MessageID: logger.Ptr(msg.ID),
		Component: "inbox.autoreply",
	})
	sc := logger.StartSpan(ctx, "autoreply.process")
	defer sc.End()
	ctx = sc.Context()

	defer func() {
		autoRepliesTotal.WithLabelValues(string(msg.Platform), string(outcome)).Inc()
		if err != nil {
			sc.RecordError(err)
		}
	}()

	if !s.Enabled(ctx) || s.generator == nil {
		return OutcomeDisabled, nil
	}

	claimKey := string(msg.Platform) + ":" + msg.ID
	claimed, err := s.claimer.Claim(ctx, claimKey)
	if err != nil {
		return OutcomeFailed, err
	}
	if !claimed {
		s.logger.DebugContext(ctx, "auto-reply already in flight")
		return OutcomeInFlight, nil
	}
	defer func() {
		if relErr := s.claimer.Release(context.WithoutCancel(ctx), claimKey); relErr != nil {
			s.logger.WarnContext(ctx, "releasing reply claim failed", "error", relErr)
		}
	}()

	switch {
	case msg.Platform.IsSocial():
		return s.processSocial(ctx, msg.Platform, msg.ID, window)
	case msg.Platform == model.PlatformGmail:
		return s.processGmail(ctx, msg, window)
	default:
		return OutcomeFailed, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, msg.Platform)
	}
}

func (s *autoReplyService) processSocial(ctx context.Context, p model.Platform, messageID string, window time.Duration) (Outcome, error) {
	ms, err := s.stores.For(p)
	if err != nil {
		return OutcomeFailed, err
	}
	row, err := ms.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return OutcomeIneligible, nil
		}
		return OutcomeFailed, fmt.Errorf("loading message: %w", err)
	}

	msg := mapper.StoredToUnified(*row)
	if !Eligible(msg, ms.Identity(), s.now(), window) {
		return OutcomeIneligible, nil
	}

	text, err := s.generator.Generate(ctx, msg)
	if err != nil {
		s.logger.ErrorContext(ctx, "generating reply failed", "error", err)
		return OutcomeFailed, err
	}

	sender, err := s.senders.Sender(p, row.RecipientID)
	if err != nil {
		return OutcomeFailed, err
	}
	result, err := sender.SendMessage(ctx, row.SenderID, text)
	if err != nil {
		s.logger.ErrorContext(ctx, "sending auto-reply failed", "error", err)
		return OutcomeFailed, err
	}
	if !result.Success {
		return OutcomeFailed, fmt.Errorf("sending auto-reply: %s", result.Error)
	}

	// The reply is out; a failed mark is logged but not retried so the
	// customer never gets the same answer twice from this attempt.
	if err := ms.MarkMessageAsReplied(ctx, row.MessageID, model.RepliedByAI, result.MessageID); err != nil {
		s.logger.ErrorContext(ctx, "marking auto-replied message failed",
			"reply_message_id", result.MessageID,
			"error", err)
	}

	s.logger.InfoContext(ctx, "auto-reply sent",
		"conversation_id", row.ConversationID,
		"reply_message_id", result.MessageID)
	return OutcomeReplied, nil
}

func (s *autoReplyService) processGmail(ctx context.Context, msg model.UnifiedMessage, window time.Duration) (Outcome, error) {
	if s.gmail == nil {
		return OutcomeFailed, fmt.Errorf("gmail: %w", platform.ErrNoClient)
	}
	if !Eligible(msg, model.BusinessIdentity{}, s.now(), window) {
		return OutcomeIneligible, nil
	}

	text, err := s.generator.Generate(ctx, msg)
	if err != nil {
		s.logger.ErrorContext(ctx, "generating reply failed", "error", err)
		return OutcomeFailed, err
	}

	sentID, err := s.gmail.ReplyToThread(ctx, platform.GmailReplyParams{
		ThreadID: msg.ConversationID,
		To:       msg.SenderEmail,
		Subject:  msg.Subject,
		Body:     text,
	})
	if err != nil {
		return OutcomeFailed, err
	}

	// Gmail keeps no reply flag; clearing UNREAD keeps the mail out of the next pass.
	if err := s.gmail.MarkRead(ctx, mapper.GmailMessageID(msg.ID)); err != nil {
		s.logger.WarnContext(ctx, "marking answered mail read failed", "error", err)
	}

	s.logger.InfoContext(ctx, "auto-reply sent", "thread_id", msg.ConversationID, "reply_message_id", sentID)
	return OutcomeReplied, nil
}

func (s *autoReplyService) CatchUp(ctx context.Context) (*CatchUpResult, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "inbox.autoreply.catchup"})
	if !s.Enabled(ctx) {
		return nil, ErrAutoReplyDisabled
	}

	result := &CatchUpResult{}
	now := s.now()

	var candidates []model.UnifiedMessage
	for _, p := range model.SocialPlatforms {
		ms, err := s.stores.For(p)
		if err != nil {
			continue
		}
		rows, err := ms.GetUnrepliedMessages(ctx)
		if err != nil {
			s.logger.ErrorContext(ctx, "loading unreplied messages failed", "platform", p, "error", err)
			if result.Errors == nil {
				result.Errors = make(map[model.Platform]string)
			}
			result.Errors[p] = err.Error()
			continue
		}
		identity := ms.Identity()
		for _, row := range rows {
			msg := mapper.StoredToUnified(row)
			if Eligible(msg, identity, now, CatchUpWindow) {
				candidates = append(candidates, msg)
			}
		}
	}
	// Oldest first.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Timestamp.Before(candidates[j].Timestamp)
	})

	result.Considered = len(candidates)
	s.logger.InfoContext(ctx, "catch-up started", "candidates", len(candidates))

	for i, msg := range candidates {
		if i > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(s.delay):
			}
		}

		outcome, err := s.Process(ctx, msg, CatchUpWindow)
		switch {
		case err != nil:
			result.Failed++
		case outcome == OutcomeReplied:
			result.Replied++
		case outcome == OutcomeDisabled:
			result.Skipped += len(candidates) - i
			s.logger.InfoContext(ctx, "catch-up stopped, auto-reply switched off")
			return result, nil
		default:
			result.Skipped++
		}
	}

	s.logger.InfoContext(ctx, "catch-up finished",
		"replied", result.Replied,
		"skipped", result.Skipped,
		"failed", result.Failed)
	return result, nil
}
