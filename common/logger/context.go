package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Fields flow through context enrichment, so a sync pass or auto-reply task only sets
// its platform and ids once and every log line below it carries them.
type LogFields struct {
	Platform        *string // facebook, instagram or gmail
	PageID          *string // Facebook page or Instagram business account being synced
	ConversationID  *string // Platform conversation or Gmail thread id
	MessageID       *string // Platform message id
	StreamMessageID *string // Redis stream entry id
	Component       string  // Component name (OTel semantic convention style, e.g., "inbox.sync.facebook")
}

// WithLogFields returns ctx carrying fields merged over any already present.
// Set fields win; nil pointers and an empty Component keep the outer value.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	return context.WithValue(ctx, logFieldsKey, mergeFields(GetLogFields(ctx), fields))
}

// GetLogFields returns the fields on ctx, or the zero value.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

// mergeFields overlays the set fields of next onto existing.
func mergeFields(existing, next LogFields) LogFields {
	return LogFields{
		Platform:        override(existing.Platform, next.Platform),
		PageID:          override(existing.PageID, next.PageID),
		ConversationID:  override(existing.ConversationID, next.ConversationID),
		MessageID:       override(existing.MessageID, next.MessageID),
		StreamMessageID: override(existing.StreamMessageID, next.StreamMessageID),
		Component:       *override(&existing.Component, nonEmpty(next.Component)),
	}
}

func override[T any](old, next *T) *T {
	if next != nil {
		return next
	}
	return old
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Ptr returns a pointer to v, for inline LogFields literals.
func Ptr[T any](v T) *T {
	return &v
}

// Truncate cuts s to maxLen bytes and marks the cut with "...".
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
