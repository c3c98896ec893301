package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/trace"

	"github.com/imranmit2020/pro-login-flow-sub000/core/config"
)

const redacted = "[REDACTED]"

// secretKeys are attribute keys whose values never reach a log line.
// Matching is case-insensitive on the key suffix, so "page_access_token" is covered.
var secretKeys = []string{
	"access_token",
	"refresh_token",
	"client_secret",
	"app_secret",
	"api_key",
	"authorization",
	"verify_token",
	"password",
}

// Setup installs the process-wide slog handler. Production with a collector
// ships logs over OTLP; otherwise logs go to stdout (JSON in production,
// text in development).
func Setup(cfg config.Config) {
	slog.SetDefault(slog.New(NewHandler(cfg, os.Stdout)))
}

// NewHandler builds the handler Setup installs, writing to w when logs stay local.
func NewHandler(cfg config.Config, w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:       Level(cfg),
		ReplaceAttr: RedactSecrets,
	}

	switch {
	case cfg.IsProduction() && cfg.OTel.Enabled():
		return otelslog.NewHandler(
			cfg.OTel.ServiceName,
			otelslog.WithLoggerProvider(global.GetLoggerProvider()),
		)
	case cfg.IsProduction():
		return NewTraceHandler(slog.NewJSONHandler(w, opts))
	default:
		return NewTraceHandler(slog.NewTextHandler(w, opts))
	}
}

// Level resolves LOG_LEVEL, falling back to debug in development and info elsewhere.
func Level(cfg config.Config) slog.Level {
	if cfg.LogLevel != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(cfg.LogLevel)); err == nil {
			return level
		}
	}
	if cfg.IsDevelopment() {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// RedactSecrets is a slog ReplaceAttr hook that masks credential-bearing attributes.
func RedactSecrets(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	for _, secret := range secretKeys {
		if strings.HasSuffix(key, secret) {
			return slog.String(a.Key, redacted)
		}
	}
	return a
}

// TraceHandler adds trace ids and the context's LogFields to every record.
type TraceHandler struct {
	slog.Handler
}

func NewTraceHandler(h slog.Handler) *TraceHandler {
	return &TraceHandler{Handler: h}
}

func (h *TraceHandler) Handle(ctx context.Context, r slog.Record) error {
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}

	fields := GetLogFields(ctx)
	optional := []struct {
		key   string
		value *string
	}{
		{"platform", fields.Platform},
		{"page_id", fields.PageID},
		{"conversation_id", fields.ConversationID},
		{"message_id", fields.MessageID},
		{"stream_message_id", fields.StreamMessageID},
	}
	for _, f := range optional {
		if f.value != nil {
			r.AddAttrs(slog.String(f.key, *f.value))
		}
	}
	if fields.Component != "" {
		r.AddAttrs(slog.String("component", fields.Component))
	}

	return h.Handler.Handle(ctx, r)
}

func (h *TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TraceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *TraceHandler) WithGroup(name string) slog.Handler {
	return &TraceHandler{Handler: h.Handler.WithGroup(name)}
}
