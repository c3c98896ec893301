package queue

import (
	"fmt"
	"strconv"
	"time"
)

type TaskType string

const (
	// TaskTypeAutoReply asks the worker to run the auto-reply policy on one stored message.
	TaskTypeAutoReply TaskType = "auto_reply"
	// TaskTypeCatchUp asks the worker to sweep the unreplied backlog.
	TaskTypeCatchUp TaskType = "catch_up"
)

// Stream entry field names.
const (
	fieldTaskType       = "task_type"
	fieldPlatform       = "platform"
	fieldMessageID      = "message_id"
	fieldConversationID = "conversation_id"
	fieldWindow         = "window"
	fieldAttempt        = "attempt"
	fieldTraceID        = "trace_id"
	fieldLastError      = "last_error"
	fieldError          = "error"
	fieldFailedAt       = "failed_at"
	fieldSourceID       = "source_id"
)

// Task is one unit of auto-reply work.
type Task struct {
	TaskType       TaskType
	Platform       string
	MessageID      string
	ConversationID string
	// Window is the recency window the message must fall in when processed.
	Window  time.Duration
	TraceID *string
	Attempt int
}

// encodeTask renders a task as stream entry values. Empty optional fields are omitted.
func encodeTask(t Task) map[string]any {
	taskType := t.TaskType
	if taskType == "" {
		taskType = TaskTypeAutoReply
	}
	attempt := t.Attempt
	if attempt <= 0 {
		attempt = 1
	}

	values := map[string]any{
		fieldTaskType: string(taskType),
		fieldAttempt:  attempt,
	}
	putString(values, fieldPlatform, t.Platform)
	putString(values, fieldMessageID, t.MessageID)
	putString(values, fieldConversationID, t.ConversationID)
	if t.Window > 0 {
		values[fieldWindow] = t.Window.String()
	}
	if t.TraceID != nil {
		putString(values, fieldTraceID, *t.TraceID)
	}
	return values
}

func putString(values map[string]any, key, value string) {
	if value != "" {
		values[key] = value
	}
}

// fieldReader decodes stream values and keeps the first error, so callers
// read every field and check once.
type fieldReader struct {
	values map[string]any
	err    error
}

func (r *fieldReader) text(key string) string {
	raw, ok := r.values[key]
	if !ok {
		return ""
	}
	return fmt.Sprint(raw)
}

func (r *fieldReader) number(key string) int {
	s := r.text(key)
	if s == "" || r.err != nil {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		r.err = fmt.Errorf("parsing %s: %w", key, err)
	}
	return n
}

func (r *fieldReader) duration(key string) time.Duration {
	s := r.text(key)
	if s == "" || r.err != nil {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		r.err = fmt.Errorf("parsing %s: %w", key, err)
	}
	return d
}
