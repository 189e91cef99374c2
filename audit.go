package chatauth

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Audit event types emitted by the engine.
const (
	AuditLoginPrompted        = "login.prompted"
	AuditLoginCancelled       = "login.cancelled"
	AuditLoginCachedToken     = "login.cached_token"
	AuditCallbackCompleted    = "callback.completed"
	AuditCallbackExchangeFail = "callback.exchange_failed"
	AuditCallbackUnknownState = "callback.unknown_state"
	AuditCallbackThrottled    = "callback.throttled"
	AuditSessionWriteFailed   = "callback.write_exhausted"
	AuditMagicIssued          = "magic.issued"
	AuditMagicValidated       = "magic.validated"
	AuditMagicMismatch        = "magic.mismatch"
	AuditDialogResumed        = "dialog.resumed"
	AuditLogout               = "logout"
)

// AuditEvent is one security-relevant occurrence in the login flow. The
// magic number itself is never recorded.
type AuditEvent struct {
	Timestamp      time.Time         `json:"timestamp"`
	EventType      string            `json:"event_type"`
	ChannelID      string            `json:"channel_id,omitempty"`
	UserID         string            `json:"user_id,omitempty"`
	ConversationID string            `json:"conversation_id,omitempty"`
	CorrelationID  string            `json:"correlation_id,omitempty"`
	Success        bool              `json:"success"`
	Error          string            `json:"error,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink discards every event.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink forwards events to a buffered channel for external consumers.
type ChannelSink struct {
	events chan AuditEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan AuditEvent, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes events as newline-delimited JSON.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
