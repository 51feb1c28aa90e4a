package observability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/harun/ffmpeg-mcp/internal/logger"
	"github.com/harun/ffmpeg-mcp/internal/tracing"
	"github.com/harun/ffmpeg-mcp/pkg/sandbox"
	"github.com/harun/ffmpeg-mcp/pkg/validator"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Audit statuses
const (
	StatusSuccess     = "success"
	StatusFailure     = "failure"
	StatusRejected    = "rejected"
	StatusSpawnFailed = "spawn-failed"
)

// AuditEvent represents a structured event for the audit log
type AuditEvent struct {
	Type      string                 `json:"event_type"`
	Timestamp time.Time              `json:"timestamp"`
	Actor     string                 `json:"actor,omitempty"` // client id, when known
	Action    string                 `json:"action"`          // e.g. "execute:ffmpeg.execute", "server_started"
	Status    string                 `json:"status"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	TraceID   string                 `json:"trace_id,omitempty"`
}

// AuditLogger writes one JSON line per event. It satisfies the gateway's
// AuditRecorder.
type AuditLogger struct {
	logger   zerolog.Logger
	redactor *logger.Redactor
	mu       sync.Mutex
	file     *os.File
}

// NewAuditLogger appends audit lines to path, creating its directory
func NewAuditLogger(path string) (*AuditLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}

	a := NewAuditLoggerWriter(file)
	a.file = file
	return a, nil
}

// NewAuditLoggerWriter writes audit lines to w
func NewAuditLoggerWriter(w io.Writer) *AuditLogger {
	return &AuditLogger{
		logger:   zerolog.New(w),
		redactor: logger.NewRedactor(),
	}
}

// Record emits an audit event to the log file and, when the context carries
// a recording span, as a span event
func (a *AuditLogger) Record(ctx context.Context, event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.TraceID == "" {
		event.TraceID = tracing.GetTraceID(ctx)
	}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		if event.TraceID == "" {
			event.TraceID = span.SpanContext().TraceID().String()
		}

		span.AddEvent(event.Action, trace.WithAttributes(
			attribute.String("audit.type", event.Type),
			attribute.String("audit.status", event.Status),
			attribute.String("audit.actor", event.Actor),
		))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	entry := a.logger.Log().
		Time(zerolog.TimestampFieldName, event.Timestamp).
		Str("type", event.Type).
		Str("actor", event.Actor).
		Str("action", event.Action).
		Str("status", event.Status).
		Str("trace_id", event.TraceID)

	if event.Metadata != nil {
		entry.Interface("metadata", event.Metadata)
	}

	entry.Msg("")
}

// RecordExecution records one tool invocation: a rejection before spawn
// (err set), a spawn failure, or a finished process
func (a *AuditLogger) RecordExecution(ctx context.Context, tool string, args map[string]interface{}, res sandbox.Result, err error) {
	metadata := map[string]interface{}{
		"tool":       tool,
		"arguments":  a.redactArgs(args),
		"request_id": tracing.GetRequestID(ctx),
	}

	status := StatusSuccess
	switch {
	case err != nil:
		status = StatusRejected
		metadata["error"] = a.redactor.Redact(err.Error())
		var verr *validator.ValidationError
		if errors.As(err, &verr) {
			metadata["reason"] = string(verr.Reason)
			metadata["index"] = verr.Index
		}
	case res.Cause == sandbox.CauseSpawnFailed:
		status = StatusSpawnFailed
		if res.Err != nil {
			metadata["error"] = a.redactor.Redact(res.Err.Error())
		}
	case res.Failed():
		status = StatusFailure
	}

	if err == nil {
		metadata["exec_id"] = res.ExecID
		metadata["cause"] = string(res.Cause)
		metadata["exit_code"] = res.ExitCode
		metadata["duration_ms"] = res.Duration.Milliseconds()
		metadata["timeout_ms"] = res.Timeout.Milliseconds()
		metadata["timeout_clamped"] = res.TimeoutClamped
		metadata["stdout_truncated"] = res.Stdout.Truncated
		metadata["stderr_truncated"] = res.Stderr.Truncated
	}

	a.Record(ctx, AuditEvent{
		Type:     "tool",
		Actor:    tracing.GetClientID(ctx),
		Action:   "execute:" + tool,
		Status:   status,
		Metadata: metadata,
	})
}

// RecordLifecycle records a server lifecycle event such as startup or shutdown
func (a *AuditLogger) RecordLifecycle(ctx context.Context, action string, metadata map[string]interface{}) {
	a.Record(ctx, AuditEvent{
		Type:     "lifecycle",
		Actor:    "system",
		Action:   action,
		Status:   StatusSuccess,
		Metadata: metadata,
	})
}

// Close closes the audit logger's file handle
func (a *AuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file != nil {
		err := a.file.Close()
		a.file = nil
		return err
	}
	return nil
}

// redactArgs renders the tool arguments as redacted JSON text
func (a *AuditLogger) redactArgs(args map[string]interface{}) string {
	if args == nil {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("<unencodable: %v>", err)
	}
	return a.redactor.Redact(string(data))
}
