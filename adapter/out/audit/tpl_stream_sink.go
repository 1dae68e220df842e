// Package audit records template lifecycle events.
package audit

import (
	"context"

	"github.com/goccy/go-json"

	"template_server/core/port/out"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultStream is the Redis stream lifecycle events are appended to.
const DefaultStream = "template:audit"

// StreamSink appends audit events to a capped Redis stream.
type StreamSink struct {
	redis  *redis.Client
	stream string
	maxLen int64
}

// NewStreamSink creates a sink writing to stream. An empty stream uses DefaultStream.
func NewStreamSink(client *redis.Client, stream string) *StreamSink {
	if stream == "" {
		stream = DefaultStream
	}
	return &StreamSink{
		redis:  client,
		stream: stream,
		maxLen: 100000, // keep last 100k events
	}
}

var _ out.AuditSink = (*StreamSink)(nil)

// Record appends one event.
func (s *StreamSink) Record(ctx context.Context, event out.AuditEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return s.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"id":     uuid.NewString(),
			"action": event.Action,
			"event":  string(data),
		},
		MaxLen: s.maxLen,
		Approx: true,
	}).Err()
}

// LogSink writes audit events to the structured log. Used when Redis is
// not configured.
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink creates a log-backed sink.
func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log.With().Str("component", "audit").Logger()}
}

var _ out.AuditSink = (*LogSink)(nil)

func (s *LogSink) Record(_ context.Context, event out.AuditEvent) error {
	s.log.Info().
		Str("action", event.Action).
		Str("tenant_id", event.TenantID).
		Str("user_id", event.UserID).
		Str("template_id", event.TemplateID).
		Int("version", event.Version).
		Time("timestamp", event.Timestamp).
		Msg("audit")
	return nil
}
