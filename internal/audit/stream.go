package audit

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultStreamMaxLen caps a RedisStreamSink stream when no length is given.
const DefaultStreamMaxLen = 100000

// RedisStreamSink appends events to a Redis stream so security reviews can
// replay logins, lockouts and resets across every node. The stream is
// trimmed approximately to MaxLen entries.
type RedisStreamSink struct {
	client redis.UniversalClient
	stream string
	maxLen int64
	logger *zap.Logger
}

func NewRedisStreamSink(client redis.UniversalClient, stream string, maxLen int64, logger *zap.Logger) *RedisStreamSink {
	if client == nil || stream == "" {
		return nil
	}
	if maxLen <= 0 {
		maxLen = DefaultStreamMaxLen
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStreamSink{
		client: client,
		stream: stream,
		maxLen: maxLen,
		logger: logger.Named("audit.stream"),
	}
}

func (s *RedisStreamSink) Emit(ctx context.Context, event Event) {
	if s == nil {
		return
	}
	values := map[string]any{
		"ts":      event.Timestamp.UnixMilli(),
		"type":    event.EventType,
		"success": strconv.FormatBool(event.Success),
	}
	if event.UserID != "" {
		values["user_id"] = event.UserID
	}
	if event.SessionID != "" {
		values["session_id"] = event.SessionID
	}
	if event.IP != "" {
		values["ip"] = event.IP
	}
	if event.UserAgent != "" {
		values["user_agent"] = event.UserAgent
	}
	if event.Error != "" {
		values["error"] = event.Error
	}
	if len(event.Metadata) > 0 {
		meta, err := json.Marshal(event.Metadata)
		if err == nil {
			values["meta"] = string(meta)
		}
	}

	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: values,
	}).Err()
	if err != nil {
		s.logger.Warn("audit stream append failed",
			zap.String("event_type", event.EventType),
			zap.Error(err),
		)
	}
}
