package marketauth

import (
	"io"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	internalaudit "github.com/Agossa1/marketauth/internal/audit"
)

// AuditEvent is one security-relevant action recorded by the Engine.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the async dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink forwards events to a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// ZapSink logs events through a zap logger.
type ZapSink = internalaudit.ZapSink

// MultiSink fans events out to several sinks.
type MultiSink = internalaudit.MultiSink

// RedisStreamSink appends events to a Redis stream.
type RedisStreamSink = internalaudit.RedisStreamSink

// NewChannelSink returns a sink backed by a channel of the given capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink encoding events to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewRedisStreamSink returns a sink appending to stream, trimmed to about
// maxLen entries. It returns nil when client is nil or stream is empty.
func NewRedisStreamSink(client redis.UniversalClient, stream string, maxLen int64, logger *zap.Logger) *RedisStreamSink {
	return internalaudit.NewRedisStreamSink(client, stream, maxLen, logger)
}

// NewZapSink returns a sink logging events under logger.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return internalaudit.NewZapSink(logger)
}
