package sessionguard

import (
	"io"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"

	internalaudit "github.com/MrEthical07/sessionguard/internal/audit"
)

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives AuditEvent values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink discards all events.
type NoOpSink = internalaudit.NoOpSink

// MultiSink fans each event out to several sinks.
type MultiSink = internalaudit.MultiSink

// ChannelSink is a buffered channel-based AuditSink.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes JSON-encoded events to an io.Writer, one per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// LogSink writes events through a zerolog.Logger.
type LogSink = internalaudit.LogSink

// SentrySink reports selected events to Sentry.
type SentrySink = internalaudit.SentrySink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return internalaudit.NewLogSink(logger)
}

// NewSentrySink reports lockouts and store outages when levels is nil.
func NewSentrySink(hub *sentry.Hub, levels map[string]sentry.Level) *SentrySink {
	if levels == nil {
		levels = map[string]sentry.Level{
			AuditEventAccountLocked:    sentry.LevelWarning,
			AuditEventStoreUnavailable: sentry.LevelError,
		}
	}
	return internalaudit.NewSentrySink(hub, levels)
}
