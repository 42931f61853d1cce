package audit

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSink writes events as structured log lines. Failures log at warn.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "audit").Logger()}
}

func (s *LogSink) Emit(_ context.Context, event Event) {
	e := s.logger.Info()
	if !event.Success {
		e = s.logger.Warn()
	}

	e = e.Time("at", event.Timestamp).
		Str("event", event.EventType).
		Bool("success", event.Success)
	if event.Identity != "" {
		e = e.Str("identity", event.Identity)
	}
	if event.ClientKey != "" {
		e = e.Str("client_key", event.ClientKey)
	}
	if event.IP != "" {
		e = e.Str("ip", event.IP)
	}
	if event.Error != "" {
		e = e.Str("code", event.Error)
	}
	if len(event.Metadata) > 0 {
		dict := zerolog.Dict()
		for k, v := range event.Metadata {
			dict = dict.Str(k, v)
		}
		e = e.Dict("meta", dict)
	}
	e.Msg("audit")
}
