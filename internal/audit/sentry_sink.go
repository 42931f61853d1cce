package audit

import (
	"context"

	"github.com/getsentry/sentry-go"
)

// SentrySink forwards selected events to Sentry as messages.
type SentrySink struct {
	hub    *sentry.Hub
	events map[string]sentry.Level
}

// NewSentrySink reports the listed event types at their level. A nil hub
// uses the current global hub.
func NewSentrySink(hub *sentry.Hub, levels map[string]sentry.Level) *SentrySink {
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	events := make(map[string]sentry.Level, len(levels))
	for name, level := range levels {
		events[name] = level
	}
	return &SentrySink{hub: hub, events: events}
}

func (s *SentrySink) Emit(_ context.Context, event Event) {
	level, ok := s.events[event.EventType]
	if !ok {
		return
	}

	tags := map[string]string{
		"event":   event.EventType,
		"success": boolTag(event.Success),
	}
	if event.Error != "" {
		tags["code"] = event.Error
	}

	extra := make(map[string]interface{}, len(event.Metadata)+2)
	for k, v := range event.Metadata {
		extra[k] = v
	}
	if event.Identity != "" {
		extra["identity"] = event.Identity
	}
	if event.IP != "" {
		extra["ip"] = event.IP
	}

	s.hub.CaptureEvent(&sentry.Event{
		Message:   "sessionguard: " + event.EventType,
		Level:     level,
		Timestamp: event.Timestamp,
		Tags:      tags,
		Extra:     extra,
	})
}

func boolTag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
