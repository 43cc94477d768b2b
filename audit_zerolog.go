package gatekeeper

import (
	"context"

	"github.com/rs/zerolog"
)

// ZerologSink bridges audit events into a zerolog logger. Failed events log
// at warn level, successes at info.
type ZerologSink struct {
	logger zerolog.Logger
}

func NewZerologSink(logger zerolog.Logger) *ZerologSink {
	return &ZerologSink{logger: logger}
}

func (s *ZerologSink) Emit(_ context.Context, event AuditEvent) {
	var entry *zerolog.Event
	if event.Success {
		entry = s.logger.Info()
	} else {
		entry = s.logger.Warn()
	}

	entry = entry.
		Time("ts", event.Timestamp).
		Str("event", event.EventType).
		Bool("success", event.Success)
	if event.PrincipalID != "" {
		entry = entry.Str("principal", event.PrincipalID)
	}
	if event.SessionID != "" {
		entry = entry.Str("session", event.SessionID)
	}
	if event.Error != "" {
		entry = entry.Str("error", event.Error)
	}
	for k, v := range event.Metadata {
		entry = entry.Str(k, v)
	}
	entry.Msg("audit")
}
