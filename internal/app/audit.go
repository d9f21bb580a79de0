package app

import (
	"log/slog"
	"os"

	"github.com/pyladiescon/confops/internal/infra"
	"github.com/pyladiescon/confops/internal/notify"
)

// AuditSink fans audit events out to the log, the registration log channel (when
// configured) and the Kafka audit stream (when enabled).
func AuditSink(cfg *infra.Config, poster notify.MessagePoster, stream *infra.KafkaProducer, logger *slog.Logger) notify.Sink {
	sinks := notify.Multi{notify.NewLogSink(logger)}
	if poster != nil && cfg.RegLogChannelID != "" {
		sinks = append(sinks, notify.NewChannelSink(poster, cfg.RegLogChannelID))
	}
	if stream != nil && stream.Enabled() {
		sinks = append(sinks, notify.NewStreamSink(stream))
	}
	return sinks
}

// NewLogger builds the JSON slog logger used by every binary.
func NewLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
