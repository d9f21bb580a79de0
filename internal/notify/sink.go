// Package notify delivers audit events to the monitoring channel, the process log and
// the event stream.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pyladiescon/confops/internal/domain"
)

// Sink receives audit events.
type Sink interface {
	Publish(ctx context.Context, event domain.AuditEvent) error
}

// MessagePoster posts plain text to a chat channel.
type MessagePoster interface {
	PostMessage(ctx context.Context, channelID, content string) ([]string, error)
}

// ChannelSink posts each event's text to a chat channel.
type ChannelSink struct {
	poster    MessagePoster
	channelID string
}

// NewChannelSink creates a sink for channelID.
func NewChannelSink(poster MessagePoster, channelID string) *ChannelSink {
	return &ChannelSink{poster: poster, channelID: channelID}
}

func (s *ChannelSink) Publish(ctx context.Context, event domain.AuditEvent) error {
	if _, err := s.poster.PostMessage(ctx, s.channelID, event.Text); err != nil {
		return fmt.Errorf("post audit line: %w", err)
	}
	return nil
}

// LogSink writes events to a structured logger at the event's level.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink writing to logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(ctx context.Context, event domain.AuditEvent) error {
	s.logger.Log(ctx, slogLevel(event.Level), "audit event",
		"event_id", event.EventID.String(),
		"event_type", string(event.EventType),
		"aggregate_id", event.AggregateID,
		"payload", string(event.Payload),
	)
	return nil
}

// Publisher writes keyed messages to an event stream. *infra.KafkaProducer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
}

// StreamSink publishes events as JSON keyed by aggregate id, so events of one order or
// member keep their order within a partition.
type StreamSink struct {
	pub Publisher
}

// NewStreamSink creates a sink over pub.
func NewStreamSink(pub Publisher) *StreamSink {
	return &StreamSink{pub: pub}
}

func (s *StreamSink) Publish(ctx context.Context, event domain.AuditEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	if err := s.pub.Publish(ctx, []byte(event.AggregateID), value); err != nil {
		return fmt.Errorf("publish audit event %s: %w", event.EventID, err)
	}
	return nil
}

// Multi fans an event out to every sink. All sinks are tried; failures are joined.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, event domain.AuditEvent) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func slogLevel(l domain.Level) slog.Level {
	switch l {
	case domain.LevelWarn:
		return slog.LevelWarn
	case domain.LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
