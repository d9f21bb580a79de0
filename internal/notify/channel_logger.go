package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// ChannelLogger logs through slog and mirrors each line to a chat log channel, prefixed
// with the logger name and level, e.g. "bot.oneoff - INFO - message".
// Lines below minLevel are only written to slog. Posting failures are logged, never
// returned.
type ChannelLogger struct {
	name      string
	logger    *slog.Logger
	poster    MessagePoster
	channelID string
	minLevel  slog.Level
}

// NewChannelLogger creates a logger named "bot.<name>". A nil poster or empty channel
// disables mirroring.
func NewChannelLogger(name string, logger *slog.Logger, poster MessagePoster, channelID string, minLevel slog.Level) *ChannelLogger {
	return &ChannelLogger{
		name:      "bot." + name,
		logger:    logger.With("logger", "bot."+name),
		poster:    poster,
		channelID: channelID,
		minLevel:  minLevel,
	}
}

func (l *ChannelLogger) Debug(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelDebug, msg, args)
}

func (l *ChannelLogger) Info(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelInfo, msg, args)
}

func (l *ChannelLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelWarn, msg, args)
}

func (l *ChannelLogger) Error(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelError, msg, args)
}

func (l *ChannelLogger) log(ctx context.Context, level slog.Level, msg string, args []any) {
	l.logger.Log(ctx, level, msg, args...)

	if l.poster == nil || l.channelID == "" || level < l.minLevel {
		return
	}
	line := fmt.Sprintf("%s - %s - %s%s", l.name, level.String(), msg, formatArgs(args))
	if _, err := l.poster.PostMessage(ctx, l.channelID, line); err != nil {
		l.logger.Warn("mirror log line to channel failed", "error", err)
	}
}

// formatArgs renders slog style key/value pairs as " key=value".
func formatArgs(args []any) string {
	if len(args) == 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			fmt.Fprintf(&b, " %v", args[i])
			break
		}
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	return b.String()
}
