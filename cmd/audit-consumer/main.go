package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pyladiescon/confops/internal/app"
	"github.com/pyladiescon/confops/internal/domain"
	"github.com/pyladiescon/confops/internal/guard"
	"github.com/pyladiescon/confops/internal/infra"
	"github.com/pyladiescon/confops/internal/notify"
	"github.com/pyladiescon/confops/internal/provider"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg.SlogLevel())
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("audit consumer failed", "error", err)
		os.Exit(1)
	}
}

// run tails the audit stream and mirrors warnings and errors to the bot log channel.
func run(cfg *infra.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !cfg.KafkaEnabled {
		return fmt.Errorf("KAFKA_ENABLED must be true to consume the audit stream")
	}

	var poster notify.MessagePoster
	if cfg.DiscordToken != "" {
		breaker := guard.NewCircuitBreaker(cfg.BreakerFailures, cfg.BreakerReset)
		poster = provider.NewDiscordClient(cfg.DiscordAPIBaseURL, cfg.DiscordToken, cfg.DiscordGuildID, cfg.HTTPTimeout, breaker, logger)
	}
	alerts := notify.NewChannelLogger("audit", logger, poster, cfg.LogChannelID, slog.LevelWarn)

	consumer := infra.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaAuditTopic, cfg.KafkaGroupID, logger)
	defer consumer.Close()

	logger.Info("audit-consumer starting", "topic", cfg.KafkaAuditTopic)
	err := consumer.Consume(ctx, func(ctx context.Context, key, value []byte) error {
		var event domain.AuditEvent
		if err := json.Unmarshal(value, &event); err != nil {
			return fmt.Errorf("decode audit event %s: %w", key, err)
		}
		args := []any{
			"event_id", event.EventID,
			"event_type", event.EventType,
			"aggregate_type", event.AggregateType,
			"aggregate_id", event.AggregateID,
		}
		switch event.Level {
		case domain.LevelError:
			alerts.Error(ctx, event.Text, args...)
		case domain.LevelWarn:
			alerts.Warn(ctx, event.Text, args...)
		default:
			alerts.Info(ctx, event.Text, args...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("consume audit stream: %w", err)
	}
	logger.Info("audit-consumer shutting down")
	return nil
}
