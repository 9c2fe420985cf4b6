// Command storefront-events читает из Kafka события изменения корзины и избранного
// и пишет их в лог. Удобно для проверки публикации при KAFKA_ENABLED=true.
//
// Переменные окружения:
//   - KAFKA_BROKERS (например, "localhost:19092" или "kafka:9092" для Docker)
//   - KAFKA_TOPIC (по умолчанию "storefront.state-events")
//   - KAFKA_GROUP_ID (по умолчанию "storefront-events")
//   - LOG_LEVEL, LOG_FORMAT
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	eventkafka "github.com/shestoi/GoBigTech/storefront/internal/event/kafka"
	platformkafka "github.com/shestoi/GoBigTech/storefront/platform/kafka"
	platformlogging "github.com/shestoi/GoBigTech/storefront/platform/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := platformlogging.New(platformlogging.Config{
		ServiceName: "storefront-events",
		Env:         "local",
		Level:       os.Getenv("LOG_LEVEL"),
		Format:      os.Getenv("LOG_FORMAT"),
	})
	if err != nil {
		os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer platformlogging.Sync(logger)

	cfg := platformkafka.DefaultConfig()
	if err := platformkafka.LoadEnv(&cfg); err != nil {
		logger.Error("failed to load kafka config", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("kafka config loaded",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic),
		zap.String("group_id", cfg.GroupID),
	)

	consumer := eventkafka.NewStateEventConsumer(logger, cfg.Brokers, cfg.GroupID, cfg.Topic,
		func(_ context.Context, ev eventkafka.StateEvent) error {
			logger.Info("state event",
				zap.String("event_id", ev.EventID),
				zap.String("event_type", ev.EventType),
				zap.String("op", ev.Op),
				zap.Uint64("state_version", ev.StateVersion),
				zap.String("occurred_at", ev.OccurredAt),
				zap.ByteString("data", ev.Data),
			)
			return nil
		})
	defer func() {
		if err := consumer.Close(); err != nil {
			logger.Error("failed to close kafka reader", zap.Error(err))
		}
	}()

	if err := consumer.Start(ctx); err != nil {
		logger.Error("consumer stopped with error", zap.Error(err))
	}
}
