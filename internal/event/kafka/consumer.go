package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ErrUnknownEvent сообщение не является событием storefront
var ErrUnknownEvent = errors.New("unknown state event")

// messageReader часть kafka.Reader, которая нужна consumer-у
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// StateEventHandler обрабатывает одно событие; ошибка не останавливает чтение
type StateEventHandler func(ctx context.Context, ev StateEvent) error

// StateEventConsumer читает события изменения корзины и избранного из топика
type StateEventConsumer struct {
	logger  *zap.Logger
	reader  messageReader
	handler StateEventHandler
}

// NewStateEventConsumer создаёт consumer в consumer group
func NewStateEventConsumer(logger *zap.Logger, brokers []string, groupID, topic string, handler StateEventHandler) *StateEventConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return newStateEventConsumer(logger, reader, handler)
}

func newStateEventConsumer(logger *zap.Logger, reader messageReader, handler StateEventHandler) *StateEventConsumer {
	return &StateEventConsumer{
		logger:  logger.With(zap.String("component", "kafka_consumer")),
		reader:  reader,
		handler: handler,
	}
}

// Close закрывает Kafka reader
func (c *StateEventConsumer) Close() error {
	return c.reader.Close()
}

// Start читает сообщения до отмены ctx.
// Offset коммитится после обработки; битые сообщения коммитятся и пропускаются.
func (c *StateEventConsumer) Start(ctx context.Context) error {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer context cancelled, stopping")
				return nil
			}
			c.logger.Error("failed to fetch message from kafka", zap.Error(err))
			continue
		}

		c.process(ctx, m)

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("failed to commit message offset",
				zap.Error(err),
				zap.String("topic", m.Topic),
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
			)
		}
	}
}

func (c *StateEventConsumer) process(ctx context.Context, m kafka.Message) {
	ev, err := DecodeStateEvent(m)
	if err != nil {
		c.logger.Warn("skipping malformed state event",
			zap.Error(err),
			zap.String("topic", m.Topic),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
		)
		return
	}
	if err := c.handler(ctx, ev); err != nil {
		c.logger.Error("failed to handle state event",
			zap.Error(err),
			zap.String("event_id", ev.EventID),
			zap.String("event_type", ev.EventType),
		)
	}
}

// DecodeStateEvent разбирает сообщение, опубликованное StateEventPublisher
func DecodeStateEvent(m kafka.Message) (StateEvent, error) {
	var ev StateEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		return StateEvent{}, fmt.Errorf("decode state event: %w", err)
	}
	switch ev.EventType {
	case EventTypeCartChanged, EventTypeFavoritesChanged:
	default:
		return StateEvent{}, fmt.Errorf("%w: %q", ErrUnknownEvent, ev.EventType)
	}
	if ev.EventID == "" {
		return StateEvent{}, fmt.Errorf("decode state event: empty event_id")
	}
	return ev, nil
}
