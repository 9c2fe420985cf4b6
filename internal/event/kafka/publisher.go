package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shestoi/GoBigTech/storefront/internal/service"
)

const (
	EventTypeCartChanged      = "storefront.cart.changed"
	EventTypeFavoritesChanged = "storefront.favorites.changed"

	eventVersion = 1
)

// messageWriter часть kafka.Writer, которая нужна publisher-у
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// StateEventPublisher публикует в Kafka события изменения корзины и избранного.
// Подписывается на stores как after-commit listener; запись асинхронная,
// поэтому мутация store не ждёт брокера.
type StateEventPublisher struct {
	logger *zap.Logger
	writer messageWriter
	topic  string
	now    func() time.Time
}

// NewStateEventPublisher создаёт publisher с асинхронным kafka.Writer
func NewStateEventPublisher(logger *zap.Logger, brokers []string, topic string) *StateEventPublisher {
	logger = logger.With(zap.String("component", "kafka_publisher"))
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{}, // один ключ - одна партиция, порядок версий сохраняется
		Async:                  true,
		AllowAutoTopicCreation: true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("failed to publish state events",
					zap.Error(err),
					zap.String("topic", topic),
					zap.Int("messages", len(messages)),
				)
			}
		},
	}
	return newStateEventPublisher(logger, writer, topic)
}

func newStateEventPublisher(logger *zap.Logger, writer messageWriter, topic string) *StateEventPublisher {
	return &StateEventPublisher{
		logger: logger,
		writer: writer,
		topic:  topic,
		now:    time.Now,
	}
}

// Close сбрасывает буфер и закрывает Kafka writer
func (p *StateEventPublisher) Close() error {
	return p.writer.Close()
}

// Bind подписывает publisher на обе store
func (p *StateEventPublisher) Bind(cart *service.CartStore, favorites *service.FavoritesStore) {
	cart.Subscribe(func(snap service.CartSnapshot) {
		p.publish(CartChangedMessage(snap, p.now()))
	})
	favorites.Subscribe(func(snap service.FavoritesSnapshot) {
		p.publish(FavoritesChangedMessage(snap, p.now()))
	})
}

func (p *StateEventPublisher) publish(msg kafka.Message, err error) {
	if err != nil {
		p.logger.Error("failed to build state event", zap.Error(err))
		return
	}
	if err := p.writer.WriteMessages(context.Background(), msg); err != nil {
		p.logger.Error("failed to publish state event",
			zap.Error(err),
			zap.String("topic", p.topic),
			zap.String("key", string(msg.Key)),
		)
		return
	}
	p.logger.Debug("state event queued",
		zap.String("topic", p.topic),
		zap.String("key", string(msg.Key)),
	)
}

// StateEvent конверт события в топике
type StateEvent struct {
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	EventVersion int             `json:"event_version"`
	OccurredAt   string          `json:"occurred_at"`
	Op           string          `json:"op"`
	StateVersion uint64          `json:"state_version"`
	Data         json.RawMessage `json:"data"`
}

type favoritesData struct {
	IDs   []int `json:"ids"`
	Count int   `json:"count"`
}

// CartChangedMessage собирает сообщение из снимка корзины (данные = сводка корзины)
func CartChangedMessage(snap service.CartSnapshot, at time.Time) (kafka.Message, error) {
	return buildMessage(EventTypeCartChanged, "cart", snap.Op, snap.Version, service.Summarize(snap), at)
}

// FavoritesChangedMessage собирает сообщение из снимка избранного
func FavoritesChangedMessage(snap service.FavoritesSnapshot, at time.Time) (kafka.Message, error) {
	ids := snap.IDs
	if ids == nil {
		ids = []int{}
	}
	return buildMessage(EventTypeFavoritesChanged, "favorites", snap.Op, snap.Version,
		favoritesData{IDs: ids, Count: len(ids)}, at)
}

func buildMessage(eventType, key, op string, version uint64, data any, at time.Time) (kafka.Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal %s data: %w", eventType, err)
	}

	value, err := json.Marshal(StateEvent{
		EventID:      uuid.New().String(),
		EventType:    eventType,
		EventVersion: eventVersion,
		OccurredAt:   at.UTC().Format(time.RFC3339),
		Op:           op,
		StateVersion: version,
		Data:         raw,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal %s: %w", eventType, err)
	}

	return kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
		Time: at,
	}, nil
}
