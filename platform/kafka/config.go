package kafka

// Config содержит конфигурацию подключения к Kafka
type Config struct {
	// Brokers список брокеров через запятую: "broker1:9092,broker2:9092".
	// Локально (go run) обычно localhost:19092, в Docker kafka:9092.
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:19092"`
	// Topic топик, куда storefront публикует события изменения корзины и избранного
	Topic string `env:"KAFKA_TOPIC" envDefault:"storefront.state-events"`
	// GroupID consumer group для чтения событий (cmd/storefront-events)
	GroupID string `env:"KAFKA_GROUP_ID" envDefault:"storefront-events"`
}

// DefaultConfig возвращает конфигурацию для локальной разработки
func DefaultConfig() Config {
	return Config{
		Brokers: []string{"localhost:19092"},
		Topic:   "storefront.state-events",
		GroupID: "storefront-events",
	}
}
