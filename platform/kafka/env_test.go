package kafka

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadEnv_Defaults(t *testing.T) {
	// t.Setenv восстановит значения после теста
	t.Setenv("KAFKA_BROKERS", "unused")
	t.Setenv("KAFKA_TOPIC", "unused")
	t.Setenv("KAFKA_GROUP_ID", "unused")
	os.Unsetenv("KAFKA_BROKERS")
	os.Unsetenv("KAFKA_TOPIC")
	os.Unsetenv("KAFKA_GROUP_ID")

	var cfg Config
	require.NoError(t, LoadEnv(&cfg))
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadEnv_Overrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("KAFKA_TOPIC", "cart.events")

	var cfg Config
	require.NoError(t, LoadEnv(&cfg))
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Brokers)
	require.Equal(t, "cart.events", cfg.Topic)
}
