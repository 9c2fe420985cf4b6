package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_JSONAddsServiceAndEnv(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{
		ServiceName: "storefront",
		Env:         "docker",
		Output:      &buf,
	})
	require.NoError(t, err)

	log.Info("hello")
	Sync(log)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "hello", entry["msg"])
	require.Equal(t, "storefront", entry["service"])
	require.Equal(t, "docker", entry["env"])
	require.Equal(t, "info", entry["level"])
}

func TestNew_LevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Env: "docker", Level: "warn", Output: &buf})
	require.NoError(t, err)

	log.Info("skipped")
	require.Zero(t, buf.Len())

	log.Warn("kept")
	require.Contains(t, buf.String(), "kept")
}

func TestNew_InvalidSettings(t *testing.T) {
	_, err := New(Config{Level: "verbose"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid log level")

	_, err = New(Config{Format: "xml"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid log format")
}
