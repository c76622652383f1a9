package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 24*time.Hour, cfg.Engine.OverTimeLimit.Std())
	assert.Equal(t, "acctgate.events", cfg.Kafka.Topic)
}

func TestLoadTOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acctgate.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
addr = ":9090"

[engine]
overtime_limit = "1h30m"

[kafka]
brokers = ["kafka-1:9092", "kafka-2:9092"]
topic = "accounts"

[caller]
dispatcher_url = "http://dispatcher:7000/call"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 90*time.Minute, cfg.Engine.OverTimeLimit.Std())
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "accounts", cfg.Kafka.Topic)
	assert.Equal(t, "http://dispatcher:7000/call", cfg.Caller.DispatcherURL)
	// Untouched sections keep defaults.
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout.Std())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acctgate.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\naddr = \":9090\"\n"), 0o600))

	t.Setenv("ACCTGATE_ADDR", ":7070")
	t.Setenv("ACCTGATE_KAFKA_BROKERS", "one:9092, two:9092,")
	t.Setenv("ACCTGATE_OVERTIME_LIMIT", "2h")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, []string{"one:9092", "two:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2*time.Hour, cfg.Engine.OverTimeLimit.Std())
}

func TestFromEnv(t *testing.T) {
	t.Setenv("ACCTGATE_JWT_SIGNING_KEY", "test-key")
	cfg := FromEnv()
	assert.Equal(t, "test-key", cfg.Auth.JWTSigningKey)
}
