package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "chat.conversation.updated", cfg.KafkaTopic)
	assert.Equal(t, 10*time.Minute, cfg.HandoffTTL)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Empty(t, cfg.ScyllaHosts)
	assert.Equal(t, "rentchat", cfg.ScyllaKeyspace)
	assert.Equal(t, "quorum", cfg.ScyllaConsistency)
	assert.Equal(t, 5*time.Second, cfg.ScyllaTimeout)
}

func TestLoadParsesScyllaHosts(t *testing.T) {
	t.Setenv("SCYLLA_HOSTS", "scylla-a, scylla-b ,")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"scylla-a", "scylla-b"}, cfg.ScyllaHosts)
}

func TestLoadParsesBrokerList(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker-a:9092, broker-b:9092 ,")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"broker-a:9092", "broker-b:9092"}, cfg.KafkaBrokers)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("HANDOFF_TTL", "pronto")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadPublicEndpointFallsBackToEndpoint(t *testing.T) {
	t.Setenv("S3_ENDPOINT", "http://minio:9000")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://minio:9000", cfg.S3PublicEndpoint)
}
