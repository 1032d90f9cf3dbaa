package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFileDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Storage.Driver)
	assert.Equal(t, "2", cfg.Bidding.IncrementPercent)
	assert.Equal(t, 3, cfg.Bidding.MaxRetries)
	assert.True(t, cfg.Bidding.RecordRejected)
	assert.Equal(t, "@every 5s", cfg.Sweeper.Spec)
	assert.Equal(t, 30*time.Second, cfg.Leader.TTL)
	assert.Equal(t, 2*time.Second, cfg.Fanout.GapTimeout)
}

func TestLoadFromFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
storage:
  driver: memory
bidding:
  increment_percent: "5"
  max_retries: 5
kafka:
  brokers: ["kafka-1:9092", "kafka-2:9092"]
fanout:
  gap_timeout: 500ms
identity:
  actors:
    - id: alice
      role: buyer
      verified: true
    - id: ops
      role: admin
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "5", cfg.Bidding.IncrementPercent)
	assert.Equal(t, 5, cfg.Bidding.MaxRetries)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 500*time.Millisecond, cfg.Fanout.GapTimeout)
	require.Len(t, cfg.Identity.Actors, 2)
	assert.Equal(t, ActorSeed{ID: "alice", Role: "buyer", Verified: true}, cfg.Identity.Actors[0])
	assert.False(t, cfg.Identity.Actors[1].Verified)
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  driver: sqlite\n"), 0o600))

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite")
}
