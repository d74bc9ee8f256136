package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 100, cfg.Search.MaxResults)
	assert.Equal(t, 20, cfg.Search.DefaultLimit)
	assert.InDelta(t, 0.8, cfg.Merge.DefaultThreshold, 1e-9)
	assert.Equal(t, "slot-mutations", cfg.Kafka.Topics.SlotMutations)
	assert.Equal(t, "slot-merged", cfg.Kafka.Topics.SlotMerged)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9999
  readTimeout: 5s
search:
  maxResults: 50
  defaultLimit: 10
merge:
  defaultThreshold: 0.6
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 50, cfg.Search.MaxResults)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.InDelta(t, 0.6, cfg.Merge.DefaultThreshold, 1e-9)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MS_SERVER_PORT", "7070")
	t.Setenv("MS_POSTGRES_HOST", "db.internal")
	t.Setenv("MS_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestValidateRejectsBadLimits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
search:
  maxResults: 10
  defaultLimit: 50
`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateRejectsBadThreshold(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
merge:
  defaultThreshold: 1.5
`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{
		Host: "localhost", Port: 5432, User: "u", Password: "pw",
		Database: "memoslot", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=localhost port=5432 user=u password=pw dbname=memoslot sslmode=disable",
		p.DSN(),
	)
}
