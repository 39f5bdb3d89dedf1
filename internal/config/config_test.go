package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "localhost", cfg.PushHost)
	assert.Equal(t, 6214, cfg.PushPort)
	assert.Equal(t, "localhost:6214", cfg.PushAddr())
	assert.False(t, cfg.AutoStart)
	assert.Equal(t, 30*time.Minute, cfg.SpotLifetime)
	assert.Equal(t, 240*time.Minute, cfg.MaxSpotLifetime)
	assert.Equal(t, 15*time.Second, cfg.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.PollTimeout)
	assert.False(t, cfg.PollRetry)
	assert.Equal(t, time.Local, cfg.TimeZone)
	assert.Equal(t, 8, cfg.MaxLanes)
	assert.False(t, cfg.KafkaEnabled())
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "spots-inbound", cfg.KafkaSourceTopic)
	assert.Equal(t, "spots-accepted", cfg.KafkaSinkTopic)
	assert.Equal(t, "spotlane", cfg.KafkaGroupID)
	assert.Empty(t, cfg.Sources)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("PUSH_HOST", "0.0.0.0")
	t.Setenv("PUSH_PORT", "7300")
	t.Setenv("AUTO_START", "true")
	t.Setenv("SPOT_LIFETIME", "15m")
	t.Setenv("MAX_SPOT_LIFETIME", "1h")
	t.Setenv("POLL_INTERVAL", "30s")
	t.Setenv("POLL_TIMEOUT", "5s")
	t.Setenv("POLL_RETRY", "true")
	t.Setenv("SPOT_TIME_ZONE", "UTC")
	t.Setenv("MAX_LANES", "4")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SOURCE_TOPIC", "custom-in")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-out")
	t.Setenv("KAFKA_GROUP_ID", "custom-group")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "0.0.0.0:7300", cfg.PushAddr())
	assert.True(t, cfg.AutoStart)
	assert.Equal(t, 15*time.Minute, cfg.SpotLifetime)
	assert.Equal(t, time.Hour, cfg.MaxSpotLifetime)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.PollTimeout)
	assert.True(t, cfg.PollRetry)
	assert.Equal(t, time.UTC, cfg.TimeZone)
	assert.Equal(t, 4, cfg.MaxLanes)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-in", cfg.KafkaSourceTopic)
	assert.Equal(t, "custom-out", cfg.KafkaSinkTopic)
	assert.Equal(t, "custom-group", cfg.KafkaGroupID)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value, wantErr string
	}{
		{"SHUTDOWN_TIMEOUT", "not-a-duration", "SHUTDOWN_TIMEOUT"},
		{"SPOT_LIFETIME", "-1m", "SPOT_LIFETIME"},
		{"MAX_SPOT_LIFETIME", "forever", "MAX_SPOT_LIFETIME"},
		{"POLL_INTERVAL", "0s", "POLL_INTERVAL"},
		{"POLL_TIMEOUT", "soon", "POLL_TIMEOUT"},
		{"PUSH_PORT", "70000", "PUSH_PORT"},
		{"PUSH_PORT", "abc", "PUSH_PORT"},
		{"MAX_LANES", "0", "MAX_LANES"},
		{"AUTO_START", "maybe", "AUTO_START"},
		{"POLL_RETRY", "sometimes", "POLL_RETRY"},
		{"SPOT_TIME_ZONE", "Mars/Olympus_Mons", "SPOT_TIME_ZONE"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_DisplayLifetimeExceedsMax(t *testing.T) {
	t.Setenv("SPOT_LIFETIME", "5h")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_SPOT_LIFETIME")
}

func TestLoad_SourcesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sources:
  pota:
    enabled: true
    color: "#112233"
  hamqth:
    enabled: false
  sota:
    color: "#445566"
`), 0o600))
	t.Setenv("SOURCES_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	require.Len(t, cfg.Sources, 3)
	require.NotNil(t, cfg.Sources["pota"].Enabled)
	assert.True(t, *cfg.Sources["pota"].Enabled)
	assert.Equal(t, "#112233", cfg.Sources["pota"].Color)
	require.NotNil(t, cfg.Sources["hamqth"].Enabled)
	assert.False(t, *cfg.Sources["hamqth"].Enabled)
	assert.Nil(t, cfg.Sources["sota"].Enabled)
	assert.Equal(t, "#445566", cfg.Sources["sota"].Color)
}

func TestLoad_SourcesFileMissing(t *testing.T) {
	t.Setenv("SOURCES_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SOURCES_FILE")
}

func TestLoad_SourcesFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sources: [unclosed"), 0o600))
	t.Setenv("SOURCES_FILE", path)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse SOURCES_FILE")
}
