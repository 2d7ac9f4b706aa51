package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old := os.Getenv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if old == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func TestLoad_WithValidConfig(t *testing.T) {
	// Set required env vars
	setEnv(t, "BOT_TOKEN", "123456:test-token")
	setEnv(t, "OPS_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.OpsPort)
	assert.Equal(t, DefaultChatAPIURL, cfg.ChatAPIURL)
	assert.Equal(t, DefaultQueueFile, cfg.QueueFile)
	assert.Equal(t, int64(DefaultRateFloor), cfg.RateFloor)
	assert.Equal(t, DefaultResultPollAttempts, cfg.ResultPollAttempts)
}

func TestLoad_MissingBotToken(t *testing.T) {
	// Clear bot token
	setEnv(t, "BOT_TOKEN", "")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "BOT_TOKEN is required")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name: "valid config",
			config: Config{
				BotToken:           "123456:test-token",
				QueueFile:          "deal_queue.json",
				RateFloor:          85,
				ResultPollAttempts: 60,
			},
			wantErr: "",
		},
		{
			name: "missing bot token",
			config: Config{
				QueueFile:          "deal_queue.json",
				RateFloor:          85,
				ResultPollAttempts: 60,
			},
			wantErr: "BOT_TOKEN is required",
		},
		{
			name: "empty queue file",
			config: Config{
				BotToken:           "123456:test-token",
				QueueFile:          "",
				RateFloor:          85,
				ResultPollAttempts: 60,
			},
			wantErr: "QUEUE_FILE must not be empty",
		},
		{
			name: "rate floor below one",
			config: Config{
				BotToken:           "123456:test-token",
				QueueFile:          "deal_queue.json",
				RateFloor:          0,
				ResultPollAttempts: 60,
			},
			wantErr: "RATE_FLOOR must be at least 1",
		},
		{
			name: "bypass hash in production",
			config: Config{
				Env:                "production",
				BotToken:           "123456:test-token",
				QueueFile:          "deal_queue.json",
				RateFloor:          85,
				ResultPollAttempts: 60,
				BypassTxHash:       "0xdeadbeef",
			},
			wantErr: "BYPASS_TX_HASH must not be set in production",
		},
		{
			name: "bypass hash outside production",
			config: Config{
				Env:                "staging",
				BotToken:           "123456:test-token",
				QueueFile:          "deal_queue.json",
				RateFloor:          85,
				ResultPollAttempts: 60,
				BypassTxHash:       "0xdeadbeef",
			},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	cfg := &Config{Env: "development"}
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	cfg.Env = "production"
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.IsProduction())
}

func TestGetEnv(t *testing.T) {
	setEnv(t, "TEST_VAR", "custom_value")

	assert.Equal(t, "custom_value", getEnv("TEST_VAR", "default"))
	assert.Equal(t, "default", getEnv("NONEXISTENT_VAR", "default"))
}

func TestGetEnvInt64(t *testing.T) {
	setEnv(t, "TEST_INT", "42")
	setEnv(t, "TEST_INVALID", "not_a_number")

	assert.Equal(t, int64(42), getEnvInt64("TEST_INT", 0))
	assert.Equal(t, int64(99), getEnvInt64("NONEXISTENT_VAR", 99))
	assert.Equal(t, int64(99), getEnvInt64("TEST_INVALID", 99)) // Falls back on parse error
}

func TestGetEnvList(t *testing.T) {
	setEnv(t, "TEST_LIST", "alice, bob ,carol,,")

	got := getEnvList("TEST_LIST")
	want := []string{"alice", "bob", "carol"}
	require.Equal(t, want, got)

	assert.Nil(t, getEnvList("NONEXISTENT_VAR"))
}

func TestGetEnvDuration(t *testing.T) {
	setEnv(t, "TEST_DURATION", "750ms")
	setEnv(t, "TEST_INVALID_DURATION", "soon")

	assert.Equal(t, 750*time.Millisecond, getEnvDuration("TEST_DURATION", time.Second))
	assert.Equal(t, time.Second, getEnvDuration("NONEXISTENT_VAR", time.Second))
	assert.Equal(t, time.Second, getEnvDuration("TEST_INVALID_DURATION", time.Second))
}
