package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"STOCKFISH_PATH", "ENGINE_HASH_MB", "ANALYSIS_PASS1_DEPTH", "ANALYSIS_PASS2_DEPTH",
	"ANALYSIS_DEEP_PASS", "REDIS_URL", "NOTIFY_CHANNEL_PREFIX", "HTTP_ADDR", "MESSAGES_DIR",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("STOCKFISH_PATH", " /usr/games/stockfish ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/usr/games/stockfish", cfg.StockfishPath)
	assert.Equal(t, 64, cfg.EngineHashMB)
	assert.Equal(t, 12, cfg.Pass1Depth)
	assert.Equal(t, 16, cfg.Pass2Depth)
	assert.True(t, cfg.DeepPass)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "review", cfg.ChannelPrefix)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STOCKFISH_PATH", "/bin/sf")
	t.Setenv("ENGINE_HASH_MB", "256")
	t.Setenv("ANALYSIS_PASS1_DEPTH", "8")
	t.Setenv("ANALYSIS_PASS2_DEPTH", "20")
	t.Setenv("ANALYSIS_DEEP_PASS", "false")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("HTTP_ADDR", "127.0.0.1:9000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.EngineHashMB)
	assert.Equal(t, 8, cfg.Pass1Depth)
	assert.Equal(t, 20, cfg.Pass2Depth)
	assert.False(t, cfg.DeepPass)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTPAddr)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "missing engine", env: map[string]string{}, want: "STOCKFISH_PATH"},
		{name: "bad hash", env: map[string]string{"STOCKFISH_PATH": "sf", "ENGINE_HASH_MB": "lots"}, want: "ENGINE_HASH_MB"},
		{name: "zero depth", env: map[string]string{"STOCKFISH_PATH": "sf", "ANALYSIS_PASS1_DEPTH": "0"}, want: "ANALYSIS_PASS1_DEPTH"},
		{name: "shallow deep pass", env: map[string]string{"STOCKFISH_PATH": "sf", "ANALYSIS_PASS2_DEPTH": "6"}, want: "ANALYSIS_PASS2_DEPTH"},
		{name: "bad bool", env: map[string]string{"STOCKFISH_PATH": "sf", "ANALYSIS_DEEP_PASS": "maybe"}, want: "ANALYSIS_DEEP_PASS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
