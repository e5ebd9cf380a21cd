package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type AppConfig struct {
	StockfishPath string
	EngineHashMB  int

	Pass1Depth int
	Pass2Depth int
	DeepPass   bool

	RedisURL      string
	ChannelPrefix string

	HTTPAddr    string
	MessagesDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		EngineHashMB:  64,
		Pass1Depth:    12,
		Pass2Depth:    16,
		DeepPass:      true,
		ChannelPrefix: "review",
		HTTPAddr:      ":8080",
	}

	cfg.StockfishPath = strings.TrimSpace(os.Getenv("STOCKFISH_PATH"))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))

	if v := strings.TrimSpace(os.Getenv("NOTIFY_CHANNEL_PREFIX")); v != "" {
		cfg.ChannelPrefix = v
	}
	if v := strings.TrimSpace(os.Getenv("HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}

	var err error
	if cfg.EngineHashMB, err = positiveInt("ENGINE_HASH_MB", cfg.EngineHashMB); err != nil {
		return nil, err
	}
	if cfg.Pass1Depth, err = positiveInt("ANALYSIS_PASS1_DEPTH", cfg.Pass1Depth); err != nil {
		return nil, err
	}
	if cfg.Pass2Depth, err = positiveInt("ANALYSIS_PASS2_DEPTH", cfg.Pass2Depth); err != nil {
		return nil, err
	}
	if v := strings.TrimSpace(os.Getenv("ANALYSIS_DEEP_PASS")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("ANALYSIS_DEEP_PASS: %w", err)
		}
		cfg.DeepPass = b
	}

	if cfg.StockfishPath == "" {
		return nil, errors.New("STOCKFISH_PATH is required")
	}
	if cfg.Pass2Depth < cfg.Pass1Depth {
		return nil, fmt.Errorf("ANALYSIS_PASS2_DEPTH (%d) must not be below ANALYSIS_PASS1_DEPTH (%d)", cfg.Pass2Depth, cfg.Pass1Depth)
	}

	return cfg, nil
}

func positiveInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be > 0: %d", key, n)
	}
	return n, nil
}
