package obslog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultLogFile is used when LOG_FILE is unset.
var DefaultLogFile = filepath.Join("logs", "review.log")

var global atomic.Pointer[zap.Logger]

func init() { global.Store(zap.NewNop()) }

// L는 전역 로거를 반환. InitFromEnv 전에는 no-op.
func L() *zap.Logger { return global.Load() }

// Replace는 전역 로거를 교체하고 복원 함수를 반환.
func Replace(l *zap.Logger) func() {
	if l == nil {
		l = zap.NewNop()
	}
	prev := global.Swap(l)
	return func() { global.Store(prev) }
}

// Settings mirror the LOG_* environment variables.
type Settings struct {
	Level   zapcore.Level
	Format  string // legacy, json or console
	Console bool
	ToFile  bool
	File    string
	Caller  bool
}

func SettingsFromEnv() Settings {
	format := strings.ToLower(strings.TrimSpace(getenvDefault("LOG_FORMAT", "legacy")))
	switch format {
	case "legacy", "json", "console":
	default:
		format = "legacy"
	}
	return Settings{
		Level:   parseLevel(getenvDefault("LOG_LEVEL", "info")),
		Format:  format,
		Console: parseBool(getenvDefault("LOG_TO_CONSOLE", "true")),
		ToFile:  parseBool(getenvDefault("LOG_TO_FILE", "false")),
		File:    strings.TrimSpace(getenvDefault("LOG_FILE", DefaultLogFile)),
		Caller:  parseBool(getenvDefault("LOG_CALLER", "false")),
	}
}

// InitFromEnv는 환경설정으로 zap 로거를 초기화.
func InitFromEnv() error {
	l, err := Build(SettingsFromEnv())
	if err != nil {
		return err
	}
	Replace(l)
	return nil
}

// 콘솔+파일 동시 출력 지원.
func Build(s Settings) (*zap.Logger, error) {
	var cores []zapcore.Core

	if s.Console {
		cores = append(cores, zapcore.NewCore(newEncoder(s.Format), zapcore.AddSync(os.Stdout), s.Level))
	}
	if s.ToFile {
		if err := ensureDir(filepath.Dir(s.File)); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(s.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(newEncoder(s.Format), zapcore.AddSync(f), s.Level))
	}
	if len(cores) == 0 {
		enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(os.Stderr), s.Level))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	if s.Caller || s.Format == "legacy" {
		logger = logger.WithOptions(zap.AddCaller())
	}
	return logger.WithOptions(zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

func newEncoder(format string) zapcore.Encoder {
	switch format {
	case "json":
		return zapcore.NewJSONEncoder(jsonEncoderConfig())
	case "console":
		return zapcore.NewConsoleEncoder(consoleEncoderConfig())
	default:
		return zapcore.NewConsoleEncoder(legacyEncoderConfig())
	}
}

func ensureDir(dir string) error {
	if strings.TrimSpace(dir) == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "dpanic":
		return zapcore.DPanicLevel
	case "panic":
		return zapcore.PanicLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func legacyEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.ConsoleSeparator = " | "
	return cfg
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

func jsonEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	return cfg
}
