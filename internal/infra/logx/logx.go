package logx

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New 构造写到 stderr 的 zap logger（stdout 保留给 JSON 报告）。
//
// - level：debug/info/warn/error，空串视为 warn
// - format：json/console，空串视为 console
func New(level, format string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()

	lv := strings.TrimSpace(level)
	if lv == "" {
		lv = "warn"
	}
	parsed, err := zapcore.ParseLevel(lv)
	if err != nil {
		return nil, fmt.Errorf("log level 无效：%q", level)
	}
	cfg.Level = zap.NewAtomicLevelAt(parsed)

	switch strings.TrimSpace(format) {
	case "", "console":
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	case "json":
		cfg.Encoding = "json"
	default:
		return nil, fmt.Errorf("log format 只能是 json 或 console，实际是 %q", format)
	}

	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Sampling = nil
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// OrNop 把 nil logger 替换为 zap.NewNop()。
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
