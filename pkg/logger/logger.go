// Package logger はzapベースの構造化ロガーを生成する。
//
// ロガーはグローバルに保持せず、生成したものを各コンポーネントへ明示的に渡す。
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvironmentProduction は本番環境を表す環境名。
const EnvironmentProduction = "production"

// Options はロガーの生成オプション。
type Options struct {
	// Environment は実行環境。"production"の場合はJSON/ISO8601の本番設定になる。
	Environment string
	// Level はログレベル（debug, info, warn, error）。
	Level string
	// Format は出力形式（json, console）。空の場合は環境に応じて決まる。
	Format string
}

// New はOptionsに従ってzapロガーを生成する。
func New(opts Options) (*zap.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	var cfg zap.Config
	if opts.Environment == EnvironmentProduction {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.DisableStacktrace = true
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	switch opts.Format {
	case "json":
		cfg.Encoding = "json"
		// JSON出力に色付けのエスケープシーケンスを混ぜない
		cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	case "console":
		cfg.Encoding = "console"
	case "":
	default:
		return nil, fmt.Errorf("未知のログ形式です: %s", opts.Format)
	}

	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	l, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return nil, fmt.Errorf("ロガーの生成に失敗: %w", err)
	}
	return l, nil
}

// ParseLevel はログレベル文字列をzapcore.Levelに変換する。
// 大文字小文字は区別しない。空文字列はinfoとして扱う。
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("未知のログレベルです: %s", level)
	}
}
