// Package config はリスクイベントサービスの設定を定義し、読み込む。
//
// 設定は既定値、YAMLファイル（RISKEVENT_CONFIG）、環境変数（RISKEVENT_接頭辞）の
// 順に重ねて構築する。後から読み込んだ値が優先される。
package config

import "time"

// Config はプロセス全体の設定。
type Config struct {
	// Addr はHTTPサーバーのリッスンアドレス（例: ":8080"）。
	Addr string `koanf:"addr"`

	// DBPath はSQLiteデータベースファイルのパス。":memory:"でインメモリになる。
	DBPath string `koanf:"db_path"`

	// LogLevel はログの出力レベル: debug, info, warn, error。
	LogLevel string `koanf:"log_level"`
	// LogFormat はログの形式: json, console。空の場合は環境に応じて決まる。
	LogFormat string `koanf:"log_format"`
	// Environment は実行環境: development, production。
	Environment string `koanf:"environment"`

	// DefaultLimit はlimit省略時に返す件数。
	DefaultLimit int `koanf:"default_limit"`
	// MaxLimit は一度に返す件数の上限。
	MaxLimit int `koanf:"max_limit"`

	// AllowedOrigins はCORSで許可するオリジン。"*"ですべて許可する。
	AllowedOrigins []string `koanf:"allowed_origins"`

	// ShutdownTimeout はグレースフルシャットダウンの待機時間。
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// New は既定値で初期化されたConfigを返す。
func New() *Config {
	return &Config{
		Addr:            ":8080",
		DBPath:          "data/riskevent.db",
		LogLevel:        "info",
		Environment:     "development",
		DefaultLimit:    100,
		MaxLimit:        1000,
		AllowedOrigins:  []string{"*"},
		ShutdownTimeout: 10 * time.Second,
	}
}
