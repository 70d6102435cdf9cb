package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix は設定を上書きする環境変数の接頭辞。
	EnvPrefix = "RISKEVENT_"
	// EnvConfigFile は読み込むYAMLファイルのパスを指定する環境変数。
	EnvConfigFile = EnvPrefix + "CONFIG"
)

// Load は既定値、YAMLファイル、環境変数の順に重ねてConfigを構築する。
// 優先順位（低 -> 高）:
//  1. 既定値 (New)
//  2. RISKEVENT_CONFIGが指定されている場合はYAMLファイル
//  3. 環境変数 (接頭辞 RISKEVENT_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// RISKEVENT_DB_PATH -> db_path のように接頭辞を除いた小文字のキーに対応させる
	envProvider := env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, any) {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		if key == "config" {
			return "", nil
		}
		if key == "allowed_origins" {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: 環境変数: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate は設定値の整合性を検証する。
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addrが空です", ErrInvalidConfig)
	case c.DBPath == "":
		return fmt.Errorf("%w: db_pathが空です", ErrInvalidConfig)
	case c.DefaultLimit <= 0:
		return fmt.Errorf("%w: default_limitは1以上で指定してください: %d", ErrInvalidConfig, c.DefaultLimit)
	case c.MaxLimit < c.DefaultLimit:
		return fmt.Errorf("%w: max_limit(%d)はdefault_limit(%d)以上で指定してください", ErrInvalidConfig, c.MaxLimit, c.DefaultLimit)
	case c.ShutdownTimeout <= 0:
		return fmt.Errorf("%w: shutdown_timeoutは正の値で指定してください", ErrInvalidConfig)
	}
	return nil
}

// splitList はカンマ区切りの値を空要素を除いて分割する。
func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
