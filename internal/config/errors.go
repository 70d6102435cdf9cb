package config

import "errors"

// 呼び出し側がerrors.Isで判別できるエラー種別。
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)
