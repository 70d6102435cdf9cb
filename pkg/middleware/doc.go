// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// リクエストIDの付与、構造化リクエストログ、パニックリカバリ、
// CORS設定、Prometheusメトリクス記録のミドルウェアを含む。
package middleware
