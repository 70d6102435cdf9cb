// Package httpclient はJSON APIを呼び出す薄いHTTPクライアントを提供する。
//
// 2xx以外のレスポンスは*StatusErrorとして返すため、呼び出し側は
// IsNotFoundなどでステータスを判別できる。
package httpclient
