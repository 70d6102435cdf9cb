package eventstore

import (
	"github.com/nao1215/riskevent/pkg/metrics"
	"go.uber.org/zap"
)

// DefaultMaxLimit はQueryRecentが一度に返す件数の既定の上限。
const DefaultMaxLimit = 1000

// Option はStoreの設定を変更する関数。
type Option func(*Store)

// WithLogger はロガーを設定する。
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics は操作時間を記録するメトリクスを設定する。
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// WithMaxLimit はQueryRecentが一度に返す件数の上限を設定する。
// 0以下の値は無視する。
func WithMaxLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}
