package metrics

// Option はMetricsの設定を変更する関数。
type Option func(*Metrics)

// WithNamespace はメトリクス名の接頭辞を設定する。
func WithNamespace(namespace string) Option {
	return func(m *Metrics) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithHistogramBuckets はレイテンシヒストグラムのバケットを設定する。
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Metrics) {
		if len(buckets) > 0 {
			m.buckets = buckets
		}
	}
}
