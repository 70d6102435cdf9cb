// Package metrics はリスクイベントサービスのPrometheusメトリクスを提供する。
//
// メトリクスはグローバルなレジストリではなく、Metricsごとに専用のレジストリへ登録する。
// 同一プロセス内で複数のサーバー（テスト等）を生成しても登録が衝突しない。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics はサービスのすべてのメトリクスを保持する。
// nilレシーバーに対する記録メソッドは何もしない。
type Metrics struct {
	// namespace はメトリクス名の接頭辞。
	namespace string
	// buckets はレイテンシヒストグラムのバケット（秒）。
	buckets []float64
	// registry はメトリクスの登録先。
	registry *prometheus.Registry

	// httpRequests はHTTPリクエスト数。
	httpRequests *prometheus.CounterVec
	// httpRequestDuration はHTTPリクエストの処理時間。
	httpRequestDuration *prometheus.HistogramVec
	// eventsCreated は作成されたリスクイベント数。
	eventsCreated *prometheus.CounterVec
	// storeOperationDuration はEvent Store操作の処理時間。
	storeOperationDuration *prometheus.HistogramVec
	// storeErrors はEvent Store操作の失敗数。
	storeErrors *prometheus.CounterVec
}

// New は新しいMetricsを生成し、専用レジストリに登録する。
func New(opts ...Option) *Metrics {
	m := &Metrics{
		namespace: "riskevent",
		buckets:   prometheus.DefBuckets,
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	auto := promauto.With(m.registry)

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests, labelled by route, method and status.",
	}, []string{"route", "method", "status"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   m.buckets,
	}, []string{"route", "method", "status"})

	m.eventsCreated = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "events_created_total",
		Help:      "Total number of risk events persisted, labelled by risk level.",
	}, []string{"risk_level"})

	m.storeOperationDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "store",
		Name:      "operation_duration_seconds",
		Help:      "Event store operation latency in seconds.",
		Buckets:   m.buckets,
	}, []string{"operation"})

	m.storeErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "store",
		Name:      "errors_total",
		Help:      "Total number of failed event store operations.",
	}, []string{"operation"})

	return m
}

// RecordHTTPRequest はHTTPリクエスト1件の結果を記録する。
func (m *Metrics) RecordHTTPRequest(route, method, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, status).Inc()
	m.httpRequestDuration.WithLabelValues(route, method, status).Observe(d.Seconds())
}

// RecordEventCreated はリスクイベントの作成を記録する。
// リスクレベルが空の場合は"none"として集計する。
func (m *Metrics) RecordEventCreated(level string) {
	if m == nil {
		return
	}
	if level == "" {
		level = "none"
	}
	m.eventsCreated.WithLabelValues(level).Inc()
}

// ObserveStoreOperation はEvent Store操作の処理時間と成否を記録する。
func (m *Metrics) ObserveStoreOperation(operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.storeOperationDuration.WithLabelValues(operation).Observe(d.Seconds())
	if err != nil {
		m.storeErrors.WithLabelValues(operation).Inc()
	}
}

// Registry はメトリクスの登録先レジストリを返す。
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler はPrometheus形式でメトリクスを公開するHTTPハンドラを返す。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
