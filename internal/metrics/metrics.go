// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// Resolverとアイテム取り込みサービスから利用する。
type MetricsCollector interface {
	RecordResolve(outcome string, duration time.Duration)
	RecordHTTPStatus(statusCode int)
	RecordIngest(outcome string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	resolveTotal   *prometheus.CounterVec
	resolveLatency prometheus.Histogram
	httpStatus     *prometheus.CounterVec
	ingestTotal    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		resolveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "later_resolve_total",
			Help: "URL解決の結果別の合計数",
		}, []string{"outcome"}),
		resolveLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "later_resolve_latency_seconds",
			Help:    "URL解決のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "later_upstream_http_status_total",
			Help: "解決先URLのHTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		ingestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "later_items_ingested_total",
			Help: "アイテム取り込みの結果別の合計数（created, merged, unchanged）",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		c.resolveTotal,
		c.resolveLatency,
		c.httpStatus,
		c.ingestTotal,
	)

	return c
}

// RecordResolve はURL解決の結果とレイテンシを記録する。
func (c *Collector) RecordResolve(outcome string, duration time.Duration) {
	c.resolveTotal.WithLabelValues(outcome).Inc()
	c.resolveLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordIngest はアイテム取り込みの結果を記録する。
func (c *Collector) RecordIngest(outcome string) {
	c.ingestTotal.WithLabelValues(outcome).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var _ MetricsCollector = (*Collector)(nil)
