// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// checkout.Recorderを満たす。
type Collector struct {
	confirmSuccess  prometheus.Counter
	confirmRejected *prometheus.CounterVec
	confirmLatency  prometheus.Histogram
	slotsCommitted  prometheus.Counter
	registrations   prometheus.Counter
	catalogImported prometheus.Counter
	catalogSkipped  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		confirmSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "volman_confirm_success_total",
			Help: "カート確定成功の合計数",
		}),
		confirmRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "volman_confirm_rejected_total",
			Help: "拒否理由コード別のカート確定拒否数",
		}, []string{"code"}),
		confirmLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "volman_confirm_latency_seconds",
			Help:    "カート確定のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		slotsCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "volman_slots_committed_total",
			Help: "確定された登録枠の合計数",
		}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "volman_registrations_created_total",
			Help: "作成された登録レコードの合計数",
		}),
		catalogImported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "volman_catalog_imported_total",
			Help: "カタログから取り込まれたプロジェクトの合計数",
		}),
		catalogSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "volman_catalog_skipped_total",
			Help: "検証失敗でスキップされたカタログ行の合計数",
		}),
	}

	reg.MustRegister(
		c.confirmSuccess,
		c.confirmRejected,
		c.confirmLatency,
		c.slotsCommitted,
		c.registrations,
		c.catalogImported,
		c.catalogSkipped,
	)

	return c
}

// RecordConfirmSuccess はカート確定成功を記録する。
func (c *Collector) RecordConfirmSuccess(registrations, slots int) {
	c.confirmSuccess.Inc()
	c.registrations.Add(float64(registrations))
	c.slotsCommitted.Add(float64(slots))
}

// RecordConfirmRejected は拒否理由コード付きでカート確定拒否を記録する。
func (c *Collector) RecordConfirmRejected(code string) {
	c.confirmRejected.WithLabelValues(code).Inc()
}

// RecordConfirmLatency はカート確定のレイテンシを記録する。
func (c *Collector) RecordConfirmLatency(d time.Duration) {
	c.confirmLatency.Observe(d.Seconds())
}

// RecordCatalogImport はカタログ取り込みの結果を記録する。
func (c *Collector) RecordCatalogImport(imported, skipped int) {
	c.catalogImported.Add(float64(imported))
	c.catalogSkipped.Add(float64(skipped))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
