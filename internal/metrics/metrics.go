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
// サービス層およびミドルウェアから利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordDisbursementCreated(currency string)
	RecordSettlementCreated(currency string)
	RecordReconciliationRejected(reason string)
	RecordPurgedRows(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus             *prometheus.CounterVec
	requestLatency         prometheus.Histogram
	disbursementsCreated   *prometheus.CounterVec
	settlementsCreated     *prometheus.CounterVec
	reconciliationRejected *prometheus.CounterVec
	purgedRows             prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tally_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tally_request_latency_seconds",
			Help:    "APIリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		disbursementsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tally_disbursements_created_total",
			Help: "作成された立替の合計数",
		}, []string{"currency"}),
		settlementsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tally_settlements_created_total",
			Help: "作成された精算の合計数",
		}, []string{"currency"}),
		reconciliationRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tally_reconciliation_rejected_total",
			Help: "照合で拒否された精算リクエストの理由別合計数",
		}, []string{"reason"}),
		purgedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tally_purged_rows_total",
			Help: "保持期限切れで物理削除された行の合計数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.disbursementsCreated,
		c.settlementsCreated,
		c.reconciliationRejected,
		c.purgedRows,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はAPIリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordDisbursementCreated は立替の作成を記録する。
func (c *Collector) RecordDisbursementCreated(currency string) {
	c.disbursementsCreated.WithLabelValues(currency).Inc()
}

// RecordSettlementCreated は精算の作成を記録する。
func (c *Collector) RecordSettlementCreated(currency string) {
	c.settlementsCreated.WithLabelValues(currency).Inc()
}

// RecordReconciliationRejected は照合による精算拒否を理由付きで記録する。
func (c *Collector) RecordReconciliationRejected(reason string) {
	c.reconciliationRejected.WithLabelValues(reason).Inc()
}

// RecordPurgedRows は物理削除された行数を記録する。
func (c *Collector) RecordPurgedRows(count int) {
	c.purgedRows.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
