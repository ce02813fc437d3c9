package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はアプリケーションのメトリクスを管理する
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// カートへの追加試行の総数（status: success, conflict, sold, error）
	CartAdditionsTotal *prometheus.CounterVec

	// チェックアウト試行の総数（status: committed, aborted, partial, error）
	CheckoutsTotal *prometheus.CounterVec

	// スイーパーが期限切れにした予約の総数
	SweptReservationsTotal prometheus.Counter

	// 現在有効なカート内予約数
	ActiveReservations prometheus.Gauge
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		CartAdditionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cart_additions_total",
				Help: "Total number of add-to-cart attempts",
			},
			[]string{"status"},
		),
		CheckoutsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkouts_total",
				Help: "Total number of checkout attempts",
			},
			[]string{"status"},
		),
		SweptReservationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "swept_reservations_total",
				Help: "Total number of reservations expired by the sweeper",
			},
		),
		ActiveReservations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "active_reservations",
				Help: "Current number of active cart reservations",
			},
		),
	}

	// レジストリに登録
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CartAdditionsTotal,
		m.CheckoutsTotal,
		m.SweptReservationsTotal,
		m.ActiveReservations,
	)

	return m
}

// デフォルトのメトリクスインスタンス
var defaultMetrics *Metrics

// Init はデフォルトのメトリクスインスタンスを初期化する
func Init() *Metrics {
	defaultMetrics = New()
	return defaultMetrics
}

// Get はデフォルトのメトリクスインスタンスを返す
func Get() *Metrics {
	return defaultMetrics
}
