package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// HTTP метрики
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		},
		[]string{"method", "path"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests in flight",
		},
	)

	// Запросы к ETHGas API
	ExchangeAPIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ethgas_api_requests_total",
			Help: "Total number of ETHGas API requests",
		},
		[]string{"endpoint", "status"},
	)
	ExchangeAPIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "ethgas_api_request_duration_seconds",
			Help: "Duration of ETHGas API requests in seconds",
		},
		[]string{"endpoint"},
	)

	// Синхронизация ордеров
	OrdersPlacedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_placed_total",
			Help: "Order placements by market type and outcome",
		},
		[]string{"market", "result"},
	)
	OrdersCancelledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_cancelled_total",
			Help: "Order cancellations by outcome",
		},
		[]string{"result"},
	)
	SyncRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_sync_records_total",
			Help: "Exchange order records merged into the local store, by outcome",
		},
		[]string{"outcome"},
	)
	SyncListingFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_sync_listing_failures_total",
			Help: "Exchange order listings that failed and degraded to local state",
		},
		[]string{"market"},
	)

	// Кэш рыночных данных
	MarketCacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_cache_lookups_total",
			Help: "Market snapshot cache lookups by result",
		},
		[]string{"market", "result"},
	)
)

func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestsInFlight)

	prometheus.MustRegister(ExchangeAPIRequestsTotal)
	prometheus.MustRegister(ExchangeAPIRequestDuration)

	prometheus.MustRegister(OrdersPlacedTotal)
	prometheus.MustRegister(OrdersCancelledTotal)
	prometheus.MustRegister(SyncRecordsTotal)
	prometheus.MustRegister(SyncListingFailuresTotal)

	prometheus.MustRegister(MarketCacheLookupsTotal)

	// Go и process коллекторы уже есть в default registry
	prometheus.MustRegister(collectors.NewBuildInfoCollector())
}
