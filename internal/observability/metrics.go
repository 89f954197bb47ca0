// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Backtest metrics
	BacktestRunsTotal *prometheus.CounterVec
	BacktestDuration  prometheus.Histogram
	TradesSimulated   prometheus.Counter
	RiskRejections    prometheus.Counter
	Liquidations      prometheus.Counter

	// Paper-trading runner metrics
	RunnerTicks       *prometheus.CounterVec
	RunnerFetchErrors *prometheus.CounterVec
	RunnersActive     prometheus.Gauge
	RunnerEventsTotal *prometheus.CounterVec
	RunnerEquity      *prometheus.GaugeVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "strategy_lab"
	}

	return &Metrics{
		// Backtest metrics
		BacktestRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of backtest runs by status",
		}, []string{"status"}),
		BacktestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "duration_seconds",
			Help:      "Backtest execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),
		TradesSimulated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "trades_simulated_total",
			Help:      "Total number of trades simulated",
		}),
		RiskRejections: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "risk_rejections_total",
			Help:      "Total number of entries rejected by the risk manager",
		}),
		Liquidations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "liquidations_total",
			Help:      "Total number of runs that hit the liquidation floor",
		}),

		// Paper-trading runner metrics
		RunnerTicks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "paper",
			Name:      "ticks_total",
			Help:      "Total number of bars processed by paper runners",
		}, []string{"strategy"}),
		RunnerFetchErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "paper",
			Name:      "fetch_errors_total",
			Help:      "Total number of skipped ticks due to bar fetch failures",
		}, []string{"strategy"}),
		RunnersActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "paper",
			Name:      "runners_active",
			Help:      "Number of paper runners currently in RUNNING state",
		}),
		RunnerEventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "paper",
			Name:      "events_total",
			Help:      "Total number of runner events emitted by type",
		}, []string{"type"}),
		RunnerEquity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "paper",
			Name:      "equity",
			Help:      "Current marked equity per paper runner",
		}, []string{"strategy"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
