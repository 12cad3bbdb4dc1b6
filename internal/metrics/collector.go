// internal/metrics/collector.go
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rovshanmuradov/solsniper-bot/internal/trading"
)

const namespace = "solsniper"

// Trade outcome labels.
const (
	StatusExecuted   = "executed"
	StatusUnrecorded = "unrecorded"
	StatusFailed     = "failed"
)

// Collector управляет набором метрик. It observes RPC and aggregator
// calls and subscribes to trading events.
type Collector struct {
	registry *prometheus.Registry

	trades            *prometheus.CounterVec
	tradeFailures     *prometheus.CounterVec
	usersRegistered   prometheus.Counter
	aggregatorLatency *prometheus.HistogramVec
	rpcLatency        *prometheus.HistogramVec
}

// NewCollector создает коллектор со своим реестром
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		trades: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trades_total",
				Help:      "Swaps by side and outcome",
			},
			[]string{"side", "status"},
		),
		tradeFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trade_failures_total",
				Help:      "Failed trades by side and the stage where they stopped",
			},
			[]string{"side", "stage"},
		),
		usersRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "users_registered_total",
			Help:      "Wallets created for new users",
		}),
		aggregatorLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "aggregator_latency_seconds",
				Help:      "Jupiter request latency in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
			},
			[]string{"stage", "status"},
		),
		rpcLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rpc_latency_seconds",
				Help:      "RPC request latency in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
			},
			[]string{"method", "status"},
		),
	}

	c.registry.MustRegister(
		c.trades,
		c.tradeFailures,
		c.usersRegistered,
		c.aggregatorLatency,
		c.rpcLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry is exposed for tests and extra collectors.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Reset сбрасывает все метрики (полезно для тестирования)
func (c *Collector) Reset() {
	c.trades.Reset()
	c.tradeFailures.Reset()
	c.aggregatorLatency.Reset()
	c.rpcLatency.Reset()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveRPC implements rpc.Observer.
func (c *Collector) ObserveRPC(method string, latency time.Duration, err error) {
	c.rpcLatency.WithLabelValues(method, status(err)).Observe(latency.Seconds())
}

// ObserveAggregator implements jupiter.Observer.
func (c *Collector) ObserveAggregator(stage string, latency time.Duration, err error) {
	c.aggregatorLatency.WithLabelValues(stage, status(err)).Observe(latency.Seconds())
}

// GetSubscribedEventTypes implements trading.EventSubscriber.
func (c *Collector) GetSubscribedEventTypes() []string {
	return []string{trading.EventUserRegistered, trading.EventTradeExecuted, trading.EventTradeFailed}
}

// OnEvent implements trading.EventSubscriber.
func (c *Collector) OnEvent(event trading.TradingEvent) {
	switch e := event.(type) {
	case trading.UserRegisteredEvent:
		c.usersRegistered.Inc()
	case trading.TradeExecutedEvent:
		outcome := StatusExecuted
		if !e.Recorded {
			outcome = StatusUnrecorded
		}
		c.trades.WithLabelValues(string(e.Side), outcome).Inc()
	case trading.TradeFailedEvent:
		c.trades.WithLabelValues(string(e.Side), StatusFailed).Inc()
		c.tradeFailures.WithLabelValues(string(e.Side), e.Stage).Inc()
	}
}
