package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor Prometheus 指标收集器：行情流健康度与合并进度。
type Monitor struct {
	registry *prometheus.Registry

	// 流指标
	streamConnects    *prometheus.CounterVec
	streamDisconnects *prometheus.CounterVec
	streamReconnects  *prometheus.CounterVec
	streamFailures    *prometheus.CounterVec
	decodeErrors      *prometheus.CounterVec

	// 合并指标
	deltasApplied     prometheus.Counter
	earlyDeltasQueued prometheus.Counter
	tradeRedeliveries prometheus.Counter
	tickerUpdates     prometheus.Counter
	snapshotLatency   prometheus.Histogram
	snapshotErrors    prometheus.Counter

	// 行情指标
	midPrice *prometheus.GaugeVec
	bestBid  *prometheus.GaugeVec
	bestAsk  *prometheus.GaugeVec

	// 下游指标
	wsClients prometheus.Gauge
}

// Config 监控配置
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "terminal",
		Subsystem: "marketdata",
	}
}

// New 创建新的 Monitor 实例
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Monitor{
		registry: reg,

		streamConnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "stream_connects_total",
			Help:      "流连接建立总数",
		}, []string{"channel"}),
		streamDisconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "stream_disconnects_total",
			Help:      "流连接断开总数",
		}, []string{"channel"}),
		streamReconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "stream_reconnects_total",
			Help:      "流重连尝试总数",
		}, []string{"channel"}),
		streamFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "stream_failures_total",
			Help:      "重连超限进入 failed 的次数",
		}, []string{"channel"}),
		decodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "decode_errors_total",
			Help:      "消息解码失败总数",
		}, []string{"channel"}),

		deltasApplied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "depth_deltas_applied_total",
			Help:      "应用到盘口的增量总数",
		}),
		earlyDeltasQueued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "early_deltas_queued_total",
			Help:      "快照到达前缓存的增量总数",
		}),
		tradeRedeliveries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "trade_redeliveries_total",
			Help:      "成交带内观察到的重复 trade id 总数",
		}),
		tickerUpdates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "ticker_updates_total",
			Help:      "ticker 替换总数",
		}),
		snapshotLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "snapshot_latency_seconds",
			Help:      "盘口快照拉取耗时分布（秒）",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		snapshotErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "snapshot_errors_total",
			Help:      "盘口快照拉取失败总数",
		}),

		midPrice: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "mid_price",
			Help:      "当前中间价",
		}, []string{"symbol"}),
		bestBid: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "best_bid",
			Help:      "当前最优买价",
		}, []string{"symbol"}),
		bestAsk: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "best_ask",
			Help:      "当前最优卖价",
		}, []string{"symbol"}),

		wsClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "ws_clients",
			Help:      "下游 WebSocket 客户端数量",
		}),
	}
	return m
}

// Handler 返回指标的 HTTP handler。
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 暴露底层 registry，便于测试断言。
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Monitor) RecordStreamConnect(channel string) {
	m.streamConnects.WithLabelValues(channel).Inc()
}
func (m *Monitor) RecordStreamDisconnect(channel string) {
	m.streamDisconnects.WithLabelValues(channel).Inc()
}
func (m *Monitor) RecordStreamReconnect(channel string) {
	m.streamReconnects.WithLabelValues(channel).Inc()
}
func (m *Monitor) RecordStreamFailure(channel string) {
	m.streamFailures.WithLabelValues(channel).Inc()
}
func (m *Monitor) RecordDecodeError(channel string) { m.decodeErrors.WithLabelValues(channel).Inc() }

func (m *Monitor) RecordDeltaApplied()     { m.deltasApplied.Inc() }
func (m *Monitor) RecordEarlyDeltaQueued() { m.earlyDeltasQueued.Inc() }
func (m *Monitor) RecordTradeRedelivery()  { m.tradeRedeliveries.Inc() }
func (m *Monitor) RecordTickerUpdate()     { m.tickerUpdates.Inc() }

func (m *Monitor) ObserveSnapshotLatency(seconds float64) { m.snapshotLatency.Observe(seconds) }
func (m *Monitor) RecordSnapshotError()                   { m.snapshotErrors.Inc() }

// UpdateBookGauges 更新盘口相关 gauge。
func (m *Monitor) UpdateBookGauges(symbol string, bid, ask, mid float64) {
	m.bestBid.WithLabelValues(symbol).Set(bid)
	m.bestAsk.WithLabelValues(symbol).Set(ask)
	m.midPrice.WithLabelValues(symbol).Set(mid)
}

func (m *Monitor) SetWSClients(n int) { m.wsClients.Set(float64(n)) }
