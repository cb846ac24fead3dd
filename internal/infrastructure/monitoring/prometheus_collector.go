package monitoring

import (
	"liveflow/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	// Gauges
	connectionsOnline prometheus.Gauge
	queueDepth        prometheus.Gauge
	streamsActive     prometheus.Gauge

	// Counters
	connectionsTotal     prometheus.Counter
	matchesTotal         prometheus.Counter
	streamsStartedTotal  prometheus.Counter
	messagesRelayedTotal *prometheus.CounterVec

	// Per-stream metrics
	streamViewerCount *prometheus.GaugeVec
}

// NewPrometheusCollector registers metrics on the default registry.
func NewPrometheusCollector() *PrometheusCollector {
	return NewPrometheusCollectorWith(prometheus.DefaultRegisterer)
}

// NewPrometheusCollectorWith registers metrics on the given registerer.
func NewPrometheusCollectorWith(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		connectionsOnline: factory.NewGauge(prometheus.GaugeOpts{
			Name: "liveflow_connections_online",
			Help: "Number of currently connected clients",
		}),

		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "liveflow_match_queue_depth",
			Help: "Number of clients currently waiting for a match",
		}),

		streamsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "liveflow_streams_active",
			Help: "Number of currently active live streams",
		}),

		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "liveflow_connections_total",
			Help: "Total number of client connections accepted",
		}),

		matchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "liveflow_matches_total",
			Help: "Total number of random chat pairs created",
		}),

		streamsStartedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "liveflow_streams_started_total",
			Help: "Total number of live streams started",
		}),

		messagesRelayedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "liveflow_messages_relayed_total",
			Help: "Total number of chat messages relayed",
		}, []string{"kind"}),

		streamViewerCount: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "liveflow_stream_viewer_count",
			Help: "Number of viewers in each live stream",
		}, []string{"session_id"}),
	}
}

func (p *PrometheusCollector) RecordConnected() {
	p.connectionsOnline.Inc()
	p.connectionsTotal.Inc()
}

func (p *PrometheusCollector) RecordDisconnected() {
	p.connectionsOnline.Dec()
}

func (p *PrometheusCollector) SetQueueDepth(depth int) {
	p.queueDepth.Set(float64(depth))
}

func (p *PrometheusCollector) RecordMatch() {
	p.matchesTotal.Inc()
}

func (p *PrometheusCollector) RecordStreamStarted() {
	p.streamsActive.Inc()
	p.streamsStartedTotal.Inc()
}

func (p *PrometheusCollector) RecordStreamEnded(id domain.SessionID) {
	p.streamsActive.Dec()
	p.streamViewerCount.DeleteLabelValues(string(id))
}

func (p *PrometheusCollector) SetViewerCount(id domain.SessionID, count int) {
	p.streamViewerCount.WithLabelValues(string(id)).Set(float64(count))
}

func (p *PrometheusCollector) RecordMessageRelayed(kind string) {
	p.messagesRelayedTotal.WithLabelValues(kind).Inc()
}
