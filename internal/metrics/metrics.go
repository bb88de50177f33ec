package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "educonnect"

// Metrics holds the service's collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry            *prometheus.Registry
	connectionRequests  *prometheus.CounterVec
	messagesSent        prometheus.Counter
	codecFallbacks      *prometheus.CounterVec
	activeSubscriptions prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connectionRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_requests_total",
			Help:      "Connection request operations by outcome.",
		}, []string{"op", "outcome"}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_messages_sent_total",
			Help:      "Messages appended to chat sessions.",
		}),
		codecFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "codec_fallbacks_total",
			Help:      "Times the message codec degraded to plaintext.",
		}, []string{"op"}),
		activeSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chat_active_subscriptions",
			Help:      "Live chat message subscriptions.",
		}),
	}
	m.registry.MustRegister(
		m.connectionRequests,
		m.messagesSent,
		m.codecFallbacks,
		m.activeSubscriptions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ConnectionRequest(op, outcome string) {
	if m == nil {
		return
	}
	m.connectionRequests.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) MessageSent() {
	if m == nil {
		return
	}
	m.messagesSent.Inc()
}

func (m *Metrics) CodecFallback(op string) {
	if m == nil {
		return
	}
	m.codecFallbacks.WithLabelValues(op).Inc()
}

func (m *Metrics) SubscriptionOpened() {
	if m == nil {
		return
	}
	m.activeSubscriptions.Inc()
}

func (m *Metrics) SubscriptionClosed() {
	if m == nil {
		return
	}
	m.activeSubscriptions.Dec()
}
