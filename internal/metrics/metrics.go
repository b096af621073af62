package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "smtpevent"

// Metrics holds the server's prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	connections prometheus.Counter
	commands    *prometheus.CounterVec
	replies     *prometheus.CounterVec
	messages    prometheus.Counter
	deliveries  *prometheus.CounterVec
	dropped     prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Number of accepted SMTP connections.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Number of SMTP commands received, by verb.",
		}, []string{"verb"}),
		replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_total",
			Help:      "Number of SMTP replies sent, by reply code class.",
		}, []string{"class"}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Number of completed DATA transactions.",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Number of delivery attempts, by deliverer and result.",
		}, []string{"deliverer", "result"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_dropped_total",
			Help:      "Number of message events dropped because the delivery queue was full.",
		}),
	}

	reg.MustRegister(m.connections, m.commands, m.replies, m.messages, m.deliveries, m.dropped)
	return m
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) CommandReceived(verb string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(verb).Inc()
}

// ReplySent counts a reply line by the class of its status code ("2xx" ...).
func (m *Metrics) ReplySent(line string) {
	if m == nil || line == "" {
		return
	}
	m.replies.WithLabelValues(line[:1] + "xx").Inc()
}

func (m *Metrics) MessageReceived() {
	if m == nil {
		return
	}
	m.messages.Inc()
}

func (m *Metrics) Delivered(deliverer string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.deliveries.WithLabelValues(deliverer, result).Inc()
}

func (m *Metrics) Dropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}
