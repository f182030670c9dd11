// Package metrics exposes presence, message and call counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dkeye/voicechat/internal/core"
)

const namespace = "voicechat"

type Metrics struct {
	reg prometheus.Registerer

	OnlineUsers prometheus.Gauge
	Connections prometheus.Gauge
	Messages    prometheus.Counter
	CallEvents  *prometheus.CounterVec
	Dropped     prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reg: reg,
		OnlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_users",
			Help:      "Users with at least one open connection.",
		}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Open real-time connections.",
		}),
		Messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Chat messages accepted for broadcast.",
		}),
		CallEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_events_total",
			Help:      "Call state transitions by event.",
		}, []string{"event"}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_deliveries_total",
			Help:      "Events that could not be queued for a connection.",
		}),
	}
	reg.MustRegister(m.OnlineUsers, m.Connections, m.Messages, m.CallEvents, m.Dropped)
	return m
}

// TrackActiveCalls exports count as the number of calls that are ringing or
// in progress. count is sampled on every scrape.
func (m *Metrics) TrackActiveCalls(count func() int) {
	m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_calls",
		Help:      "Calls that are ringing or in progress.",
	}, func() float64 { return float64(count()) }))
}

// Subscribe wires the collectors to bus events.
func (m *Metrics) Subscribe(bus *core.Bus) {
	bus.Subscribe(core.EventUserConnected, func(core.Event) { m.OnlineUsers.Inc() })
	bus.Subscribe(core.EventUserDisconnected, func(core.Event) { m.OnlineUsers.Dec() })
	bus.Subscribe(core.TopicConnectionOpened, func(core.Event) { m.Connections.Inc() })
	bus.Subscribe(core.TopicConnectionClosed, func(core.Event) { m.Connections.Dec() })
	bus.Subscribe(core.EventReceiveMessage, func(core.Event) { m.Messages.Inc() })
	bus.Subscribe(core.TopicDeliveryDropped, func(core.Event) { m.Dropped.Inc() })
	for _, ev := range []string{
		core.EventCallStarted,
		core.EventUserJoinedCall,
		core.EventCallDeclined,
		core.EventCallEnded,
		core.EventCallFailed,
	} {
		counter := m.CallEvents.WithLabelValues(ev)
		bus.Subscribe(ev, func(core.Event) { counter.Inc() })
	}
}
