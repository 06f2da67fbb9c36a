package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsReceived counts messages accepted from the broker topic.
	EventsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendboard_events_received_total",
		Help: "Total check-in events decoded from the broker topic",
	})

	// DecodeFailures counts dropped messages with unparseable payloads.
	DecodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendboard_decode_failures_total",
		Help: "Total broker messages dropped because the payload failed to decode",
	})

	// EventsDropped counts events lost to a full feed queue.
	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendboard_events_dropped_total",
		Help: "Total decoded events dropped because the feed queue was full",
	})

	// StoreReloads counts reads of the attendance file, labelled by outcome.
	StoreReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendboard_store_reloads_total",
		Help: "Total attendance file reloads",
	}, []string{"status"})

	// RenderCycles counts dashboard render cycles, labelled by trigger.
	RenderCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendboard_render_cycles_total",
		Help: "Total dashboard render cycles",
	}, []string{"trigger"})

	// BrokerConnected reports 1 while the broker session is established.
	BrokerConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "attendboard_broker_connected",
		Help: "Whether the broker connection is currently established",
	})
)
