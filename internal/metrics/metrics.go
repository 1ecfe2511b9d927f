// Package metrics defines the Prometheus instruments for the conversation
// core and feeds them from lifecycle events. The conversation engine never
// imports this package; wiring subscribes it to the event bus at startup.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/virtualhq/agenthq/backend/internal/events"
)

const namespace = "agenthq"

// ConversationsStartedTotal counts conversations created, labelled by persona.
var ConversationsStartedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "conversations_started_total",
		Help:      "Total number of conversations started.",
	},
	[]string{"persona"},
)

// ConversationsEndedTotal counts conversations transitioned to ended.
var ConversationsEndedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "conversations_ended_total",
		Help:      "Total number of conversations ended.",
	},
	[]string{"persona"},
)

// MessagesExchangedTotal counts completed user/agent turns. The result label
// is "ok" for generated replies and "fallback" for substituted ones.
var MessagesExchangedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_exchanged_total",
		Help:      "Total number of message exchanges, labelled by persona and result.",
	},
	[]string{"persona", "result"},
)

// RealtimeDeliveriesTotal counts events successfully written to live
// connections. Incremented by the realtime hub's writer loops.
var RealtimeDeliveriesTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realtime_deliveries_total",
		Help:      "Total number of events delivered over live connections.",
	},
)

// Observe subscribes the instruments to the lifecycle bus.
func Observe(bus *events.Bus) {
	bus.Subscribe(func(evt events.Event) {
		switch evt.Type {
		case events.ConversationStarted:
			ConversationsStartedTotal.WithLabelValues(evt.PersonaID).Inc()
		case events.ConversationEnded:
			ConversationsEndedTotal.WithLabelValues(evt.PersonaID).Inc()
		case events.MessageExchanged:
			result := "ok"
			if evt.Fallback {
				result = "fallback"
			}
			MessagesExchangedTotal.WithLabelValues(evt.PersonaID, result).Inc()
		}
	})
}
