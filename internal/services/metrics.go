package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// messagesPosted counts stored messages by sender type.
	messagesPosted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livechat_messages_total",
			Help: "Total number of chat messages stored, by sender type.",
		},
		[]string{"sender_type"},
	)

	// idempotentReplays counts customer sends answered from the idempotency table.
	idempotentReplays = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "livechat_idempotent_replays_total",
			Help: "Total number of customer sends replayed from a previous attempt.",
		},
	)

	// conversationsClosed counts operator closures.
	conversationsClosed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "livechat_conversations_closed_total",
			Help: "Total number of conversations closed by an operator.",
		},
	)

	// restrictionChanges counts restrictions imposed and lifted.
	restrictionChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livechat_restriction_changes_total",
			Help: "Total number of restrictions imposed or lifted, by action.",
		},
		[]string{"action"},
	)
)

func init() {
	prometheus.MustRegister(messagesPosted, idempotentReplays, conversationsClosed, restrictionChanges)
}
