package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline counters exposed on the /metrics endpoint.
var (
	ClicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trackflow_clicks_total",
		Help: "Clicks recorded.",
	})

	FraudFlaggedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trackflow_fraud_flagged_total",
		Help: "Clicks whose fraud score exceeded the threshold.",
	})

	ConversionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trackflow_conversions_total",
		Help: "Conversions recorded.",
	})

	PostbackAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trackflow_postback_attempts_total",
		Help: "Outbound postback send attempts by outcome.",
	}, []string{"result"})

	ForwardsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trackflow_forwarded_postbacks_total",
		Help: "Inbound postbacks forwarded to publisher endpoints by status.",
	}, []string{"status"})
)
