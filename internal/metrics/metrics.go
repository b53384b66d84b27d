package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	PullCount        prometheus.Counter
	FetchFailures    prometheus.Counter
	MessagesIngested prometheus.Counter
	RuleMatches      *prometheus.CounterVec
	TicketsCreated   prometheus.Counter
	IngestFailures   prometheus.Counter
	AutoAssigned     prometheus.Counter
	AssignMisses     prometheus.Counter
	ProcessingTime   prometheus.Histogram
	ActiveRules      prometheus.Gauge
	UnassignedQueue  prometheus.Gauge
}

// NewMetrics creates the service metrics on reg. Pass
// prometheus.DefaultRegisterer to expose them on /metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PullCount: factory.NewCounter(prometheus.CounterOpts{
			Name: "ticket_intake_pull_count",
			Help: "Total number of mailbox fetch operations",
		}),
		FetchFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ticket_intake_fetch_failures",
			Help: "Total number of failed mailbox fetch operations",
		}),
		MessagesIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "ticket_intake_messages_ingested",
			Help: "Total number of messages recorded as processed",
		}),
		RuleMatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_intake_rule_matches",
			Help: "Number of messages matched per processing rule",
		}, []string{"rule_id"}),
		TicketsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "ticket_intake_tickets_created",
			Help: "Total number of tickets created from inbound messages",
		}),
		IngestFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ticket_intake_ingest_failures",
			Help: "Total number of messages left unprocessed because of an error",
		}),
		AutoAssigned: factory.NewCounter(prometheus.CounterOpts{
			Name: "ticket_intake_auto_assigned",
			Help: "Total number of tickets auto-assigned to a technician",
		}),
		AssignMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "ticket_intake_assign_misses",
			Help: "Total number of auto-assignment attempts without an eligible technician",
		}),
		ProcessingTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ticket_intake_processing_duration_seconds",
			Help:    "Time spent in a mailbox processing cycle",
			Buckets: prometheus.DefBuckets,
		}),
		ActiveRules: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ticket_intake_active_rules",
			Help: "Number of active processing rules at the last cycle",
		}),
		UnassignedQueue: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ticket_intake_unassigned_tickets",
			Help: "Number of tickets waiting for assignment at the last sweep",
		}),
	}
}
