package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// CurrentStage tracks the active stage per machine as a one-hot gauge
	// vector: the current (machine, stage) pair is 1, everything else 0.
	CurrentStage = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "skylark_supervisor_current_stage",
			Help: "The current stage of each supervisory machine (1=current).",
		},
		[]string{"machine", "stage"},
	)

	// TransitionsTotal counts committed stage transitions.
	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skylark_supervisor_transitions_total",
			Help: "Total number of committed stage transitions.",
		},
		[]string{"machine", "from", "to", "forced"},
	)

	// CommandsSentTotal counts outbound commands on the link.
	CommandsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skylark_link_commands_sent_total",
			Help: "Total number of commands sent to the flight controller.",
		},
		[]string{"type", "status"}, // status: success/failed
	)

	// TopicWritesTotal counts health topic ingestion writes.
	TopicWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skylark_health_topic_writes_total",
			Help: "Total number of writes per health topic key.",
		},
		[]string{"key"},
	)
)

// Registry is the process-wide registry served by the status server.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(CurrentStage)
	Registry.MustRegister(TransitionsTotal)
	Registry.MustRegister(CommandsSentTotal)
	Registry.MustRegister(TopicWritesTotal)
}

// SetCurrentStage flips the one-hot stage gauge for a machine: the previous
// stage is cleared, the new one set.
func SetCurrentStage(machine, prev, current string) {
	if prev != "" {
		CurrentStage.WithLabelValues(machine, prev).Set(0)
	}
	CurrentStage.WithLabelValues(machine, current).Set(1)
}
