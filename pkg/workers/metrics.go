package workers

import "github.com/prometheus/client_golang/prometheus"

const (
	outcomeSuccess = "success"
	outcomeError   = "error"
	outcomeDropped = "dropped"
)

var (
	queuedTasks = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "arbor_worker_tasks_queued",
			Help: "Tasks waiting for a worker slot",
		},
		[]string{"pool"},
	)
	runningTasks = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "arbor_worker_tasks_running",
			Help: "Tasks currently executing",
		},
		[]string{"pool"},
	)
	completedTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbor_worker_tasks_completed_total",
			Help: "Tasks finished, by outcome",
		},
		[]string{"pool", "outcome"},
	)
)

// Collectors returns the pool metrics for registration on a prometheus registry.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{queuedTasks, runningTasks, completedTasks}
}
