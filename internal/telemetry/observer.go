package telemetry

import (
	"strconv"

	"github.com/dagee-go/dagee/internal/interfaces"
)

// PrometheusObserver implements interfaces.Observer over this package's
// promauto collectors, so callers depend only on the interface while the
// concrete metrics stay registered exactly once at package init.
type PrometheusObserver struct{}

var _ interfaces.Observer = PrometheusObserver{}

func (PrometheusObserver) ObserveDispatch(codeAddr uint64, latencyNs uint64, success bool) {
	PacketsSubmitted.WithLabelValues("dispatch").Inc()
	if !success {
		DriverErrors.WithLabelValues("dispatch").Inc()
	}
}

func (PrometheusObserver) ObserveBarrier(depCount int, success bool) {
	PacketsSubmitted.WithLabelValues("barrier_and").Inc()
	if !success {
		DriverErrors.WithLabelValues("barrier_and").Inc()
	}
}

func (PrometheusObserver) ObserveQueueDepth(queueID int, depth uint64) {
	QueueDepth.WithLabelValues(strconv.Itoa(queueID)).Set(float64(depth))
}

func (PrometheusObserver) ObserveDAGExecute(nodeCount int, latencyNs uint64, success bool) {
	DAGExecuteDuration.Observe(float64(latencyNs) / 1e9)
	if !success {
		DriverErrors.WithLabelValues("dag_execute").Inc()
	}
}
