// Package metrics declares the Prometheus instrumentation package pipeline
// reports to during Run, grounded on the flow-enricher's
// promauto.With(reg)-based metrics construction.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PipelineMetrics is the instrumentation bundle for one running pipeline
// (or shared across pipelines when registered once at process start).
type PipelineMetrics struct {
	NodesExecutedTotal   prometheus.Counter
	NodeCacheHitsTotal    prometheus.Counter
	NodeRunErrorsTotal    prometheus.Counter
	PodInvocationDuration prometheus.Histogram
	PipelineRunDuration   prometheus.Histogram
}

func New(reg prometheus.Registerer) *PipelineMetrics {
	factory := promauto.With(reg)

	return &PipelineMetrics{
		NodesExecutedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "orcapod_nodes_executed_total",
			Help: "Total number of pipeline nodes evaluated (cache hit or miss)",
		}),
		NodeCacheHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "orcapod_node_cache_hits_total",
			Help: "Total number of node evaluations served from the store without recomputation",
		}),
		NodeRunErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "orcapod_node_run_errors_total",
			Help: "Total number of node evaluations that returned an error",
		}),
		PodInvocationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name: "orcapod_pod_invocation_duration_seconds",
			Help: "Duration of a single non-cached pod node evaluation, across its whole input stream",
		}),
		PipelineRunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name: "orcapod_pipeline_run_duration_seconds",
			Help: "Duration of a full pipeline Run call",
		}),
	}
}
