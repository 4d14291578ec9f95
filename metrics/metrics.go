// Package metrics provides Prometheus observability for simulator runs:
// generated volume, injected defect counts, and per-day batch timings. Runs
// are batch jobs, so metrics are pushed to a gateway at completion when one is
// configured.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Registry is the custom prometheus registry for the simulator.
var Registry = prometheus.NewRegistry()

// factory registers metrics directly on Registry.
var factory = promauto.With(Registry)

// CasesGenerated counts cases produced across the run.
var CasesGenerated = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "opssim",
	Name:      "cases_generated_total",
	Help:      "Total number of synthetic cases generated",
})

// EventsGenerated counts event rows produced across the run, post defect
// injection (duplicates included, dropped milestones excluded).
var EventsGenerated = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "opssim",
	Name:      "events_generated_total",
	Help:      "Total number of synthetic event rows generated after defect injection",
})

// DefectsInjected counts defect applications by type.
var DefectsInjected = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "opssim",
	Name:      "defects_injected_total",
	Help:      "Total defect injections broken down by defect type",
}, []string{"defect"})

// DayBatchDuration observes wall-clock seconds spent generating one day batch.
var DayBatchDuration = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "opssim",
	Name:      "day_batch_duration_seconds",
	Help:      "Time spent generating and persisting a single day batch",
	Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
})

// RowsLoaded counts rows bulk-ingested into the warehouse by relation.
var RowsLoaded = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "opssim",
	Name:      "warehouse_rows_loaded_total",
	Help:      "Rows loaded into the warehouse broken down by relation",
}, []string{"relation"})

// Push sends the registry to a Pushgateway. A batch job has no scrape target,
// so this is the delivery path for run metrics.
func Push(gatewayURL, jobName string) error {
	if err := push.New(gatewayURL, jobName).Gatherer(Registry).Push(); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", gatewayURL, err)
	}
	return nil
}
