// Package metrics owns the run's Prometheus registry. Nothing is served;
// the registry is dumped to a textfile when the run ends.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "m3u_live"

var Registry = prometheus.NewRegistry()

var (
	Tasks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "acquire_tasks_total",
		Help:      "Governed tasks by pool and outcome",
	}, []string{"pool", "outcome"})

	TaskDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "acquire_task_duration_seconds",
		Help:      "Wall time of governed tasks, including cancellation",
		Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
	}, []string{"pool"})

	CacheLoads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_loads_total",
		Help:      "Cache file reads by tag and result",
	}, []string{"cache", "result"})

	SourceEntries = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "source_entries",
		Help:      "Entries contributed by each source in the last run",
	}, []string{"source"})

	Channels = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "channels",
		Help:      "Channels written per output playlist",
	}, []string{"output"})

	LastRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last run finished",
	})
)

func init() {
	Registry.MustRegister(Tasks, TaskDuration, CacheLoads, SourceEntries, Channels, LastRun)
}

// WriteFile dumps the registry in text exposition format. A blank path is a
// no-op.
func WriteFile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, Registry)
}
