// Package metrics exports executor lifecycle events as Prometheus series
// for embedding processes that already scrape. Registration happens on an
// explicit registerer so the package carries no global state.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/modelcrucible/crucible/internal/executor"
)

// ExecutorCollector is an executor.Observer backed by Prometheus metrics.
type ExecutorCollector struct {
	tasksTotal    *prometheus.CounterVec
	throttleTotal prometheus.Counter
	throttleWait  prometheus.Counter
	taskDuration  prometheus.Histogram
	runDuration   prometheus.Histogram
}

// NewExecutorCollector registers the collector's metrics with reg.
func NewExecutorCollector(reg prometheus.Registerer) *ExecutorCollector {
	factory := promauto.With(reg)
	return &ExecutorCollector{
		tasksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crucible_executor_tasks_total",
			Help: "Executed tasks by outcome",
		}, []string{"outcome"}),
		throttleTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "crucible_executor_throttle_total",
			Help: "Rate-limit throttle events",
		}),
		throttleWait: factory.NewCounter(prometheus.CounterOpts{
			Name: "crucible_executor_throttle_wait_seconds_total",
			Help: "Total time spent waiting on the rate limiter",
		}),
		taskDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "crucible_executor_task_duration_seconds",
			Help:    "Per-task execution time",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "crucible_executor_run_duration_seconds",
			Help:    "Wall-clock time of whole executor runs",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
		}),
	}
}

// HandleEvent implements executor.Observer.
func (c *ExecutorCollector) HandleEvent(ev executor.Event) {
	switch ev.Type {
	case executor.EventTaskComplete:
		c.tasksTotal.WithLabelValues("completed").Inc()
		c.taskDuration.Observe(ev.ExecutionTime.Seconds())
	case executor.EventTaskError:
		c.tasksTotal.WithLabelValues("failed").Inc()
		c.taskDuration.Observe(ev.ExecutionTime.Seconds())
	case executor.EventThrottle:
		c.throttleTotal.Inc()
		c.throttleWait.Add(ev.WaitTime.Seconds())
	case executor.EventComplete:
		c.runDuration.Observe(ev.Duration.Seconds())
	}
}
