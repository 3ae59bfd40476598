// Package metrics exposes Prometheus metrics for runs, steps and tools.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// runsTotal counts finished runs.
	// Labels: outcome (RESULT, ERROR)
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitesmith",
		Subsystem: "engine",
		Name:      "runs_total",
		Help:      "Finished runs by outcome",
	}, []string{"outcome"})

	// runDuration measures wall time from run start to persisted outcome.
	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sitesmith",
		Subsystem: "engine",
		Name:      "run_duration_seconds",
		Help:      "Run duration in seconds",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	// runIterations tracks how many agent turns a run took.
	runIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sitesmith",
		Subsystem: "engine",
		Name:      "run_iterations",
		Help:      "Agent iterations per run",
		Buckets:   []float64{1, 2, 3, 5, 8, 10, 13, 15},
	})

	// stepsTotal counts step invocations.
	// Labels: status (executed, replayed, failed)
	stepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitesmith",
		Subsystem: "step",
		Name:      "invocations_total",
		Help:      "Step invocations by status",
	}, []string{"status"})

	// toolCalls counts tool dispatches.
	// Labels: tool, result (ok, error)
	toolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sitesmith",
		Subsystem: "tools",
		Name:      "calls_total",
		Help:      "Tool calls by tool and result",
	}, []string{"tool", "result"})

	// sandboxesReaped counts expired sandboxes removed by the reaper.
	sandboxesReaped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sitesmith",
		Subsystem: "sandbox",
		Name:      "reaped_total",
		Help:      "Expired sandboxes removed",
	})
)

// RecordRun records a finished run.
func RecordRun(outcome string, seconds float64, iterations int) {
	runsTotal.WithLabelValues(outcome).Inc()
	runDuration.Observe(seconds)
	runIterations.Observe(float64(iterations))
}

// RecordStep records one step invocation.
func RecordStep(status string) {
	stepsTotal.WithLabelValues(status).Inc()
}

// RecordToolCall records one tool dispatch.
func RecordToolCall(tool string, failed bool) {
	result := "ok"
	if failed {
		result = "error"
	}
	toolCalls.WithLabelValues(tool, result).Inc()
}

// RecordReaped records removed sandboxes.
func RecordReaped(n int) {
	sandboxesReaped.Add(float64(n))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
