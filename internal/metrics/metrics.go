// Package metrics exposes the search driver's internal counters as
// Prometheus collectors on a dedicated registry, scraped by the optional
// metrics server started from main.go.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the solver.
	Registry = prometheus.NewRegistry()

	// IterationsTotal counts completed outer-loop iterations by the
	// event case they resolved to (improvement, accepted_by_sa,
	// rejected, empty_neighborhood).
	IterationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "search_iterations_total", Help: "Completed TS/SA iterations by event case."},
		[]string{"event_case"},
	)

	// MemoLookupsTotal counts memo hits versus fresh evaluations, split
	// by evaluator (objective, constraint).
	MemoLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "search_memo_lookups_total", Help: "Memo table hits and fresh evaluations."},
		[]string{"evaluator", "outcome"},
	)

	// IterationDuration records the wall-clock cost of one outer-loop
	// iteration in seconds.
	IterationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "search_iteration_duration_seconds", Help: "Duration of one TS/SA iteration.", Buckets: prometheus.DefBuckets},
	)

	// ObjectiveCurrent and ObjectiveBest track the running and
	// best-known objective values.
	ObjectiveCurrent = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "search_objective_current", Help: "Current iteration's objective value."},
	)
	ObjectiveBest = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "search_objective_best", Help: "Best-known objective value."},
	)

	// Temperature and Tenure track the SA/tabu control parameters.
	Temperature = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "search_temperature", Help: "Current simulated-annealing temperature."},
	)
	Tenure = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "search_tenure", Help: "Current tabu tenure scalar."},
	)

	// AttractivePoolSize tracks the diversification pool's occupancy.
	AttractivePoolSize = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "search_attractive_pool_size", Help: "Number of solutions held in the attractive pool."},
	)
)

var regOnce sync.Once

// RegisterDefault registers every collector on Registry exactly once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(IterationsTotal)
		Registry.MustRegister(MemoLookupsTotal)
		Registry.MustRegister(IterationDuration)
		Registry.MustRegister(ObjectiveCurrent)
		Registry.MustRegister(ObjectiveBest)
		Registry.MustRegister(Temperature)
		Registry.MustRegister(Tenure)
		Registry.MustRegister(AttractivePoolSize)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
