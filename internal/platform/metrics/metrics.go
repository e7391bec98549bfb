// Package metrics exposes the Prometheus surface the control service
// registers: loop cadence, dispatch throughput, solver outcomes, and
// the store/adapter instrumentation the ambient stack shares with the
// rest of the platform family.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter/gauge/histogram the scheduling core emits.
type Metrics struct {
	registry *prometheus.Registry

	LoopCycles       *prometheus.CounterVec
	LoopCycleSeconds *prometheus.HistogramVec
	LoopErrors       *prometheus.CounterVec

	BufferFillLevel   prometheus.Gauge
	BufferStateGauge  *prometheus.GaugeVec
	DeliveryRateGauge prometheus.Gauge

	TasksDispatched  *prometheus.CounterVec
	StreamsCompleted prometheus.Counter

	SolverRuns       *prometheus.CounterVec
	SolverSeconds    prometheus.Histogram
	SolverObjective  prometheus.Gauge
	WorkloadVariance prometheus.Gauge

	StoreOperations       *prometheus.CounterVec
	StoreOperationSeconds *prometheus.HistogramVec

	CircuitBreakerState *prometheus.GaugeVec
}

type Config struct {
	ServiceName string
	Namespace   string
}

func DefaultConfig(serviceName string) *Config {
	return &Config{ServiceName: serviceName, Namespace: "scheduler"}
}

func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry}

	m.LoopCycles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace, Name: "loop_cycles_total", Help: "Cycles executed per control loop.",
	}, []string{"loop"})

	m.LoopCycleSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: config.Namespace, Name: "loop_cycle_seconds", Help: "Wall time of one control loop cycle.",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
	}, []string{"loop"})

	m.LoopErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace, Name: "loop_errors_total", Help: "Cycles that failed transiently and were skipped.",
	}, []string{"loop"})

	m.BufferFillLevel = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: config.Namespace, Name: "buffer_fill_level", Help: "Current buffer fill_level in [0,1].",
	})

	m.BufferStateGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: config.Namespace, Name: "buffer_state", Help: "1 if the buffer FSM is currently in this state, else 0.",
	}, []string{"state"})

	m.DeliveryRateGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: config.Namespace, Name: "required_delivery_rate", Help: "Controller-computed required delivery rate (pallets/hour).",
	})

	m.TasksDispatched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace, Name: "tasks_dispatched_total", Help: "Delivery tasks bound to a forklift.",
	}, []string{"stream"})

	m.StreamsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: config.Namespace, Name: "streams_completed_total", Help: "Task streams that reached Completed.",
	})

	m.SolverRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace, Name: "solver_runs_total", Help: "Optimizer invocations by result.",
	}, []string{"result"})

	m.SolverSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: config.Namespace, Name: "solver_seconds", Help: "Optimizer wall-clock time.",
		Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2, 5},
	})

	m.SolverObjective = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: config.Namespace, Name: "solver_objective", Help: "Last optimizer objective value (seconds of travel).",
	})

	m.WorkloadVariance = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: config.Namespace, Name: "solver_workload_variance", Help: "Last optimizer reported per-forklift workload variance.",
	})

	m.StoreOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace, Name: "store_operations_total", Help: "Historical-store calls by collection/op/status.",
	}, []string{"collection", "operation", "status"})

	m.StoreOperationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: config.Namespace, Name: "store_operation_seconds", Help: "Historical-store call latency.",
		Buckets: []float64{.001, .005, .01, .05, .1, .5, 1},
	}, []string{"collection", "operation"})

	m.CircuitBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: config.Namespace, Name: "circuit_breaker_state", Help: "0=closed 1=half-open 2=open.",
	}, []string{"name"})

	registry.MustRegister(
		m.LoopCycles, m.LoopCycleSeconds, m.LoopErrors,
		m.BufferFillLevel, m.BufferStateGauge, m.DeliveryRateGauge,
		m.TasksDispatched, m.StreamsCompleted,
		m.SolverRuns, m.SolverSeconds, m.SolverObjective, m.WorkloadVariance,
		m.StoreOperations, m.StoreOperationSeconds,
		m.CircuitBreakerState,
	)

	return m
}

// RecordStoreOperation records one historical-store call's outcome and latency.
func (m *Metrics) RecordStoreOperation(collection, operation, status string, duration time.Duration) {
	m.StoreOperations.WithLabelValues(collection, operation, status).Inc()
	m.StoreOperationSeconds.WithLabelValues(collection, operation).Observe(duration.Seconds())
}

// Handler returns the Prometheus scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
