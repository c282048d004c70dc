// Package metrics provides Prometheus metrics for the Lattice runtime.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lattice"

// Registry is the process-wide metric registry served by Handler.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

var factory = promauto.With(Registry)

// Parser metrics.
var (
	DocumentsParsed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "parser",
		Name:      "documents_parsed_total",
		Help:      "Documents parsed successfully.",
	})
	ParseErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "parser",
		Name:      "parse_errors_total",
		Help:      "Documents rejected with a parse error.",
	})
)

// Interpreter metrics.
var (
	NodeExecutions = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "interp",
		Name:      "node_executions_total",
		Help:      "Statement executions by node kind.",
	}, []string{"kind"})
	ExecutionSeconds = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "interp",
		Name:      "execution_seconds",
		Help:      "Wall time of top-level body executions.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	})
	ExecErrors = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "interp",
		Name:      "execution_errors_total",
		Help:      "Execution errors by node kind.",
	}, []string{"kind"})
)

// Function runtime metrics.
var (
	FunctionCacheHits = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "funcrt",
		Name:      "function_cache_hits_total",
		Help:      "Function calls served from cache or memoization.",
	})
	FunctionCacheMisses = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "funcrt",
		Name:      "function_cache_misses_total",
		Help:      "Function calls that executed the body.",
	})
)

// Datasource metrics.
var (
	QuerySeconds = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "datasource",
		Name:      "query_seconds",
		Help:      "Datasource query duration by datasource kind.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"kind"})
)

// Transport metrics.
var (
	ExternalRequestSeconds = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "transport",
		Name:      "request_seconds",
		Help:      "Outbound HTTP request duration by service.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"service"})
	ExternalRequestErrors = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "transport",
		Name:      "request_errors_total",
		Help:      "Outbound HTTP request failures by service.",
	}, []string{"service"})
	ExternalRetries = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "transport",
		Name:      "request_retries_total",
		Help:      "Outbound HTTP retry attempts by service.",
	}, []string{"service"})
	CircuitTransitions = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "transport",
		Name:      "circuit_transitions_total",
		Help:      "Circuit breaker state transitions by service and new state.",
	}, []string{"service", "state"})
)

// Handler serves the registry in Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
