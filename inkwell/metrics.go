package main

import (
	"context"
	"time"

	"github.com/99designs/gqlgen/graphql"
	"github.com/prometheus/client_golang/prometheus"
)

// Operations are labelled by type only. Operation names are chosen by clients and would
// let any caller mint new series.
const unknownOperation = "unknown"

var (
	metricGraphQLOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkwell_graphql_operations_total",
			Help: "Total number of graphql operations executed.",
		},
		[]string{"operation"},
	)

	metricGraphQLLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inkwell_graphql_operation_duration_seconds",
			Help:    "Latency of graphql operations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	metricGraphQLErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkwell_graphql_operation_errors",
			Help: "Total number of graphql operations that returned errors.",
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(metricGraphQLOperations, metricGraphQLLatency, metricGraphQLErrors)
}

// operationType of the request in ctx: query, mutation, subscription or unknown when
// the document never parsed.
func operationType(ctx context.Context) string {
	if !graphql.HasOperationContext(ctx) {
		return unknownOperation
	}
	if op := graphql.GetOperationContext(ctx).Operation; op != nil {
		return string(op.Operation)
	}
	return unknownOperation
}

// graphqlWithMetrics records every graphql response.
func graphqlWithMetrics(ctx context.Context, next graphql.ResponseHandler) *graphql.Response {
	start := time.Now()
	resp := next(ctx)

	operation := operationType(ctx)
	metricGraphQLOperations.WithLabelValues(operation).Inc()
	metricGraphQLLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if resp != nil && len(resp.Errors) > 0 {
		metricGraphQLErrors.WithLabelValues(operation).Inc()
	}
	return resp
}
