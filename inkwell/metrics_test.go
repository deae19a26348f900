package main

import (
	"fmt"
	"testing"

	"github.com/99designs/gqlgen/client"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell.dev/inkwell/internal/neo4jgraphql/neo4jgraphqltest"
)

func TestGraphQLMetrics(t *testing.T) {
	srv, _ := newTestServer(t, neo4jgraphqltest.New())
	gqlClient := client.New(srv.HTTP.Handler)

	queries := metricGraphQLOperations.WithLabelValues("query")
	before := testutil.ToFloat64(queries)

	// Client chosen operation names never become series
	for i := range 20 {
		var resp map[string]any
		err := gqlClient.Post(fmt.Sprintf(`query Op%d { users { id } }`, i), &resp, client.Operation(fmt.Sprintf("Op%d", i)))
		require.NoError(t, err)
	}
	assert.Equal(t, before+20, testutil.ToFloat64(queries))
	assert.LessOrEqual(t, testutil.CollectAndCount(metricGraphQLOperations), 4)

	errorsBefore := testutil.ToFloat64(metricGraphQLErrors.WithLabelValues(unknownOperation))
	_, err := gqlClient.RawPost(`query {`)
	assert.ErrorContains(t, err, "http 422")
	assert.Equal(t, errorsBefore+1, testutil.ToFloat64(metricGraphQLErrors.WithLabelValues(unknownOperation)))
}
