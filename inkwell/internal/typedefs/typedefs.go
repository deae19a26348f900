// Package typedefs holds the annotated type definitions the GraphQL API is derived from.
package typedefs

import (
	_ "embed"
)

// TypeDefs of the graph, annotated with mapping directives.
//
//go:embed typedefs.graphql
var TypeDefs string
