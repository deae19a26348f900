package neo4jgraphql

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
)

func hasField(t *testing.T, sch *ast.Schema, typeName, fieldName string) bool {
	t.Helper()
	def := sch.Types[typeName]
	require.NotNil(t, def, "missing type %s", typeName)
	return def.Fields.ForName(fieldName) != nil
}

func TestGenerateSchema(t *testing.T) {
	m := loadTestModel(t)

	sdl, sch, roots, err := generateSchema(m, ExcludeDeprecatedFields{})
	require.NoError(t, err)
	assert.True(t, strings.Contains(sdl, "type Query {"), "sdl does not declare the query type")
	assert.True(t, strings.Contains(sdl, "type Mutation {"), "sdl does not declare the mutation type")

	for _, name := range []string{"authors", "authorsConnection", "authorsAggregate", "books", "reviews"} {
		assert.True(t, hasField(t, sch, "Query", name), "missing query %s", name)
	}
	for _, name := range []string{"createAuthors", "updateBooks", "deleteReviews"} {
		assert.True(t, hasField(t, sch, "Mutation", name), "missing mutation %s", name)
	}
	assert.Equal(t, rootField{kind: rootConnection, node: m.byName["Author"]}, roots["Query.authorsConnection"])
	assert.Equal(t, rootField{kind: rootDelete, node: m.byName["Review"]}, roots["Mutation.deleteReviews"])

	// Generated ids are not accepted as input
	assert.False(t, hasField(t, sch, "AuthorCreateInput", "id"))
	assert.True(t, hasField(t, sch, "AuthorUpdateInput", "age_INCREMENT"))
	assert.True(t, hasField(t, sch, "AuthorUpdateInput", "rating_DIVIDE"))

	// Relationship fields accept where, list relationships also options
	books := sch.Types["Author"].Fields.ForName("books")
	assert.NotNil(t, books.Arguments.ForName("where"))
	assert.NotNil(t, books.Arguments.ForName("options"))
	assert.Nil(t, sch.Types["Book"].Fields.ForName("author").Arguments.ForName("options"))

	// Deprecated features are present unless excluded
	assert.True(t, hasField(t, sch, "CreateInfo", "bookmark"))
	assert.True(t, hasField(t, sch, "AuthorWhere", "name_NOT"))
	assert.True(t, hasField(t, sch, "AuthorWhere", "tags_INCLUDES"))
	assert.True(t, hasField(t, sch, "AuthorWhere", "books"))
	assert.True(t, hasField(t, sch, "AuthorWhere", "booksAggregate"))
	assert.True(t, hasField(t, sch, "AuthorAggregateSelection", "name"))
	assert.Contains(t, sch.Types, "AuthorBooksAggregateInput")
	assert.Contains(t, sch.Types, "StringAggregateSelection")
}

func TestGenerateSchemaExclusions(t *testing.T) {
	m := loadTestModel(t)

	tests := []struct {
		name    string
		exclude ExcludeDeprecatedFields
		check   func(t *testing.T, sch *ast.Schema)
	}{
		{
			name:    "Bookmark",
			exclude: ExcludeDeprecatedFields{Bookmark: true},
			check: func(t *testing.T, sch *ast.Schema) {
				for _, info := range []string{createInfoType, updateInfoType, deleteInfoType} {
					assert.False(t, hasField(t, sch, info, "bookmark"), info)
				}
			},
		},
		{
			name:    "NegationFilters",
			exclude: ExcludeDeprecatedFields{NegationFilters: true},
			check: func(t *testing.T, sch *ast.Schema) {
				assert.False(t, hasField(t, sch, "AuthorWhere", "name_NOT"))
				assert.False(t, hasField(t, sch, "AuthorWhere", "name_NOT_IN"))
				assert.False(t, hasField(t, sch, "BookWhere", "author_NOT"))
				assert.True(t, hasField(t, sch, "AuthorWhere", "NOT"))
				assert.True(t, hasField(t, sch, "AuthorWhere", "books_NONE"))
			},
		},
		{
			name:    "StringAggregation",
			exclude: ExcludeDeprecatedFields{StringAggregation: true},
			check: func(t *testing.T, sch *ast.Schema) {
				assert.False(t, hasField(t, sch, "AuthorAggregateSelection", "name"))
				assert.True(t, hasField(t, sch, "AuthorAggregateSelection", "age"))
				assert.NotContains(t, sch.Types, "StringAggregateSelection")
			},
		},
		{
			name:    "AggregationFilters",
			exclude: ExcludeDeprecatedFields{AggregationFilters: true},
			check: func(t *testing.T, sch *ast.Schema) {
				assert.False(t, hasField(t, sch, "AuthorWhere", "booksAggregate"))
				assert.NotContains(t, sch.Types, "AuthorBooksAggregateInput")
			},
		},
		{
			name:    "ArrayFilters",
			exclude: ExcludeDeprecatedFields{ArrayFilters: true},
			check: func(t *testing.T, sch *ast.Schema) {
				assert.False(t, hasField(t, sch, "AuthorWhere", "tags_INCLUDES"))
				assert.False(t, hasField(t, sch, "AuthorWhere", "books"))
				assert.True(t, hasField(t, sch, "AuthorWhere", "books_SOME"))
				assert.True(t, hasField(t, sch, "BookWhere", "author"))
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, sch, _, err := generateSchema(m, tc.exclude)
			require.NoError(t, err)
			tc.check(t, sch)
		})
	}
}
