package neo4jgraphql_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/99designs/gqlgen/client"
	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"inkwell.dev/inkwell/internal/neo4jgraphql"
	"inkwell.dev/inkwell/internal/neo4jgraphql/neo4jgraphqltest"
)

const (
	testAuthorizationKey = "test-secret"
	testBookmark         = "FB:test-bookmark"
)

type testResult struct {
	Records  []map[string]any `yaml:"records"`
	Counters struct {
		NodesCreated         int `yaml:"nodes_created"`
		NodesDeleted         int `yaml:"nodes_deleted"`
		RelationshipsCreated int `yaml:"relationships_created"`
		RelationshipsDeleted int `yaml:"relationships_deleted"`
	} `yaml:"counters"`
	Error string `yaml:"error"`
}

type testCase struct {
	Requestor struct {
		Claims map[string]any `yaml:"claims"`
		Token  string         `yaml:"token"`
	} `yaml:"requestor"`
	Query     string         `yaml:"query"`
	Variables map[string]any `yaml:"variables"`
	Results   []testResult   `yaml:"results"`

	Expected         map[string]any   `yaml:"expected"`
	ExpectedError    string           `yaml:"expected_error"`
	ExpectedCypher   []string         `yaml:"expected_cypher"`
	ExpectedParams   []map[string]any `yaml:"expected_params"`
	ExpectedRollback bool             `yaml:"expected_rollback"`
}

type tokenKey struct{}

func tokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey{}).(string)
	return token, ok
}

// newTestHandler serves the schema derived from testdata/typedefs.graphql.
func newTestHandler(t *testing.T, db neo4jgraphql.Database) http.Handler {
	t.Helper()

	typeDefs, err := os.ReadFile(filepath.Join("testdata", "typedefs.graphql"))
	require.NoError(t, err)

	mapper, err := neo4jgraphql.New(neo4jgraphql.Config{
		TypeDefs:  string(typeDefs),
		Database:  db,
		TokenFunc: tokenFromContext,
		Features: neo4jgraphql.Features{
			Authorization: &neo4jgraphql.AuthorizationFeature{Key: testAuthorizationKey},
		},
	})
	require.NoError(t, err)
	schema, err := mapper.Schema()
	require.NoError(t, err)

	srv := handler.NewDefaultServer(schema)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if values, ok := r.Header["Authorization"]; ok && len(values) > 0 {
			r = r.WithContext(context.WithValue(r.Context(), tokenKey{}, values[0]))
		}
		srv.ServeHTTP(w, r)
	})
}

func signToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims(claims)).SignedString([]byte(testAuthorizationKey))
	require.NoError(t, err)
	return token
}

func runTestCase(t *testing.T, path string) {
	t.Helper()

	// Read Test Case
	tcBytes, err := os.ReadFile(path)
	require.NoError(t, err, "failed to read test case %q", path)

	// Parse Test Case
	var tc testCase
	yamlErr := yaml.Unmarshal(tcBytes, &tc)
	require.NoError(t, yamlErr, "failed to parse test case %q", path)

	// Database
	results := tc.Results
	db := &neo4jgraphqltest.Database{
		Bookmark: testBookmark,
		Handler: func(stmt neo4jgraphql.Statement) (*neo4jgraphql.Result, error) {
			if len(results) == 0 {
				return &neo4jgraphql.Result{}, nil
			}
			next := results[0]
			results = results[1:]
			if next.Error != "" {
				return nil, errors.New(next.Error)
			}
			return &neo4jgraphql.Result{
				Records: next.Records,
				Counters: neo4jgraphql.Counters{
					NodesCreated:         next.Counters.NodesCreated,
					NodesDeleted:         next.Counters.NodesDeleted,
					RelationshipsCreated: next.Counters.RelationshipsCreated,
					RelationshipsDeleted: next.Counters.RelationshipsDeleted,
				},
			}, nil
		},
	}
	gqlClient := client.New(newTestHandler(t, db))

	var opts []client.Option

	// Variables
	for key, val := range tc.Variables {
		opts = append(opts, client.Var(key, val))
	}

	// Requestor
	switch {
	case tc.Requestor.Token != "":
		opts = append(opts, client.AddHeader("Authorization", tc.Requestor.Token))
	case tc.Requestor.Claims != nil:
		opts = append(opts, client.AddHeader("Authorization", "Bearer "+signToken(t, tc.Requestor.Claims)))
	}

	// Make Request
	resp := new(map[string]any)
	queryErr := gqlClient.Post(tc.Query, resp, opts...)

	// Statements
	stmts := db.Statements()
	if tc.ExpectedCypher != nil {
		cypher := []string{}
		for _, stmt := range stmts {
			cypher = append(cypher, stmt.Cypher)
		}
		assert.Equal(t, tc.ExpectedCypher, cypher, "unexpected cypher")
	}
	for i, want := range tc.ExpectedParams {
		// Null entries skip statements with generated values
		if want == nil {
			continue
		}
		require.Less(t, i, len(stmts), "missing statement %d", i)
		wantJSON, err := json.Marshal(want)
		require.NoError(t, err)
		gotJSON, err := json.Marshal(stmts[i].Params)
		require.NoError(t, err)
		assert.JSONEq(t, string(wantJSON), string(gotJSON), "unexpected params for statement %d", i)
	}
	if tc.ExpectedRollback {
		assert.Equal(t, 1, db.RolledBack(), "expected transaction to be rolled back")
	}

	// Handle Expected Errors
	if tc.ExpectedError != "" {
		assert.ErrorContains(t, queryErr, tc.ExpectedError)
		return
	}
	require.NoError(t, queryErr, "query failed with error")

	// Marshal expected result to JSON
	expectedJSON, err := json.Marshal(tc.Expected)
	require.NoError(t, err)

	// Marshal response to JSON
	respJSON, err := json.Marshal(resp)
	require.NoError(t, err, "failed to marshal response to JSON")

	// Assert the result is as expected
	assert.JSONEq(t, string(expectedJSON), string(respJSON), "response does not match expected result")
}

// TestAPI finds and runs all test cases defined in the testdata directory.
func TestAPI(t *testing.T) {
	runTestsInDir(t, filepath.Join("testdata", "api"))
}

func runTestsInDir(t *testing.T, root string) {
	t.Helper()

	files, err := os.ReadDir(root)
	require.NoError(t, err)

	for _, f := range files {
		// Derive relative path
		path := filepath.Join(root, f.Name())

		// Recurse in subdirectories by grouping them into sub-tests
		if f.IsDir() {
			t.Run(filepath.Base(f.Name()), func(t *testing.T) {
				runTestsInDir(t, path)
			})
			continue
		}

		// Skip files that are not test case files
		if filepath.Ext(path) != ".yml" {
			continue
		}

		// Run test case
		testName := filepath.Base(strings.TrimSuffix(path, ".yml"))
		t.Run(testName, func(t *testing.T) {
			runTestCase(t, path)
		})
	}
}
