package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/99designs/gqlgen/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell.dev/inkwell/internal/neo4jgraphql"
	"inkwell.dev/inkwell/internal/neo4jgraphql/neo4jgraphqltest"
)

func newTestServer(t *testing.T, db neo4jgraphql.Database, options ...func(*Config)) (*Server, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.graphql")
	options = append([]func(*Config){
		ConfigureHTTPServer("127.0.0.1:0"),
		ConfigureDatabase(db),
		ConfigureSchemaOutput(path),
		ConfigureAuthorizationKey("secret"),
	}, options...)
	srv, err := NewServer(context.Background(), options...)
	require.NoError(t, err)
	return srv, path
}

func TestNewServerWritesSchema(t *testing.T) {
	db := neo4jgraphqltest.New()
	srv, path := newTestServer(t, db)
	require.NotNil(t, srv.Schema())

	// Constraints are asserted before the schema is written
	stmts := db.Statements()
	require.Len(t, stmts, 1)
	assert.Equal(t, "CREATE CONSTRAINT User_id IF NOT EXISTS FOR (n:User) REQUIRE n.id IS UNIQUE", stmts[0].Cypher)
	assert.Equal(t, []neo4jgraphql.AccessMode{neo4jgraphql.AccessModeWrite}, db.Modes())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	sdl := string(data)
	assert.Equal(t, srv.Schema().SDL(), sdl)

	// Only the schema itself is written
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "schema.graphql", entries[0].Name())

	assert.Contains(t, sdl, "type User {")
	assert.Contains(t, sdl, "type Post {")
	assert.Contains(t, sdl, "author(where: UserWhere): User!")

	// Deprecated features are excluded
	for _, excluded := range []string{"bookmark", "_NOT", "AggregateInput", "_INCLUDES", "shortest", "longest"} {
		assert.NotContains(t, sdl, excluded)
	}
}

func TestNewServerOverwritesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.graphql")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	_, err := NewServer(context.Background(),
		ConfigureDatabase(neo4jgraphqltest.New()),
		ConfigureSchemaOutput(path),
	)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "stale")
	assert.Contains(t, string(data), "type Post {")
}

func TestNewServerFailsFast(t *testing.T) {
	errUnavailable := errors.New("database unavailable")

	// Test Cases
	tests := []struct {
		name    string
		options []func(*Config)

		wantErr string
	}{
		{
			name:    "NotConfigured",
			wantErr: "neo4j connection is not configured",
		},
		{
			name: "MissingPassword",
			options: []func(*Config){
				ConfigureNeo4j(Neo4jConfig{URI: "neo4j://localhost:7687", Username: "neo4j"}),
			},
			wantErr: `missing required configuration "NEO4J_PASSWORD"`,
		},
		{
			name: "InvalidURI",
			options: []func(*Config){
				ConfigureNeo4j(Neo4jConfig{URI: "not-a-url", Username: "neo4j", Password: "password"}),
			},
			wantErr: `"NEO4J_URI": "not-a-url" is not a valid URI`,
		},
		{
			name: "ConstraintFailure",
			options: []func(*Config){
				ConfigureDatabase(&neo4jgraphqltest.Database{
					Handler: func(neo4jgraphql.Statement) (*neo4jgraphql.Result, error) {
						return nil, errUnavailable
					},
				}),
			},
			wantErr: "failed to assert indexes and constraints",
		},
	}

	// Run Tests
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "schema.graphql")
			options := append([]func(*Config){
				ConfigureHTTPServer("127.0.0.1:0"),
				ConfigureSchemaOutput(path),
			}, tc.options...)

			srv, err := NewServer(context.Background(), options...)
			require.Error(t, err)
			assert.Nil(t, srv)
			assert.ErrorContains(t, err, tc.wantErr)

			// Nothing is written when startup fails
			_, statErr := os.Stat(path)
			assert.True(t, errors.Is(statErr, os.ErrNotExist))
		})
	}
}

func TestNewServerSchemaWriteFailure(t *testing.T) {
	db := neo4jgraphqltest.New()
	_, err := NewServer(context.Background(),
		ConfigureDatabase(db),
		ConfigureSchemaOutput(filepath.Join(t.TempDir(), "missing", "schema.graphql")),
	)
	assert.ErrorContains(t, err, "failed to write graphql schema")

	// Constraints were already asserted and are not rolled back
	assert.Len(t, db.Statements(), 1)
}

func TestServerServe(t *testing.T) {
	db := neo4jgraphqltest.New()
	srv, _ := newTestServer(t, db)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(context.Background(), ln)
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/status")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, OKStatusText, string(body))

	require.NoError(t, srv.Close())
	assert.NoError(t, <-errCh)
}

func TestServerGraphQL(t *testing.T) {
	db := neo4jgraphqltest.New()
	srv, _ := newTestServer(t, db)
	db.Push(neo4jgraphqltest.Records(
		map[string]any{"this": map[string]any{"id": "u1"}},
		map[string]any{"this": map[string]any{"id": "u2"}},
	))
	gqlClient := client.New(srv.HTTP.Handler)

	var resp struct {
		Users []struct {
			ID string
		}
	}
	err := gqlClient.Post(`query { users { id } }`, &resp)
	require.NoError(t, err)
	require.Len(t, resp.Users, 2)
	assert.Equal(t, "u1", resp.Users[0].ID)
	assert.Equal(t, "u2", resp.Users[1].ID)

	stmts := db.Statements()
	assert.Equal(t, "MATCH (this:User)\nRETURN { id: this.id } AS this", stmts[len(stmts)-1].Cypher)
}

func TestServerPostsRequireToken(t *testing.T) {
	db := neo4jgraphqltest.New()
	srv, _ := newTestServer(t, db)
	gqlClient := client.New(srv.HTTP.Handler)

	// Nothing to reject
	var empty struct{ Posts []any }
	require.NoError(t, gqlClient.Post(`query { posts { title } }`, &empty))
	assert.Empty(t, empty.Posts)

	db.Push(neo4jgraphqltest.Records(
		map[string]any{"this": map[string]any{"title": "Hello", "@authorized": false}},
	))
	var resp map[string]any
	err := gqlClient.Post(`query { posts { title } }`, &resp)
	assert.ErrorContains(t, err, "Unauthenticated")
}

func TestRunTestRunAndExit(t *testing.T) {
	t.Setenv(EnvEnableTestRunAndExit.Key, "1")
	err := run(context.Background(),
		ConfigureHTTPServer("127.0.0.1:0"),
		ConfigureDatabase(neo4jgraphqltest.New()),
		ConfigureSchemaOutput(filepath.Join(t.TempDir(), "schema.graphql")),
	)
	assert.NoError(t, err)
}

func TestSchemaCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.graphql")
	var out bytes.Buffer
	app := newApp(context.Background(), ConfigureSchemaOutput(path))
	app.Writer = &out

	require.NoError(t, app.Run([]string{"inkwell", "schema"}))
	assert.Contains(t, out.String(), "type Query {")
	assert.Contains(t, out.String(), "createPosts(input: [PostCreateInput!]!): CreatePostsMutationResponse!")

	// The schema command never writes the artifact
	_, err := os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
