package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/99designs/gqlgen/client"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell.dev/inkwell/internal/neo4jdb/neo4jtest"
	"inkwell.dev/inkwell/internal/neo4jgraphql"
)

const e2eAuthorizationKey = "e2e-secret"

func newToken(t *testing.T, sub string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(e2eAuthorizationKey))
	require.NoError(t, err)
	return token
}

func TestEndToEnd(t *testing.T) {
	inst := neo4jtest.Start(t)
	ctx := context.Background()

	srv, err := NewServer(ctx,
		ConfigureHTTPServer("127.0.0.1:0"),
		ConfigureNeo4j(Neo4jConfig{
			URI:      inst.URI,
			Username: inst.Username,
			Password: inst.Password,
		}),
		ConfigureSchemaOutput(filepath.Join(t.TempDir(), "schema.graphql")),
		ConfigureAuthorizationKey(e2eAuthorizationKey),
	)
	require.NoError(t, err)
	gqlClient := client.New(srv.HTTP.Handler)

	// Create two users
	var users struct {
		CreateUsers struct {
			Users []struct{ ID string }
		}
	}
	err = gqlClient.Post(`mutation { createUsers(input: [{ _emptyInput: true }, { _emptyInput: true }]) { users { id } } }`, &users)
	require.NoError(t, err)
	require.Len(t, users.CreateUsers.Users, 2)
	alice, bob := users.CreateUsers.Users[0].ID, users.CreateUsers.Users[1].ID
	require.NotEqual(t, alice, bob)

	aliceAuth := client.AddHeader("Authorization", "Bearer "+newToken(t, alice))
	bobAuth := client.AddHeader("Authorization", "Bearer "+newToken(t, bob))

	createPost := `mutation createPost($author: ID!) {
		createPosts(input: [{ title: "Hello", content: "World", author: { connect: { where: { node: { id: $author } } } } }]) {
			info { nodesCreated relationshipsCreated }
			posts { title author { id } }
		}
	}`

	t.Run("AuthorCreatesPost", func(t *testing.T) {
		var resp struct {
			CreatePosts struct {
				Info struct {
					NodesCreated         int
					RelationshipsCreated int
				}
				Posts []struct {
					Title  string
					Author struct{ ID string }
				}
			}
		}
		err := gqlClient.Post(createPost, &resp, client.Var("author", alice), aliceAuth)
		require.NoError(t, err)
		assert.Equal(t, 1, resp.CreatePosts.Info.NodesCreated)
		assert.Equal(t, 1, resp.CreatePosts.Info.RelationshipsCreated)
		require.Len(t, resp.CreatePosts.Posts, 1)
		assert.Equal(t, "Hello", resp.CreatePosts.Posts[0].Title)
		assert.Equal(t, alice, resp.CreatePosts.Posts[0].Author.ID)
	})

	t.Run("OtherUserCannotCreatePostForAuthor", func(t *testing.T) {
		var resp map[string]any
		err := gqlClient.Post(createPost, &resp, client.Var("author", alice), bobAuth)
		assert.ErrorContains(t, err, "Forbidden")
	})

	t.Run("PostWithoutAuthorIsRejected", func(t *testing.T) {
		var resp map[string]any
		err := gqlClient.Post(`mutation { createPosts(input: [{ title: "Orphan", content: "None" }]) { posts { title } } }`, &resp, aliceAuth)
		assert.Error(t, err)
	})

	t.Run("AuthorReadsPost", func(t *testing.T) {
		var resp struct {
			Posts []struct {
				Title   string
				Content string
			}
		}
		err := gqlClient.Post(`query { posts { title content } }`, &resp, aliceAuth)
		require.NoError(t, err)
		require.Len(t, resp.Posts, 1)
		assert.Equal(t, "Hello", resp.Posts[0].Title)
		assert.Equal(t, "World", resp.Posts[0].Content)
	})

	t.Run("OtherUserCannotReadPost", func(t *testing.T) {
		var resp map[string]any
		err := gqlClient.Post(`query { posts { title content } }`, &resp, bobAuth)
		assert.ErrorContains(t, err, "Forbidden")
	})

	t.Run("UnauthenticatedCannotReadPost", func(t *testing.T) {
		var resp map[string]any
		err := gqlClient.Post(`query { posts { title } }`, &resp)
		assert.ErrorContains(t, err, "Unauthenticated")
	})

	t.Run("InvalidTokenCannotReadPost", func(t *testing.T) {
		var resp map[string]any
		err := gqlClient.Post(`query { posts { title } }`, &resp, client.AddHeader("Authorization", "Bearer not-a-token"))
		assert.ErrorContains(t, err, "Unauthenticated")
	})

	t.Run("UsersArePublic", func(t *testing.T) {
		var resp struct {
			UsersAggregate struct{ Count int }
		}
		err := gqlClient.Post(`query { usersAggregate { count } }`, &resp)
		require.NoError(t, err)
		assert.Equal(t, 2, resp.UsersAggregate.Count)
	})

	t.Run("UniqueConstraintAsserted", func(t *testing.T) {
		db := inst.Open(t)
		var names []any
		_, err := db.Execute(ctx, neo4jgraphql.AccessModeRead, func(ctx context.Context, tx neo4jgraphql.Transaction) error {
			res, err := tx.Run(ctx, neo4jgraphql.Statement{Cypher: "SHOW CONSTRAINTS YIELD name RETURN collect(name) AS names"})
			if err != nil {
				return err
			}
			names, _ = res.Records[0]["names"].([]any)
			return nil
		})
		require.NoError(t, err)
		assert.Contains(t, names, "User_id")
	})
}
