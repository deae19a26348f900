package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"inkwell.dev/inkwell/internal/neo4jgraphql"
)

// testDataNamespace derives stable user ids so repeated seeding does not duplicate data.
var testDataNamespace = uuid.MustParse("7b0b6c2e-4d0c-4f7e-9a57-0c6b1b5d4e21")

// testDataUsers is the number of users created, each authoring testDataPostsPerUser posts.
const (
	testDataUsers        = 3
	testDataPostsPerUser = 4
	testDataTokenTTL     = 24 * time.Hour
)

// createTestData populates the DB with some test data :)
// A token is logged for every user so the API can be explored as that author.
func createTestData(ctx context.Context, db neo4jgraphql.Database, key string) error {
	slog.WarnContext(ctx, "test data is enabled")

	type seed struct {
		id    string
		posts []map[string]any
	}
	var seeds []seed
	for i := 1; i <= testDataUsers; i++ {
		s := seed{id: uuid.NewSHA1(testDataNamespace, fmt.Appendf(nil, "user-%d", i)).String()}
		for j := 1; j <= testDataPostsPerUser; j++ {
			s.posts = append(s.posts, map[string]any{
				"title":   fmt.Sprintf("Post %d by User %d", j, i),
				"content": fmt.Sprintf("Hello from user %d, this is post number %d.", i, j),
			})
		}
		seeds = append(seeds, s)
	}

	_, err := db.Execute(ctx, neo4jgraphql.AccessModeWrite, func(ctx context.Context, tx neo4jgraphql.Transaction) error {
		for _, s := range seeds {
			posts := make([]any, 0, len(s.posts))
			for _, p := range s.posts {
				posts = append(posts, p)
			}
			_, err := tx.Run(ctx, neo4jgraphql.Statement{
				Cypher: `MERGE (u:User {id: $id})
WITH u
UNWIND $posts AS post
MERGE (u)-[:AUTHORED]->(p:Post {title: post.title})
SET p.content = post.content`,
				Params: map[string]any{
					"id":    s.id,
					"posts": posts,
				},
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create test data: %w", err)
	}

	for _, s := range seeds {
		token, err := newTestDataToken(key, s.id)
		if err != nil {
			return err
		}
		slog.WarnContext(ctx, "created test user",
			"user_id", s.id,
			"posts", len(s.posts),
			"authorization", "Bearer "+token,
		)
	}
	return nil
}

func newTestDataToken(key, sub string) (string, error) {
	now := time.Now()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(testDataTokenTTL)),
	}).SignedString([]byte(key))
	if err != nil {
		return "", fmt.Errorf("failed to sign test data token: %w", err)
	}
	return token, nil
}
