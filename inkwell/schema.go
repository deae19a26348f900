package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"

	"inkwell.dev/inkwell/internal/auth"
	"inkwell.dev/inkwell/internal/neo4jgraphql"
	"inkwell.dev/inkwell/internal/typedefs"
)

// schemaContentType of the written schema artifact.
const schemaContentType = "application/graphql"

// newMapper configures the mapping layer for the type definitions.
func newMapper(cfg *Config, db neo4jgraphql.Database) (*neo4jgraphql.Mapper, error) {
	return neo4jgraphql.New(neo4jgraphql.Config{
		TypeDefs: typedefs.TypeDefs,
		Database: db,
		Features: neo4jgraphql.Features{
			Authorization: &neo4jgraphql.AuthorizationFeature{
				Key: cfg.AuthorizationKey(),
			},
			ExcludeDeprecatedFields: neo4jgraphql.ExcludeDeprecatedFields{
				Bookmark:           true,
				NegationFilters:    true,
				StringAggregation:  true,
				AggregationFilters: true,
				ArrayFilters:       true,
			},
		},
		TokenFunc: auth.TokenFromContext,
		Debug:     cfg.IsDebugEnabled(),
		Logger:    slog.Default(),
	})
}

// deriveSchema builds the executable schema, asserts the constraints it implies and writes
// it to the configured path. Every step must succeed before the schema may be served.
func deriveSchema(ctx context.Context, cfg *Config, db neo4jgraphql.Database) (*neo4jgraphql.Schema, error) {
	mapper, err := newMapper(cfg, db)
	if err != nil {
		return nil, fmt.Errorf("failed to configure graphql mapping: %w", err)
	}
	schema, err := mapper.Schema()
	if err != nil {
		return nil, fmt.Errorf("failed to derive graphql schema: %w", err)
	}
	if err := mapper.AssertIndexesAndConstraints(ctx); err != nil {
		return nil, fmt.Errorf("failed to assert indexes and constraints: %w", err)
	}

	path := cfg.SchemaOutputPath()
	if err := writeSchema(ctx, path, schema.SDL()); err != nil {
		return nil, fmt.Errorf("failed to write graphql schema to %q: %w", path, err)
	}
	slog.InfoContext(ctx, "wrote graphql schema", "path", path)
	return schema, nil
}

// writeSchema overwrites the artifact at path. The file bucket is rooted at the directory
// of path, which must exist. No attribute sidecar files are written next to the schema.
func writeSchema(ctx context.Context, path, sdl string) error {
	dir, key := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	bucket, err := fileblob.OpenBucket(dir, &fileblob.Options{
		Metadata:  fileblob.MetadataDontWrite,
		NoTempDir: true,
	})
	if err != nil {
		return err
	}
	defer bucket.Close()

	return bucket.WriteAll(ctx, key, []byte(sdl), &blob.WriterOptions{
		ContentType: schemaContentType,
	})
}

// errOffline is returned by the database used to print the schema without connecting.
var errOffline = errors.New("database is not available offline")

type offlineDatabase struct{}

func (offlineDatabase) Execute(context.Context, neo4jgraphql.AccessMode, func(context.Context, neo4jgraphql.Transaction) error) (string, error) {
	return "", errOffline
}

// printSchema derives the schema without touching the database.
func printSchema(cfg *Config) (string, error) {
	mapper, err := newMapper(cfg, offlineDatabase{})
	if err != nil {
		return "", err
	}
	schema, err := mapper.Schema()
	if err != nil {
		return "", err
	}
	return schema.SDL(), nil
}
