// Package neo4jgraphql derives a GraphQL API from annotated type definitions and resolves it
// against a Neo4j database.
//
// Type definitions declare node types with the @id, @unique, @relationship, @plural and
// @authorization directives. For every node type the derived API offers list, connection and
// aggregate queries plus create, update and delete mutations. Selections are translated into
// Cypher and run through the provided Database; authorization rules are evaluated inside
// those statements against claims from the caller's token.
//
// The returned *Schema implements graphql.ExecutableSchema and is served with gqlgen:
//
//	mapper, err := neo4jgraphql.New(neo4jgraphql.Config{TypeDefs: typeDefs, Database: db})
//	schema, err := mapper.Schema()
//	srv := handler.NewDefaultServer(schema)
package neo4jgraphql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Config of a Mapper.
type Config struct {
	// TypeDefs in GraphQL SDL, annotated with the mapping directives.
	TypeDefs string

	// Database statements are run against.
	Database Database

	Features Features

	// TokenFunc returns the raw authorization token associated with a request context.
	// Tokens may carry a leading "Bearer ".
	TokenFunc func(ctx context.Context) (token string, ok bool)

	// Debug enables logging of every translated statement.
	Debug bool

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Features toggles optional parts of the derived API.
type Features struct {
	// Authorization must be configured when type definitions use @authorization.
	Authorization *AuthorizationFeature

	ExcludeDeprecatedFields ExcludeDeprecatedFields
}

// AuthorizationFeature configures token verification.
type AuthorizationFeature struct {
	// Key used to verify HMAC signed tokens.
	Key string
}

// ExcludeDeprecatedFields removes deprecated parts of the derived API.
type ExcludeDeprecatedFields struct {
	// Bookmark removes the bookmark field from mutation info types.
	Bookmark bool
	// NegationFilters removes the _NOT filters.
	NegationFilters bool
	// StringAggregation removes shortest and longest aggregate selections.
	StringAggregation bool
	// AggregationFilters removes relationship count filters.
	AggregationFilters bool
	// ArrayFilters removes _INCLUDES filters and plain list relationship filters.
	ArrayFilters bool
}

// tokenCacheSize bounds the number of verified tokens kept in memory.
const tokenCacheSize = 1024

// Mapper derives the executable schema from type definitions.
type Mapper struct {
	cfg   Config
	model *model

	once   sync.Once
	schema *Schema
	err    error
}

// New validates the type definitions. Derivation of the API is deferred to Schema.
func New(cfg Config) (*Mapper, error) {
	if cfg.TypeDefs == "" {
		return nil, errors.New("type definitions must be provided")
	}
	if cfg.Database == nil {
		return nil, errors.New("a database must be provided")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.TokenFunc == nil {
		cfg.TokenFunc = func(context.Context) (string, bool) { return "", false }
	}
	m, err := parseTypeDefs(cfg.TypeDefs)
	if err != nil {
		return nil, err
	}
	if cfg.Features.Authorization == nil {
		for _, n := range m.nodes {
			if !n.rules.empty() {
				return nil, fmt.Errorf("type %q uses @authorization but the authorization feature is not configured", n.name)
			}
		}
	}
	return &Mapper{cfg: cfg, model: m}, nil
}

// Schema derives the executable schema. The result is computed once.
func (m *Mapper) Schema() (*Schema, error) {
	m.once.Do(func() {
		m.schema, m.err = m.buildSchema()
	})
	return m.schema, m.err
}

func (m *Mapper) buildSchema() (*Schema, error) {
	sdl, sch, roots, err := generateSchema(m.model, m.cfg.Features.ExcludeDeprecatedFields)
	if err != nil {
		return nil, err
	}
	s := &Schema{
		sdl:       sdl,
		schema:    sch,
		roots:     roots,
		db:        m.cfg.Database,
		tokenFunc: m.cfg.TokenFunc,
		debug:     m.cfg.Debug,
		logger:    m.cfg.Logger,
	}
	if auth := m.cfg.Features.Authorization; auth != nil {
		if s.verifier, err = newTokenVerifier(auth.Key, tokenCacheSize, m.cfg.Logger); err != nil {
			return nil, err
		}
	}
	return s, nil
}
