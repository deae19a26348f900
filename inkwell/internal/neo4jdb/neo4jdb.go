// Package neo4jdb runs mapping layer statements against Neo4j using the official driver.
package neo4jdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"inkwell.dev/inkwell/internal/neo4jgraphql"
)

// Database adapts a shared driver to the neo4jgraphql.Database interface.
// A session is opened for every unit of work; the driver itself is safe for concurrent use.
type Database struct {
	driver   neo4j.DriverWithContext
	database string

	maxPoolSize int
}

// An Option to configure a Database.
type Option func(*Database)

// WithDatabaseName routes every session to the named database instead of the server default.
func WithDatabaseName(name string) Option {
	return func(db *Database) {
		db.database = name
	}
}

// WithMaxConnectionPoolSize bounds the connections the driver keeps per server.
// Only applies to drivers created by Open.
func WithMaxConnectionPoolSize(size int) Option {
	return func(db *Database) {
		db.maxPoolSize = size
	}
}

// Open creates the driver. Connectivity is not verified; failures surface on first use.
func Open(uri, username, password string, options ...Option) (*Database, error) {
	db := &Database{}
	for _, opt := range options {
		opt(db)
	}
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""), func(c *neo4j.Config) {
		if db.maxPoolSize > 0 {
			c.MaxConnectionPoolSize = db.maxPoolSize
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	db.driver = driver
	return db, nil
}

// New wraps an existing driver.
func New(driver neo4j.DriverWithContext, options ...Option) *Database {
	db := &Database{driver: driver}
	for _, opt := range options {
		opt(db)
	}
	return db
}

// Driver returns the underlying driver.
func (db *Database) Driver() neo4j.DriverWithContext {
	return db.driver
}

// VerifyConnectivity checks the database can be reached with the configured credentials.
func (db *Database) VerifyConnectivity(ctx context.Context) error {
	return db.driver.VerifyConnectivity(ctx)
}

// Close the driver and every pooled connection.
func (db *Database) Close(ctx context.Context) error {
	return db.driver.Close(ctx)
}

// Execute work in a managed transaction. The driver retries work on transient failures.
func (db *Database) Execute(ctx context.Context, mode neo4jgraphql.AccessMode, work func(ctx context.Context, tx neo4jgraphql.Transaction) error) (string, error) {
	cfg := neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: db.database,
	}
	if mode == neo4jgraphql.AccessModeWrite {
		cfg.AccessMode = neo4j.AccessModeWrite
	}
	session := db.driver.NewSession(ctx, cfg)
	defer session.Close(ctx)

	fn := func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, work(ctx, transaction{tx})
	}
	var err error
	if mode == neo4jgraphql.AccessModeWrite {
		_, err = session.ExecuteWrite(ctx, fn)
	} else {
		_, err = session.ExecuteRead(ctx, fn)
	}
	if err != nil {
		return "", err
	}
	return strings.Join(neo4j.BookmarksToRawValues(session.LastBookmarks()), ","), nil
}

type transaction struct {
	tx neo4j.ManagedTransaction
}

func (t transaction) Run(ctx context.Context, stmt neo4jgraphql.Statement) (*neo4jgraphql.Result, error) {
	res, err := t.tx.Run(ctx, stmt.Cypher, stmt.Params)
	if err != nil {
		return nil, err
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return nil, err
	}
	summary, err := res.Consume(ctx)
	if err != nil {
		return nil, err
	}

	out := &neo4jgraphql.Result{Records: make([]map[string]any, 0, len(records))}
	for _, rec := range records {
		out.Records = append(out.Records, recordMap(rec))
	}
	if summary != nil {
		out.Counters = counters(summary.Counters())
	}
	return out, nil
}

func recordMap(rec *neo4j.Record) map[string]any {
	m := make(map[string]any, len(rec.Keys))
	for i, key := range rec.Keys {
		m[key] = value(rec.Values[i])
	}
	return m
}

// value converts driver values into the plain maps, lists and scalars the mapping layer shapes.
func value(v any) any {
	switch val := v.(type) {
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = value(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = value(item)
		}
		return out
	case neo4j.Node:
		return value(val.Props)
	case neo4j.Relationship:
		return value(val.Props)
	}
	return v
}

func counters(c neo4j.Counters) neo4jgraphql.Counters {
	if c == nil {
		return neo4jgraphql.Counters{}
	}
	return neo4jgraphql.Counters{
		NodesCreated:         c.NodesCreated(),
		NodesDeleted:         c.NodesDeleted(),
		RelationshipsCreated: c.RelationshipsCreated(),
		RelationshipsDeleted: c.RelationshipsDeleted(),
		PropertiesSet:        c.PropertiesSet(),
	}
}
