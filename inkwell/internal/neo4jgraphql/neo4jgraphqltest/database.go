// Package neo4jgraphqltest provides an in-memory Database for tests.
package neo4jgraphqltest

import (
	"context"
	"sync"

	"inkwell.dev/inkwell/internal/neo4jgraphql"
)

// Database records every statement it is asked to run and answers with queued results.
// Statements beyond the queue receive an empty result.
type Database struct {
	// Bookmark returned for committed transactions.
	Bookmark string

	// Handler, when set, answers statements instead of the queue.
	Handler func(stmt neo4jgraphql.Statement) (*neo4jgraphql.Result, error)

	mu         sync.Mutex
	results    []*neo4jgraphql.Result
	statements []neo4jgraphql.Statement
	modes      []neo4jgraphql.AccessMode
	committed  int
	rolledBack int
}

// New database answering statements with the provided results, in order.
func New(results ...*neo4jgraphql.Result) *Database {
	return &Database{results: results}
}

// Records builds a result from records.
func Records(records ...map[string]any) *neo4jgraphql.Result {
	return &neo4jgraphql.Result{Records: records}
}

// Push queues results.
func (db *Database) Push(results ...*neo4jgraphql.Result) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.results = append(db.results, results...)
}

// Execute runs work once. Returning an error from work counts as a rollback.
func (db *Database) Execute(ctx context.Context, mode neo4jgraphql.AccessMode, work func(ctx context.Context, tx neo4jgraphql.Transaction) error) (string, error) {
	db.mu.Lock()
	db.modes = append(db.modes, mode)
	db.mu.Unlock()

	if err := work(ctx, transaction{db}); err != nil {
		db.mu.Lock()
		db.rolledBack++
		db.mu.Unlock()
		return "", err
	}
	db.mu.Lock()
	db.committed++
	db.mu.Unlock()
	return db.Bookmark, nil
}

// Statements run so far.
func (db *Database) Statements() []neo4jgraphql.Statement {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]neo4jgraphql.Statement(nil), db.statements...)
}

// Modes of the transactions executed so far.
func (db *Database) Modes() []neo4jgraphql.AccessMode {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]neo4jgraphql.AccessMode(nil), db.modes...)
}

// Committed transactions.
func (db *Database) Committed() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.committed
}

// RolledBack transactions.
func (db *Database) RolledBack() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.rolledBack
}

type transaction struct {
	db *Database
}

func (tx transaction) Run(ctx context.Context, stmt neo4jgraphql.Statement) (*neo4jgraphql.Result, error) {
	tx.db.mu.Lock()
	tx.db.statements = append(tx.db.statements, stmt)
	handler := tx.db.Handler
	var next *neo4jgraphql.Result
	if handler == nil && len(tx.db.results) > 0 {
		next, tx.db.results = tx.db.results[0], tx.db.results[1:]
	}
	tx.db.mu.Unlock()

	if handler != nil {
		return handler(stmt)
	}
	if next == nil {
		return &neo4jgraphql.Result{}, nil
	}
	return next, nil
}
