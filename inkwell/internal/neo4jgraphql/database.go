package neo4jgraphql

import (
	"context"
	"log/slog"
)

// AccessMode of a transaction.
type AccessMode int

const (
	// AccessModeRead transactions may be routed to read replicas.
	AccessModeRead AccessMode = iota
	// AccessModeWrite transactions are routed to the leader.
	AccessModeWrite
)

func (m AccessMode) String() string {
	if m == AccessModeWrite {
		return "write"
	}
	return "read"
}

// Statement is a parameterized Cypher statement.
type Statement struct {
	Cypher string
	Params map[string]any
}

// Counters reported by the database after a statement ran.
type Counters struct {
	NodesCreated         int
	NodesDeleted         int
	RelationshipsCreated int
	RelationshipsDeleted int
	PropertiesSet        int
}

// Add the provided counters to c.
func (c *Counters) Add(o Counters) {
	c.NodesCreated += o.NodesCreated
	c.NodesDeleted += o.NodesDeleted
	c.RelationshipsCreated += o.RelationshipsCreated
	c.RelationshipsDeleted += o.RelationshipsDeleted
	c.PropertiesSet += o.PropertiesSet
}

// Result of a statement. Records are keyed by the names in the RETURN clause.
type Result struct {
	Records  []map[string]any
	Counters Counters
}

// A Transaction runs statements inside a managed transaction.
type Transaction interface {
	Run(ctx context.Context, stmt Statement) (*Result, error)
}

// Database executes units of work inside managed transactions.
//
// The work func may be retried by the implementation on transient failures and must not
// have side effects outside of the transaction. A non-nil error returned by work rolls the
// transaction back. The returned bookmark identifies the committed transaction.
type Database interface {
	Execute(ctx context.Context, mode AccessMode, work func(ctx context.Context, tx Transaction) error) (bookmark string, err error)
}

// loggingTx logs every statement before delegating it.
type loggingTx struct {
	Transaction
	logger *slog.Logger
}

func (tx loggingTx) Run(ctx context.Context, stmt Statement) (*Result, error) {
	tx.logger.DebugContext(ctx, "executing cypher",
		"cypher", stmt.Cypher,
		"params", stmt.Params,
	)
	return tx.Transaction.Run(ctx, stmt)
}
