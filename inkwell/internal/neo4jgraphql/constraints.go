package neo4jgraphql

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// constraint is a uniqueness constraint implied by @id or @unique.
type constraint struct {
	name     string
	label    string
	property string
}

func (c constraint) statement() Statement {
	return Statement{
		Cypher: fmt.Sprintf("CREATE CONSTRAINT %s IF NOT EXISTS FOR (n:%s) REQUIRE n.%s IS UNIQUE", c.name, c.label, c.property),
	}
}

func (m *Mapper) constraints() []constraint {
	var out []constraint
	for _, n := range m.model.nodes {
		for _, p := range n.properties {
			if p.unique {
				out = append(out, constraint{name: p.constraintName, label: n.name, property: p.name})
			}
		}
	}
	return out
}

// AssertIndexesAndConstraints creates the uniqueness constraints implied by the type
// definitions when they do not exist yet. Every constraint is attempted; failures are
// aggregated.
func (m *Mapper) AssertIndexesAndConstraints(ctx context.Context) error {
	var errs error
	for _, c := range m.constraints() {
		stmt := c.statement()
		_, err := m.cfg.Database.Execute(ctx, AccessModeWrite, func(ctx context.Context, tx Transaction) error {
			if m.cfg.Debug {
				tx = loggingTx{Transaction: tx, logger: m.cfg.Logger}
			}
			_, err := tx.Run(ctx, stmt)
			return err
		})
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("failed to assert constraint %s: %w", c.name, err))
			continue
		}
		m.cfg.Logger.InfoContext(ctx, "asserted constraint",
			"name", c.name,
			"label", c.label,
			"property", c.property,
		)
	}
	return errs
}
