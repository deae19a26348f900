package neo4jgraphql

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/99designs/gqlgen/graphql"
	"github.com/google/uuid"
	"github.com/vektah/gqlparser/v2/ast"
)

// Arithmetic update operators and the Cypher operator each applies.
var mathOperators = []struct {
	suffix string
	scalar string
	op     string
}{
	{"_INCREMENT", intType, "+"},
	{"_DECREMENT", intType, "-"},
	{"_ADD", floatType, "+"},
	{"_SUBTRACT", floatType, "-"},
	{"_MULTIPLY", floatType, "*"},
	{"_DIVIDE", floatType, "/"},
}

func (r *request) resolveCreate(n *node, f graphql.CollectedField) (any, error) {
	args := r.arguments(f)
	inputs, _ := args["input"].([]any)

	var stmts []Statement
	touchesRelationships := false
	for _, item := range inputs {
		input, _ := item.(map[string]any)
		env := newCypherEnv(r.principal())
		var b strings.Builder
		if err := r.writeCreate(env, &b, n, "this", input); err != nil {
			return nil, err
		}
		b.WriteString("RETURN elementId(this) AS id")
		stmts = append(stmts, env.statement(b.String()))
		touchesRelationships = touchesRelationships || hasRelationshipInput(n, input)
	}
	ops := []operation{opCreate}
	if touchesRelationships {
		ops = append(ops, opCreateRelationship)
	}

	fields := r.collect(f.Selections, "Create"+n.pluralType()+"MutationResponse")
	var counters Counters
	var nodes []any
	bookmark, err := r.transact(AccessModeWrite, func(ctx context.Context, tx Transaction) error {
		counters, nodes = Counters{}, nil
		var ids []string
		for _, stmt := range stmts {
			res, err := tx.Run(ctx, stmt)
			if err != nil {
				return err
			}
			counters.Add(res.Counters)
			ids = append(ids, stringColumn(res.Records, "id")...)
		}
		if err := r.verifyWrite(ctx, tx, n, ids, ops); err != nil {
			return err
		}
		var err error
		nodes, err = r.projectWritten(ctx, tx, n, ids, fields)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", n.plural, err)
	}
	return mutationResponse(r, fields, createInfoType, counters, bookmark, nodes), nil
}

// writeCreate writes a CREATE of n bound to v, followed by the nested relationship input.
func (r *request) writeCreate(env *cypherEnv, b *strings.Builder, n *node, v string, input map[string]any) error {
	fmt.Fprintf(b, "CREATE (%s:%s)\n", v, n.name)
	var sets []string
	for _, p := range n.properties {
		if p.generatedID {
			sets = append(sets, fmt.Sprintf("%s.%s = %s", v, p.name, env.param(uuid.NewString())))
			continue
		}
		value, ok := input[p.name]
		if !ok || value == nil {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s.%s = %s", v, p.name, env.param(coerceProperty(p, value))))
	}
	if len(sets) > 0 {
		fmt.Fprintf(b, "SET %s\n", strings.Join(sets, ", "))
	}
	for _, rel := range n.rels {
		fieldInput, ok := input[rel.name].(map[string]any)
		if !ok {
			continue
		}
		if err := r.writeRelationshipInput(env, b, rel, v, fieldInput, false); err != nil {
			return err
		}
	}
	return nil
}

// writeRelationshipInput writes the create and connect operations of a relationship field.
// With replace set, existing relationships of a single relationship field are removed first.
func (r *request) writeRelationshipInput(env *cypherEnv, b *strings.Builder, rel *relationship, v string, fieldInput map[string]any, replace bool) error {
	creates := asList(fieldInput["create"])
	connects := asList(fieldInput["connect"])
	if len(creates) == 0 && len(connects) == 0 {
		return nil
	}
	if !rel.list && len(creates)+len(connects) > 1 {
		return fmt.Errorf("%s can only be related to one %s", rel.name, rel.target.name)
	}

	if replace && !rel.list {
		relVar := env.named("rel")
		b.WriteString("WITH *\nCALL {\n")
		fmt.Fprintf(b, "WITH %s\n", v)
		fmt.Fprintf(b, "MATCH %s\n", rel.path(v, ":"+rel.target.name, relVar))
		fmt.Fprintf(b, "DELETE %s\n", relVar)
		fmt.Fprintf(b, "RETURN count(*) AS %s\n", env.named("disconnected"))
		b.WriteString("}\n")
	}

	for _, item := range connects {
		connect, _ := item.(map[string]any)
		target := env.variable()
		b.WriteString("WITH *\nCALL {\n")
		fmt.Fprintf(b, "WITH %s\n", v)
		fmt.Fprintf(b, "MATCH (%s:%s)\n", target, rel.target.name)
		var where map[string]any
		if w, ok := connect["where"].(map[string]any); ok {
			where, _ = w["node"].(map[string]any)
		}
		preds, err := env.matchPredicates(rel.target, target, where, opCreateRelationship)
		if err != nil {
			return err
		}
		if len(preds) > 0 {
			fmt.Fprintf(b, "WHERE %s\n", joinPredicates(preds, "AND"))
		}
		fmt.Fprintf(b, "CREATE %s\n", rel.path(v, target, ""))
		fmt.Fprintf(b, "RETURN count(*) AS %s\n", env.named("connected"))
		b.WriteString("}\n")
	}

	for _, item := range creates {
		create, _ := item.(map[string]any)
		input, _ := create["node"].(map[string]any)
		target := env.variable()
		b.WriteString("WITH *\nCALL {\n")
		fmt.Fprintf(b, "WITH %s\n", v)
		if err := r.writeCreate(env, b, rel.target, target, input); err != nil {
			return err
		}
		fmt.Fprintf(b, "CREATE %s\n", rel.path(v, target, ""))
		fmt.Fprintf(b, "RETURN count(*) AS %s\n", env.named("created"))
		b.WriteString("}\n")
	}
	return nil
}

func hasRelationshipInput(n *node, input map[string]any) bool {
	for _, rel := range n.rels {
		if _, ok := input[rel.name]; ok {
			return true
		}
	}
	return false
}

func (r *request) resolveUpdate(n *node, f graphql.CollectedField) (any, error) {
	args := r.arguments(f)
	where, _ := args["where"].(map[string]any)
	update, _ := args["update"].(map[string]any)

	relationshipInput := hasRelationshipInput(n, update)
	before := []operation{opUpdate}
	after := []operation{opUpdate}
	if relationshipInput {
		before = append(before, opDeleteRelationship)
		after = append(after, opCreateRelationship)
	}
	match, err := r.matchForWrite(n, where, before)
	if err != nil {
		return nil, err
	}

	fields := r.collect(f.Selections, "Update"+n.pluralType()+"MutationResponse")
	var counters Counters
	var nodes []any
	bookmark, err := r.transact(AccessModeWrite, func(ctx context.Context, tx Transaction) error {
		counters, nodes = Counters{}, nil
		ids, err := matchedIDs(ctx, tx, match)
		if err != nil {
			return err
		}
		if len(ids) > 0 && len(update) > 0 {
			stmt, err := r.updateStatement(n, ids, update)
			if err != nil {
				return err
			}
			res, err := tx.Run(ctx, stmt)
			if err != nil {
				return err
			}
			counters.Add(res.Counters)
		}
		if err := r.verifyWrite(ctx, tx, n, ids, after); err != nil {
			return err
		}
		nodes, err = r.projectWritten(ctx, tx, n, ids, fields)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update %s: %w", n.plural, err)
	}
	return mutationResponse(r, fields, updateInfoType, counters, bookmark, nodes), nil
}

func (r *request) updateStatement(n *node, ids []string, update map[string]any) (Statement, error) {
	env := newCypherEnv(r.principal())
	var b strings.Builder
	fmt.Fprintf(&b, "MATCH (this:%s)\n", n.name)
	fmt.Fprintf(&b, "WHERE elementId(this) IN %s\n", env.param(ids))

	var sets []string
	for _, key := range sortedKeys(update) {
		if key == emptyInputField || n.relationship(key) != nil {
			continue
		}
		value := update[key]
		if p := n.property(key); p != nil && !p.generatedID {
			sets = append(sets, fmt.Sprintf("this.%s = %s", p.name, env.param(coerceProperty(p, value))))
			continue
		}
		set, err := mathSet(env, n, key, value)
		if err != nil {
			return Statement{}, err
		}
		if set != "" {
			sets = append(sets, set)
		}
	}
	if len(sets) > 0 {
		fmt.Fprintf(&b, "SET %s\n", strings.Join(sets, ", "))
	}
	for _, rel := range n.rels {
		fieldInput, ok := update[rel.name].(map[string]any)
		if !ok {
			continue
		}
		if err := r.writeRelationshipInput(env, &b, rel, "this", fieldInput, true); err != nil {
			return Statement{}, err
		}
	}
	b.WriteString("RETURN count(*) AS updated")
	return env.statement(b.String()), nil
}

func mathSet(env *cypherEnv, n *node, key string, value any) (string, error) {
	for _, m := range mathOperators {
		name, ok := strings.CutSuffix(key, m.suffix)
		if !ok {
			continue
		}
		p := n.property(name)
		if p == nil || p.list || p.scalar != m.scalar {
			break
		}
		if value == nil {
			return "", fmt.Errorf("%s must not be null", key)
		}
		if m.suffix == "_DIVIDE" {
			if f, ok := value.(float64); ok && f == 0 {
				return "", fmt.Errorf("%s must not be zero", key)
			}
			if i, ok := toInt64(value); ok && i == 0 {
				return "", fmt.Errorf("%s must not be zero", key)
			}
		}
		prop := "this." + p.name
		return fmt.Sprintf("%s = %s %s %s", prop, prop, m.op, env.param(value)), nil
	}
	return "", fmt.Errorf("unknown update field %s.%s", n.name, key)
}

func (r *request) resolveDelete(n *node, f graphql.CollectedField) (any, error) {
	args := r.arguments(f)
	where, _ := args["where"].(map[string]any)
	match, err := r.matchForWrite(n, where, []operation{opDelete})
	if err != nil {
		return nil, err
	}

	var counters Counters
	bookmark, err := r.transact(AccessModeWrite, func(ctx context.Context, tx Transaction) error {
		counters = Counters{}
		ids, err := matchedIDs(ctx, tx, match)
		if err != nil || len(ids) == 0 {
			return err
		}
		env := newCypherEnv(r.principal())
		stmt := env.statement(fmt.Sprintf("MATCH (this:%s)\nWHERE elementId(this) IN %s\nDETACH DELETE this", n.name, env.param(ids)))
		res, err := tx.Run(ctx, stmt)
		if err != nil {
			return err
		}
		counters.Add(res.Counters)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete %s: %w", n.plural, err)
	}
	return infoObject(r, f.Selections, deleteInfoType, counters, bookmark), nil
}

// matchForWrite selects the nodes a write applies to along with their BEFORE validation.
func (r *request) matchForWrite(n *node, where map[string]any, ops []operation) (Statement, error) {
	env := newCypherEnv(r.principal())
	var b strings.Builder
	fmt.Fprintf(&b, "MATCH (this:%s)\n", n.name)
	preds, err := env.matchPredicates(n, "this", where, ops...)
	if err != nil {
		return Statement{}, err
	}
	if len(preds) > 0 {
		fmt.Fprintf(&b, "WHERE %s\n", joinPredicates(preds, "AND"))
	}
	pred, err := env.validatePredicate(n, "this", stageBefore, ops...)
	if err != nil {
		return Statement{}, err
	}
	if pred == "" {
		pred = "true"
	}
	fmt.Fprintf(&b, "RETURN elementId(this) AS id, %s AS authorized", pred)
	return env.statement(b.String()), nil
}

func matchedIDs(ctx context.Context, tx Transaction, match Statement) ([]string, error) {
	res, err := tx.Run(ctx, match)
	if err != nil {
		return nil, err
	}
	for _, rec := range res.Records {
		if rec["authorized"] != true {
			return nil, ErrForbidden
		}
	}
	return stringColumn(res.Records, "id"), nil
}

// verifyWrite checks AFTER validation and relationship cardinality of the written nodes.
// An error rolls the transaction back.
func (r *request) verifyWrite(ctx context.Context, tx Transaction, n *node, ids []string, ops []operation) error {
	if len(ids) == 0 {
		return nil
	}
	env := newCypherEnv(r.principal())
	pred, err := env.validatePredicate(n, "this", stageAfter, ops...)
	if err != nil {
		return err
	}
	var single []*relationship
	for _, rel := range n.rels {
		if !rel.list {
			single = append(single, rel)
		}
	}
	if pred == "" && len(single) == 0 {
		return nil
	}
	if pred == "" {
		pred = "true"
	}

	columns := []string{"elementId(this) AS id", pred + " AS authorized"}
	for i, rel := range single {
		columns = append(columns, fmt.Sprintf("size([%s | 1]) AS rel%d", rel.path("this", ":"+rel.target.name, ""), i))
	}
	stmt := env.statement(fmt.Sprintf("MATCH (this:%s)\nWHERE elementId(this) IN %s\nRETURN %s",
		n.name, env.param(ids), strings.Join(columns, ", ")))
	res, err := tx.Run(ctx, stmt)
	if err != nil {
		return err
	}
	for _, rec := range res.Records {
		if rec["authorized"] != true {
			return ErrForbidden
		}
		for i, rel := range single {
			count, _ := toInt64(rec[fmt.Sprintf("rel%d", i)])
			if rel.nonNull && count != 1 {
				return fmt.Errorf("%s.%s required exactly once", n.name, rel.name)
			}
			if count > 1 {
				return fmt.Errorf("%s.%s must be less than or equal to one", n.name, rel.name)
			}
		}
	}
	return nil
}

// projectWritten reads the written nodes back in write order when the response selects them.
func (r *request) projectWritten(ctx context.Context, tx Transaction, n *node, ids []string, fields []graphql.CollectedField) ([]any, error) {
	var nodeFields []graphql.CollectedField
	selected := false
	for _, f := range fields {
		if f.Name == n.plural {
			selected = true
			nodeFields = append(nodeFields, r.collect(f.Selections, n.name)...)
		}
	}
	if !selected || len(ids) == 0 {
		return []any{}, nil
	}

	env := newCypherEnv(r.principal())
	stmt, err := r.readStatement(env, n, nil, nil, nodeFields, ids)
	if err != nil {
		return nil, err
	}
	res, err := tx.Run(ctx, stmt)
	if err != nil {
		return nil, err
	}
	nodes := column(res.Records, "this")
	if err := checkAuthorized(nodes); err != nil {
		return nil, err
	}
	slices.SortStableFunc(nodes, func(a, b any) int {
		return slices.Index(ids, elementID(a)) - slices.Index(ids, elementID(b))
	})
	return nodes, nil
}

func elementID(node any) string {
	m, _ := node.(map[string]any)
	id, _ := m[elementIDKey].(string)
	return id
}

func mutationResponse(r *request, fields []graphql.CollectedField, infoType string, counters Counters, bookmark string, nodes []any) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		switch f.Name {
		case "info":
			out[f.Alias] = infoObject(r, f.Selections, infoType, counters, bookmark)
		default:
			out[f.Alias] = nodes
		}
	}
	return out
}

func infoObject(r *request, sel ast.SelectionSet, infoType string, counters Counters, bookmark string) map[string]any {
	info := make(map[string]any)
	for _, f := range r.collect(sel, infoType) {
		switch f.Name {
		case "nodesCreated":
			info[f.Alias] = int64(counters.NodesCreated)
		case "nodesDeleted":
			info[f.Alias] = int64(counters.NodesDeleted)
		case "relationshipsCreated":
			info[f.Alias] = int64(counters.RelationshipsCreated)
		case "relationshipsDeleted":
			info[f.Alias] = int64(counters.RelationshipsDeleted)
		case "bookmark":
			if bookmark != "" {
				info[f.Alias] = bookmark
			}
		}
	}
	return info
}

func asList(value any) []any {
	switch v := value.(type) {
	case nil:
		return nil
	case []any:
		return v
	}
	return []any{value}
}

func stringColumn(records []map[string]any, key string) []string {
	out := make([]string, 0, len(records))
	for _, rec := range records {
		if s, ok := rec[key].(string); ok {
			out = append(out, s)
		}
	}
	return out
}
