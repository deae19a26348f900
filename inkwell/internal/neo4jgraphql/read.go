package neo4jgraphql

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/99designs/gqlgen/graphql"
)

const cursorPrefix = "arrayconnection:"

func (r *request) resolveRead(n *node, f graphql.CollectedField) (any, error) {
	args := r.arguments(f)
	where, _ := args["where"].(map[string]any)
	options, _ := args["options"].(map[string]any)

	env := newCypherEnv(r.principal())
	stmt, err := r.readStatement(env, n, where, options, r.collect(f.Selections, n.name), nil)
	if err != nil {
		return nil, err
	}
	var nodes []any
	if _, err := r.transact(AccessModeRead, func(ctx context.Context, tx Transaction) error {
		res, err := tx.Run(ctx, stmt)
		if err != nil {
			return err
		}
		nodes = column(res.Records, "this")
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", n.plural, err)
	}
	if err := checkAuthorized(nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// readStatement projects the nodes matching where, or the nodes with the provided element ids.
func (r *request) readStatement(env *cypherEnv, n *node, where, options map[string]any, fields []graphql.CollectedField, ids []string) (Statement, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "MATCH (this:%s)\n", n.name)
	preds, err := env.matchPredicates(n, "this", where, opRead)
	if err != nil {
		return Statement{}, err
	}
	if ids != nil {
		preds = append([]string{"elementId(this) IN " + env.param(ids)}, preds...)
	}
	if len(preds) > 0 {
		fmt.Fprintf(&b, "WHERE %s\n", joinPredicates(preds, "AND"))
	}
	b.WriteString(env.page("this", options))

	proj, err := r.project(env, n, "this", fields)
	if err != nil {
		return Statement{}, err
	}
	if ids != nil {
		proj.add(elementIDKey, "elementId(this)")
	}
	for _, sub := range proj.subqueries {
		b.WriteString(sub)
	}
	fmt.Fprintf(&b, "RETURN %s AS this", proj.mapLiteral())
	return env.statement(b.String()), nil
}

func (r *request) resolveConnection(n *node, f graphql.CollectedField) (any, error) {
	args := r.arguments(f)
	where, _ := args["where"].(map[string]any)

	offset := 0
	if after, ok := args["after"].(string); ok && after != "" {
		o, err := cursorOffset(after)
		if err != nil {
			return nil, err
		}
		offset = o + 1
	}
	first, hasFirst := toInt64(args["first"])
	if hasFirst && first < 0 {
		return nil, fmt.Errorf("first must not be negative")
	}

	connType := n.pluralType() + "Connection"
	edgeType := n.name + "Edge"
	fields := r.collect(f.Selections, connType)
	var nodeFields []graphql.CollectedField
	edgesSelected := false
	for _, cf := range fields {
		if cf.Name != "edges" {
			continue
		}
		edgesSelected = true
		for _, ef := range r.collect(cf.Selections, edgeType) {
			if ef.Name == "node" {
				nodeFields = append(nodeFields, r.collect(ef.Selections, n.name)...)
			}
		}
	}

	env := newCypherEnv(r.principal())
	var b strings.Builder
	fmt.Fprintf(&b, "MATCH (this:%s)\n", n.name)
	preds, err := env.matchPredicates(n, "this", where, opRead)
	if err != nil {
		return nil, err
	}
	if len(preds) > 0 {
		fmt.Fprintf(&b, "WHERE %s\n", joinPredicates(preds, "AND"))
	}
	b.WriteString(env.page("this", map[string]any{"sort": args["sort"]}))
	b.WriteString("WITH collect(this) AS edges\n")
	b.WriteString("WITH edges, size(edges) AS totalCount\n")
	if edgesSelected {
		from := env.param(int64(offset))
		slice := fmt.Sprintf("edges[%s..]", from)
		if hasFirst {
			slice = fmt.Sprintf("edges[%s..%s]", from, env.param(int64(offset)+first))
		}
		proj, err := r.project(env, n, "this", nodeFields)
		if err != nil {
			return nil, err
		}
		b.WriteString("CALL {\n")
		b.WriteString("WITH edges\n")
		fmt.Fprintf(&b, "UNWIND %s AS this\n", slice)
		for _, sub := range proj.subqueries {
			b.WriteString(sub)
		}
		fmt.Fprintf(&b, "RETURN collect(%s) AS nodes\n", proj.mapLiteral())
		b.WriteString("}\n")
		b.WriteString("RETURN totalCount, nodes")
	} else {
		b.WriteString("RETURN totalCount, [] AS nodes")
	}
	stmt := env.statement(b.String())

	var totalCount int64
	var nodes []any
	if _, err := r.transact(AccessModeRead, func(ctx context.Context, tx Transaction) error {
		res, err := tx.Run(ctx, stmt)
		if err != nil {
			return err
		}
		totalCount, nodes = 0, nil
		if len(res.Records) > 0 {
			totalCount, _ = toInt64(res.Records[0]["totalCount"])
			nodes, _ = res.Records[0]["nodes"].([]any)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to read %s connection: %w", n.plural, err)
	}
	if err := checkAuthorized(nodes); err != nil {
		return nil, err
	}

	pageLen := max(totalCount-int64(offset), 0)
	if hasFirst && first < pageLen {
		pageLen = first
	}
	if edgesSelected {
		pageLen = int64(len(nodes))
	}

	result := make(map[string]any, len(fields))
	for _, cf := range fields {
		switch cf.Name {
		case "totalCount":
			result[cf.Alias] = totalCount
		case "edges":
			edgeFields := r.collect(cf.Selections, edgeType)
			edges := make([]any, len(nodes))
			for i, node := range nodes {
				edge := make(map[string]any, len(edgeFields))
				for _, ef := range edgeFields {
					switch ef.Name {
					case "cursor":
						edge[ef.Alias] = encodeCursor(offset + i)
					case "node":
						edge[ef.Alias] = node
					}
				}
				edges[i] = edge
			}
			result[cf.Alias] = edges
		case "pageInfo":
			info := make(map[string]any)
			for _, pf := range r.collect(cf.Selections, pageInfoType) {
				switch pf.Name {
				case "hasNextPage":
					info[pf.Alias] = int64(offset)+pageLen < totalCount
				case "hasPreviousPage":
					info[pf.Alias] = offset > 0
				case "startCursor":
					if pageLen > 0 {
						info[pf.Alias] = encodeCursor(offset)
					}
				case "endCursor":
					if pageLen > 0 {
						info[pf.Alias] = encodeCursor(offset + int(pageLen) - 1)
					}
				}
			}
			result[cf.Alias] = info
		}
	}
	return result, nil
}

func encodeCursor(offset int) string {
	return base64.StdEncoding.EncodeToString([]byte(cursorPrefix + strconv.Itoa(offset)))
}

func cursorOffset(cursor string) (int, error) {
	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("invalid cursor %q: %w", cursor, err)
	}
	s, ok := strings.CutPrefix(string(raw), cursorPrefix)
	if !ok {
		return 0, fmt.Errorf("invalid cursor %q", cursor)
	}
	offset, err := strconv.Atoi(s)
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("invalid cursor %q", cursor)
	}
	return offset, nil
}

func (r *request) resolveAggregate(n *node, f graphql.CollectedField) (any, error) {
	args := r.arguments(f)
	where, _ := args["where"].(map[string]any)

	env := newCypherEnv(r.principal())
	var b strings.Builder
	fmt.Fprintf(&b, "MATCH (this:%s)\n", n.name)
	preds, err := env.matchPredicates(n, "this", where, opAggregate)
	if err != nil {
		return nil, err
	}
	if len(preds) > 0 {
		fmt.Fprintf(&b, "WHERE %s\n", joinPredicates(preds, "AND"))
	}

	proj := &projection{}
	for _, af := range r.collect(f.Selections, n.name+"AggregateSelection") {
		if af.Name == "count" {
			proj.add(af.Alias, "count(this)")
			continue
		}
		p := n.property(af.Name)
		if p == nil {
			continue
		}
		selection := &projection{}
		prop := "this." + p.name
		for _, sf := range r.collect(af.Selections, p.scalar+"AggregateSelection") {
			switch sf.Name {
			case "min":
				selection.add(sf.Alias, "min("+prop+")")
			case "max":
				selection.add(sf.Alias, "max("+prop+")")
			case "average":
				selection.add(sf.Alias, "avg("+prop+")")
			case "sum":
				selection.add(sf.Alias, "sum("+prop+")")
			case "shortest":
				selection.add(sf.Alias, fmt.Sprintf("reduce(shortest = null, value IN collect(%s) | CASE WHEN shortest IS NULL OR size(value) < size(shortest) THEN value ELSE shortest END)", prop))
			case "longest":
				selection.add(sf.Alias, fmt.Sprintf("reduce(longest = null, value IN collect(%s) | CASE WHEN longest IS NULL OR size(value) > size(longest) THEN value ELSE longest END)", prop))
			}
		}
		proj.add(af.Alias, selection.mapLiteral())
	}
	pred, err := env.validatePredicate(n, "this", stageBefore, opAggregate)
	if err != nil {
		return nil, err
	}
	if pred != "" {
		proj.add(authorizedKey, fmt.Sprintf("all(authorized IN collect(%s) WHERE authorized)", pred))
	}
	fmt.Fprintf(&b, "RETURN %s AS this", proj.mapLiteral())
	stmt := env.statement(b.String())

	var result any
	if _, err := r.transact(AccessModeRead, func(ctx context.Context, tx Transaction) error {
		res, err := tx.Run(ctx, stmt)
		if err != nil {
			return err
		}
		result = nil
		if len(res.Records) > 0 {
			result = res.Records[0]["this"]
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to aggregate %s: %w", n.plural, err)
	}
	if err := checkAuthorized(result); err != nil {
		return nil, err
	}
	return result, nil
}

func column(records []map[string]any, key string) []any {
	out := make([]any, 0, len(records))
	for _, rec := range records {
		out = append(out, rec[key])
	}
	return out
}

// checkAuthorized fails when a projected node was rejected by a validate rule.
func checkAuthorized(value any) error {
	switch v := value.(type) {
	case map[string]any:
		if authorized, ok := v[authorizedKey]; ok && authorized != true {
			return ErrForbidden
		}
		for _, item := range v {
			if err := checkAuthorized(item); err != nil {
				return err
			}
		}
	case []any:
		for _, item := range v {
			if err := checkAuthorized(item); err != nil {
				return err
			}
		}
	}
	return nil
}
