package neo4jgraphql

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/99designs/gqlgen/graphql"
)

// Keys projected next to selected fields. Neither is a valid GraphQL name, so they
// never collide with an alias.
const (
	authorizedKey = "@authorized"
	elementIDKey  = "@id"
)

// cypherEnv allocates parameters and variables while a statement is written.
type cypherEnv struct {
	params    map[string]any
	nextParam int
	nextVar   int
	principal *principal
}

func newCypherEnv(p *principal) *cypherEnv {
	return &cypherEnv{
		params:    make(map[string]any),
		principal: p,
	}
}

func (env *cypherEnv) param(value any) string {
	name := "param" + strconv.Itoa(env.nextParam)
	env.nextParam++
	env.params[name] = value
	return "$" + name
}

func (env *cypherEnv) variable() string {
	return env.named("this")
}

func (env *cypherEnv) named(prefix string) string {
	name := prefix + strconv.Itoa(env.nextVar)
	env.nextVar++
	return name
}

func (env *cypherEnv) statement(cypher string) Statement {
	return Statement{Cypher: cypher, Params: env.params}
}

// projection of a selection set onto a node variable.
type projection struct {
	subqueries []string
	entries    []string
}

func (p *projection) add(key, expr string) {
	p.entries = append(p.entries, fmt.Sprintf("%s: %s", mapKey(key), expr))
}

func (p *projection) mapLiteral() string {
	if len(p.entries) == 0 {
		return "{}"
	}
	return "{ " + strings.Join(p.entries, ", ") + " }"
}

func mapKey(key string) string {
	if strings.HasPrefix(key, "@") {
		return "`" + key + "`"
	}
	return key
}

// project the selected fields of node n bound to v. Relationship fields become CALL
// subqueries which must be written before the map literal is used.
func (r *request) project(env *cypherEnv, n *node, v string, fields []graphql.CollectedField) (*projection, error) {
	proj := &projection{}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Name == "__typename" || seen[f.Alias] {
			continue
		}
		seen[f.Alias] = true
		if p := n.property(f.Name); p != nil {
			proj.add(f.Alias, v+"."+p.name)
			continue
		}
		rel := n.relationship(f.Name)
		if rel == nil {
			return nil, fmt.Errorf("cannot project %s.%s", n.name, f.Name)
		}
		subquery, variable, err := r.projectRelationship(env, rel, v, f)
		if err != nil {
			return nil, err
		}
		proj.subqueries = append(proj.subqueries, subquery)
		proj.add(f.Alias, variable)
	}

	pred, err := env.validatePredicate(n, v, stageBefore, opRead)
	if err != nil {
		return nil, err
	}
	if pred != "" {
		proj.add(authorizedKey, pred)
	}
	return proj, nil
}

func (r *request) projectRelationship(env *cypherEnv, rel *relationship, v string, f graphql.CollectedField) (string, string, error) {
	args := r.arguments(f)
	target := env.variable()
	variable := env.named("var")

	var b strings.Builder
	b.WriteString("CALL {\n")
	fmt.Fprintf(&b, "WITH %s\n", v)
	fmt.Fprintf(&b, "MATCH %s\n", rel.pattern(v, target))

	where, _ := args["where"].(map[string]any)
	preds, err := env.matchPredicates(rel.target, target, where, opRead)
	if err != nil {
		return "", "", err
	}
	if len(preds) > 0 {
		fmt.Fprintf(&b, "WHERE %s\n", joinPredicates(preds, "AND"))
	}
	if rel.list {
		options, _ := args["options"].(map[string]any)
		if page := env.page(target, options); page != "" {
			b.WriteString(page)
		}
	}

	nested, err := r.project(env, rel.target, target, r.collect(f.Selections, rel.target.name))
	if err != nil {
		return "", "", err
	}
	for _, sub := range nested.subqueries {
		b.WriteString(sub)
	}
	fmt.Fprintf(&b, "WITH %s AS %s\n", nested.mapLiteral(), target)
	if rel.list {
		fmt.Fprintf(&b, "RETURN collect(%s) AS %s\n", target, variable)
	} else {
		fmt.Fprintf(&b, "RETURN head(collect(%s)) AS %s\n", target, variable)
	}
	b.WriteString("}\n")
	return b.String(), variable, nil
}

// matchPredicates combines a where input with the filter rules of the provided operations.
func (env *cypherEnv) matchPredicates(n *node, v string, where map[string]any, ops ...operation) ([]string, error) {
	var preds []string
	if where != nil {
		pred, err := env.where(n, v, where)
		if err != nil {
			return nil, err
		}
		if pred != "" {
			preds = append(preds, pred)
		}
	}
	filter, err := env.filterPredicate(n, v, ops...)
	if err != nil {
		return nil, err
	}
	if filter != "" {
		preds = append(preds, filter)
	}
	return preds, nil
}

// page writes a WITH clause ordering and paginating v, or nothing without options.
func (env *cypherEnv) page(v string, options map[string]any) string {
	order := env.orderBy(v, options["sort"])
	var b strings.Builder
	if order != "" {
		fmt.Fprintf(&b, " ORDER BY %s", order)
	}
	if offset, ok := options["offset"]; ok && offset != nil {
		fmt.Fprintf(&b, " SKIP %s", env.param(offset))
	}
	if limit, ok := options["limit"]; ok && limit != nil {
		fmt.Fprintf(&b, " LIMIT %s", env.param(limit))
	}
	if b.Len() == 0 {
		return ""
	}
	return "WITH " + v + b.String() + "\n"
}

func (env *cypherEnv) orderBy(v string, sort any) string {
	items, _ := sort.([]any)
	var terms []string
	for _, item := range items {
		m, _ := item.(map[string]any)
		for _, field := range sortedKeys(m) {
			direction, _ := m[field].(string)
			if direction != "DESC" {
				direction = "ASC"
			}
			terms = append(terms, fmt.Sprintf("%s.%s %s", v, field, direction))
		}
	}
	return strings.Join(terms, ", ")
}

// normalize converts decoded variables into values the database accepts.
func normalize(value any) any {
	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		f, _ := v.Float64()
		return f
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalize(item)
		}
		return out
	}
	return value
}
