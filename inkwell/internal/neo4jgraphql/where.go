package neo4jgraphql

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Operators appended to property names in where inputs, longest first so that
// suffix matching never stops at a shorter operator.
var propertyOperators = []string{
	"_NOT_STARTS_WITH",
	"_NOT_ENDS_WITH",
	"_NOT_CONTAINS",
	"_NOT_INCLUDES",
	"_STARTS_WITH",
	"_ENDS_WITH",
	"_CONTAINS",
	"_INCLUDES",
	"_NOT_IN",
	"_NOT",
	"_LTE",
	"_GTE",
	"_IN",
	"_LT",
	"_GT",
}

// Operators appended to relationship names in where inputs.
var relationshipOperators = []string{
	"_SINGLE",
	"_SOME",
	"_NONE",
	"_ALL",
	"_NOT",
}

// missingClaim replaces "$jwt." references the caller's token does not carry.
// Any comparison against it is false.
type missingClaim struct{}

// where translates a where input on node variable v into a Cypher predicate.
// An empty result means the input places no constraint.
func (env *cypherEnv) where(n *node, v string, where map[string]any) (string, error) {
	var preds []string
	for _, key := range sortedKeys(where) {
		pred, err := env.whereKey(n, v, key, where[key])
		if err != nil {
			return "", err
		}
		if pred != "" {
			preds = append(preds, pred)
		}
	}
	return joinPredicates(preds, "AND"), nil
}

func (env *cypherEnv) whereKey(n *node, v, key string, value any) (string, error) {
	switch key {
	case "AND", "OR":
		items, ok := value.([]any)
		if !ok {
			return "", fmt.Errorf("%s.%s must be a list", n.name, key)
		}
		var preds []string
		for _, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				return "", fmt.Errorf("%s.%s must be a list of %sWhere", n.name, key, n.name)
			}
			pred, err := env.where(n, v, m)
			if err != nil {
				return "", err
			}
			if pred == "" {
				pred = "true"
			}
			preds = append(preds, pred)
		}
		if len(preds) == 0 {
			return "", nil
		}
		return "(" + joinPredicates(preds, key) + ")", nil
	case "NOT":
		if value == nil {
			return "", nil
		}
		m, ok := value.(map[string]any)
		if !ok {
			return "", fmt.Errorf("%s.NOT must be a %sWhere", n.name, n.name)
		}
		pred, err := env.where(n, v, m)
		if err != nil || pred == "" {
			return "", err
		}
		return "NOT (" + pred + ")", nil
	}

	if p := n.property(key); p != nil {
		return env.propertyPredicate(p, v, "", value)
	}
	if r := n.relationship(key); r != nil {
		return env.relationshipPredicate(r, v, "", value)
	}
	if name, ok := strings.CutSuffix(key, "Aggregate"); ok {
		if r := n.relationship(name); r != nil {
			return env.aggregatePredicate(r, v, value)
		}
	}
	for _, op := range propertyOperators {
		if name, ok := strings.CutSuffix(key, op); ok {
			if p := n.property(name); p != nil {
				return env.propertyPredicate(p, v, op, value)
			}
		}
	}
	for _, op := range relationshipOperators {
		if name, ok := strings.CutSuffix(key, op); ok {
			if r := n.relationship(name); r != nil {
				return env.relationshipPredicate(r, v, op, value)
			}
		}
	}
	return "", fmt.Errorf("unknown filter %s.%s", n.name, key)
}

func (env *cypherEnv) propertyPredicate(p *property, v, op string, value any) (string, error) {
	if !validPropertyOperator(p, op) {
		return "", fmt.Errorf("filter %s%s is not supported on %s", p.name, op, p.typ.String())
	}
	if _, ok := value.(missingClaim); ok {
		return "false", nil
	}
	if list, ok := value.([]any); ok {
		for _, item := range list {
			if _, missing := item.(missingClaim); missing {
				return "false", nil
			}
		}
	}

	prop := v + "." + p.name
	negate := strings.HasPrefix(op, "_NOT")
	if negate {
		op = strings.TrimPrefix(op, "_NOT")
	}
	if value == nil && (op == "" || op == "_IN" || op == "_INCLUDES") {
		if op != "" {
			return "", fmt.Errorf("filter %s%s does not accept null", p.name, op)
		}
		if negate {
			return prop + " IS NOT NULL", nil
		}
		return prop + " IS NULL", nil
	}

	var pred string
	switch op {
	case "":
		pred = fmt.Sprintf("%s = %s", prop, env.param(coerceProperty(p, value)))
	case "_IN":
		pred = fmt.Sprintf("%s IN %s", prop, env.param(coerceElements(p, value)))
	case "_INCLUDES":
		pred = fmt.Sprintf("%s IN %s", env.param(coerceElement(p, value)), prop)
	case "_CONTAINS":
		pred = fmt.Sprintf("%s CONTAINS %s", prop, env.param(coerceProperty(p, value)))
	case "_STARTS_WITH":
		pred = fmt.Sprintf("%s STARTS WITH %s", prop, env.param(coerceProperty(p, value)))
	case "_ENDS_WITH":
		pred = fmt.Sprintf("%s ENDS WITH %s", prop, env.param(coerceProperty(p, value)))
	case "_LT":
		pred = fmt.Sprintf("%s < %s", prop, env.param(value))
	case "_LTE":
		pred = fmt.Sprintf("%s <= %s", prop, env.param(value))
	case "_GT":
		pred = fmt.Sprintf("%s > %s", prop, env.param(value))
	case "_GTE":
		pred = fmt.Sprintf("%s >= %s", prop, env.param(value))
	}
	if negate {
		return "NOT (" + pred + ")", nil
	}
	return pred, nil
}

func validPropertyOperator(p *property, op string) bool {
	switch op {
	case "", "_NOT", "_IN", "_NOT_IN":
		return !p.list || op == "" || op == "_NOT"
	case "_INCLUDES", "_NOT_INCLUDES":
		return p.list
	case "_CONTAINS", "_NOT_CONTAINS", "_STARTS_WITH", "_NOT_STARTS_WITH", "_ENDS_WITH", "_NOT_ENDS_WITH":
		return p.textual()
	case "_LT", "_LTE", "_GT", "_GTE":
		return p.numeric()
	}
	return false
}

func (env *cypherEnv) relationshipPredicate(r *relationship, v, op string, value any) (string, error) {
	if op != "" && op != "_NOT" && !r.list {
		return "", fmt.Errorf("filter %s%s is only supported on list relationships", r.name, op)
	}
	target := env.variable()
	pattern := r.pattern(v, target)
	if value == nil {
		switch op {
		case "":
			return fmt.Sprintf("NOT EXISTS { MATCH %s }", pattern), nil
		case "_NOT":
			return fmt.Sprintf("EXISTS { MATCH %s }", pattern), nil
		}
		return "", fmt.Errorf("filter %s%s does not accept null", r.name, op)
	}
	m, ok := value.(map[string]any)
	if !ok {
		return "", fmt.Errorf("filter %s%s must be a %sWhere", r.name, op, r.target.name)
	}
	inner, err := env.where(r.target, target, m)
	if err != nil {
		return "", err
	}

	exists := func(pred string) string {
		if pred == "" {
			return fmt.Sprintf("EXISTS { MATCH %s }", pattern)
		}
		return fmt.Sprintf("EXISTS { MATCH %s WHERE %s }", pattern, pred)
	}
	switch op {
	case "", "_SOME":
		return exists(inner), nil
	case "_NOT", "_NONE":
		return "NOT " + exists(inner), nil
	case "_ALL":
		if inner == "" {
			return "", nil
		}
		return fmt.Sprintf("(%s AND NOT %s)", exists(""), exists("NOT ("+inner+")")), nil
	case "_SINGLE":
		if inner == "" {
			return fmt.Sprintf("size([%s | 1]) = 1", pattern), nil
		}
		return fmt.Sprintf("size([%s WHERE %s | 1]) = 1", pattern, inner), nil
	}
	return "", fmt.Errorf("unknown relationship filter %s%s", r.name, op)
}

// Count comparisons accepted by relationship aggregation filters.
var countOperators = map[string]string{
	"count":     "=",
	"count_LT":  "<",
	"count_LTE": "<=",
	"count_GT":  ">",
	"count_GTE": ">=",
}

func (env *cypherEnv) aggregatePredicate(r *relationship, v string, value any) (string, error) {
	m, ok := value.(map[string]any)
	if !ok {
		return "", fmt.Errorf("filter %sAggregate must be an object", r.name)
	}
	count := fmt.Sprintf("size([%s | 1])", r.pattern(v, env.variable()))

	var preds []string
	for _, key := range sortedKeys(m) {
		switch key {
		case "AND", "OR":
			items, _ := m[key].([]any)
			var group []string
			for _, item := range items {
				pred, err := env.aggregatePredicate(r, v, item)
				if err != nil {
					return "", err
				}
				if pred == "" {
					pred = "true"
				}
				group = append(group, pred)
			}
			if len(group) > 0 {
				preds = append(preds, "("+joinPredicates(group, key)+")")
			}
		case "NOT":
			pred, err := env.aggregatePredicate(r, v, m[key])
			if err != nil {
				return "", err
			}
			if pred != "" {
				preds = append(preds, "NOT ("+pred+")")
			}
		default:
			cmp, ok := countOperators[key]
			if !ok {
				return "", fmt.Errorf("unknown aggregation filter %sAggregate.%s", r.name, key)
			}
			preds = append(preds, fmt.Sprintf("%s %s %s", count, cmp, env.param(m[key])))
		}
	}
	return joinPredicates(preds, "AND"), nil
}

func joinPredicates(preds []string, op string) string {
	return strings.Join(preds, " "+op+" ")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// coerceProperty converts input values to the representation stored for p.
// ID values are always stored as strings.
func coerceProperty(p *property, value any) any {
	if p.list {
		return coerceElements(p, value)
	}
	return coerceElement(p, value)
}

func coerceElements(p *property, value any) any {
	list, ok := value.([]any)
	if !ok {
		return value
	}
	out := make([]any, len(list))
	for i, item := range list {
		out[i] = coerceElement(p, item)
	}
	return out
}

func coerceElement(p *property, value any) any {
	if p.scalar != idType {
		return value
	}
	switch v := value.(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return value
}
