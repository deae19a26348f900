package neo4jgraphql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

// operation an authorization rule may apply to.
type operation string

const (
	opRead               operation = "READ"
	opAggregate          operation = "AGGREGATE"
	opCreate             operation = "CREATE"
	opUpdate             operation = "UPDATE"
	opDelete             operation = "DELETE"
	opCreateRelationship operation = "CREATE_RELATIONSHIP"
	opDeleteRelationship operation = "DELETE_RELATIONSHIP"
)

// stage of a write at which a validate rule is checked.
type stage string

const (
	stageBefore stage = "BEFORE"
	stageAfter  stage = "AFTER"
)

var (
	filterOperations   = []operation{opRead, opAggregate, opUpdate, opDelete, opCreateRelationship, opDeleteRelationship}
	validateOperations = []operation{opRead, opAggregate, opCreate, opUpdate, opDelete, opCreateRelationship, opDeleteRelationship}
)

type authorizationRules struct {
	filter   []*authorizationRule
	validate []*authorizationRule
}

type authorizationRule struct {
	operations            []operation
	when                  []stage
	requireAuthentication bool
	node                  map[string]any
	jwt                   map[string]any
}

func (rule *authorizationRule) applies(st stage, ops []operation) bool {
	if st != "" && !slices.Contains(rule.when, st) {
		return false
	}
	for _, op := range ops {
		if slices.Contains(rule.operations, op) {
			return true
		}
	}
	return false
}

func parseAuthorizationRules(d *ast.Directive) (*authorizationRules, error) {
	rules := &authorizationRules{}
	if d == nil {
		return rules, nil
	}
	if arg := d.Arguments.ForName("filter"); arg != nil {
		v, err := arg.Value.Value(nil)
		if err != nil {
			return nil, fmt.Errorf("@authorization filter: %w", err)
		}
		if rules.filter, err = parseRuleList(v, filterOperations, false); err != nil {
			return nil, fmt.Errorf("@authorization filter: %w", err)
		}
	}
	if arg := d.Arguments.ForName("validate"); arg != nil {
		v, err := arg.Value.Value(nil)
		if err != nil {
			return nil, fmt.Errorf("@authorization validate: %w", err)
		}
		if rules.validate, err = parseRuleList(v, validateOperations, true); err != nil {
			return nil, fmt.Errorf("@authorization validate: %w", err)
		}
	}
	return rules, nil
}

func parseRuleList(value any, allowed []operation, validate bool) ([]*authorizationRule, error) {
	items, ok := value.([]any)
	if !ok {
		items = []any{value}
	}
	var rules []*authorizationRule
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("rule must be an object")
		}
		rule := &authorizationRule{
			operations:            allowed,
			when:                  []stage{stageBefore, stageAfter},
			requireAuthentication: true,
		}
		for key, v := range m {
			switch key {
			case "operations":
				ops, err := parseEnumList[operation](v)
				if err != nil {
					return nil, fmt.Errorf("operations: %w", err)
				}
				for _, op := range ops {
					if !slices.Contains(allowed, op) {
						return nil, fmt.Errorf("operation %s is not supported here", op)
					}
				}
				rule.operations = ops
			case "when":
				if !validate {
					return nil, fmt.Errorf("when is only supported on validate rules")
				}
				stages, err := parseEnumList[stage](v)
				if err != nil {
					return nil, fmt.Errorf("when: %w", err)
				}
				for _, st := range stages {
					if st != stageBefore && st != stageAfter {
						return nil, fmt.Errorf("unknown stage %s", st)
					}
				}
				rule.when = stages
			case "requireAuthentication":
				b, ok := v.(bool)
				if !ok {
					return nil, fmt.Errorf("requireAuthentication must be a boolean")
				}
				rule.requireAuthentication = b
			case "where":
				where, ok := v.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("where must be an object")
				}
				for k, w := range where {
					cond, ok := w.(map[string]any)
					if !ok {
						return nil, fmt.Errorf("where.%s must be an object", k)
					}
					switch k {
					case "node":
						rule.node = cond
					case "jwt":
						rule.jwt = cond
					default:
						return nil, fmt.Errorf("unknown where key %q", k)
					}
				}
			default:
				return nil, fmt.Errorf("unknown key %q", key)
			}
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func parseEnumList[T ~string](v any) ([]T, error) {
	items, ok := v.([]any)
	if !ok {
		items = []any{v}
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("expected enum values, found %v", item)
		}
		out = append(out, T(s))
	}
	return out, nil
}

func (rules *authorizationRules) empty() bool {
	return rules == nil || len(rules.filter) == 0 && len(rules.validate) == 0
}

// check compiles every node condition against n with placeholder claims.
func (rules *authorizationRules) check(n *node) error {
	if rules.empty() {
		return nil
	}
	env := newCypherEnv(&principal{authenticated: true, claims: placeholderClaims{}})
	for _, rule := range append(slices.Clone(rules.filter), rules.validate...) {
		if rule.node == nil {
			continue
		}
		if _, err := env.where(n, "this", substituteClaims(rule.node, env.principal.claims).(map[string]any)); err != nil {
			return err
		}
	}
	return nil
}

// principal is the caller as established from the request token.
type principal struct {
	authenticated bool
	claims        claimSource

	// missingAuthentication is set once a rule requiring authentication rejected this caller.
	// Validation failures are then reported as Unauthenticated.
	missingAuthentication bool
}

type claimSource interface {
	claim(path string) (any, bool)
}

type mapClaims map[string]any

func (c mapClaims) claim(path string) (any, bool) {
	var cur any = map[string]any(c)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// placeholderClaims resolves every claim, used to check rules when the schema is built.
type placeholderClaims struct{}

func (placeholderClaims) claim(string) (any, bool) {
	return "placeholder", true
}

// substituteClaims replaces "$jwt.<claim>" strings with the caller's claim values.
func substituteClaims(value any, claims claimSource) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = substituteClaims(item, claims)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = substituteClaims(item, claims)
		}
		return out
	case string:
		path, ok := strings.CutPrefix(v, "$jwt.")
		if !ok {
			return v
		}
		if claims == nil {
			return missingClaim{}
		}
		claim, ok := claims.claim(path)
		if !ok || claim == nil {
			return missingClaim{}
		}
		return claim
	}
	return value
}

// matchClaims evaluates a rule's jwt condition.
func matchClaims(cond map[string]any, claims claimSource) bool {
	for _, key := range sortedKeys(cond) {
		want := cond[key]
		switch key {
		case "AND", "OR":
			items, _ := want.([]any)
			some, all := false, true
			for _, item := range items {
				m, _ := item.(map[string]any)
				if matchClaims(m, claims) {
					some = true
				} else {
					all = false
				}
			}
			if key == "AND" && !all || key == "OR" && !some {
				return false
			}
			continue
		case "NOT":
			m, _ := want.(map[string]any)
			if matchClaims(m, claims) {
				return false
			}
			continue
		}

		name, op := key, ""
		for _, suffix := range []string{"_INCLUDES", "_IN"} {
			if base, ok := strings.CutSuffix(key, suffix); ok {
				name, op = base, suffix
				break
			}
		}
		var got any
		var ok bool
		if claims != nil {
			got, ok = claims.claim(name)
		}
		if !ok {
			return false
		}
		switch op {
		case "":
			if !claimEqual(got, want) {
				return false
			}
		case "_IN":
			items, _ := want.([]any)
			if !slices.ContainsFunc(items, func(item any) bool { return claimEqual(got, item) }) {
				return false
			}
		case "_INCLUDES":
			items, _ := got.([]any)
			if !slices.ContainsFunc(items, func(item any) bool { return claimEqual(item, want) }) {
				return false
			}
		}
	}
	return true
}

func claimEqual(a, b any) bool {
	return fmt.Sprint(normalize(a)) == fmt.Sprint(normalize(b))
}

// filterPredicate ORs the filter rules of n applying to any of ops.
func (env *cypherEnv) filterPredicate(n *node, v string, ops ...operation) (string, error) {
	if n.rules.empty() {
		return "", nil
	}
	return env.rulePredicate(n, v, n.rules.filter, "", ops)
}

// validatePredicate ORs the validate rules of n applying to any of ops at stage st.
func (env *cypherEnv) validatePredicate(n *node, v string, st stage, ops ...operation) (string, error) {
	if n.rules.empty() {
		return "", nil
	}
	return env.rulePredicate(n, v, n.rules.validate, st, ops)
}

func (env *cypherEnv) rulePredicate(n *node, v string, rules []*authorizationRule, st stage, ops []operation) (string, error) {
	var preds []string
	for _, rule := range rules {
		if !rule.applies(st, ops) {
			continue
		}
		if rule.requireAuthentication && (env.principal == nil || !env.principal.authenticated) {
			// Nodes are rejected one by one, so an empty match is still a valid result.
			if env.principal != nil {
				env.principal.missingAuthentication = true
			}
			preds = append(preds, "false")
			continue
		}
		var claims claimSource
		if env.principal != nil {
			claims = env.principal.claims
		}
		if rule.jwt != nil && !matchClaims(rule.jwt, claims) {
			preds = append(preds, "false")
			continue
		}
		if rule.node == nil {
			preds = append(preds, "true")
			continue
		}
		pred, err := env.where(n, v, substituteClaims(rule.node, claims).(map[string]any))
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
	return "(" + joinPredicates(preds, "OR") + ")", nil
}

// tokenVerifier establishes principals from raw tokens, caching verified claims.
type tokenVerifier struct {
	key    []byte
	cache  *lru.Cache[string, jwt.MapClaims]
	logger *slog.Logger
}

var validSigningMethods = []string{
	jwt.SigningMethodHS256.Alg(),
	jwt.SigningMethodHS384.Alg(),
	jwt.SigningMethodHS512.Alg(),
}

func newTokenVerifier(key string, size int, logger *slog.Logger) (*tokenVerifier, error) {
	cache, err := lru.New[string, jwt.MapClaims](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create token cache: %w", err)
	}
	return &tokenVerifier{
		key:    []byte(key),
		cache:  cache,
		logger: logger,
	}, nil
}

// principal for the raw token; a leading "Bearer " is removed before verification.
// Missing or invalid tokens yield an unauthenticated principal.
func (v *tokenVerifier) principal(ctx context.Context, raw string, ok bool) *principal {
	token := strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
	if !ok || token == "" {
		return &principal{}
	}
	claims, err := v.verify(token)
	if err != nil {
		v.logger.DebugContext(ctx, "rejected authorization token", "err", err)
		return &principal{}
	}
	return &principal{authenticated: true, claims: mapClaims(claims)}
}

func (v *tokenVerifier) verify(token string) (jwt.MapClaims, error) {
	if claims, ok := v.cache.Get(token); ok {
		exp, err := claims.GetExpirationTime()
		if err == nil && (exp == nil || time.Now().Before(exp.Time)) {
			return claims, nil
		}
		v.cache.Remove(token)
		return nil, jwt.ErrTokenExpired
	}

	parsed, err := jwt.Parse(token, func(*jwt.Token) (any, error) {
		return v.key, nil
	}, jwt.WithValidMethods(validSigningMethods))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("unexpected claims type")
	}
	v.cache.Add(token, claims)
	return claims, nil
}
