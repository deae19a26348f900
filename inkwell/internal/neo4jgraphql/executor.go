package neo4jgraphql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// Schema is the executable GraphQL schema derived from type definitions.
type Schema struct {
	sdl       string
	schema    *ast.Schema
	roots     map[string]rootField
	db        Database
	tokenFunc func(context.Context) (string, bool)
	verifier  *tokenVerifier
	debug     bool
	logger    *slog.Logger
}

var _ graphql.ExecutableSchema = (*Schema)(nil)

// Schema returns the validated schema AST.
func (s *Schema) Schema() *ast.Schema {
	return s.schema
}

// SDL of the derived API.
func (s *Schema) SDL() string {
	return s.sdl
}

// Complexity is not limited per field.
func (s *Schema) Complexity(ctx context.Context, typeName, field string, childComplexity int, args map[string]any) (int, bool) {
	return 0, false
}

// Exec resolves the operation of the request context.
func (s *Schema) Exec(ctx context.Context) graphql.ResponseHandler {
	opCtx := graphql.GetOperationContext(ctx)
	r := &request{
		ctx:    ctx,
		schema: s,
		op:     opCtx,
	}
	return graphql.OneShot(r.run())
}

// request holds the state of one operation.
type request struct {
	ctx    context.Context
	schema *Schema
	op     *graphql.OperationContext
	caller *principal
	errors gqlerror.List
}

func (r *request) run() *graphql.Response {
	var root *ast.Definition
	switch r.op.Operation.Operation {
	case ast.Query:
		root = r.schema.schema.Query
	case ast.Mutation:
		root = r.schema.schema.Mutation
	default:
		return graphql.ErrorResponse(r.ctx, "%s operations are not supported", r.op.Operation.Operation)
	}

	fields := r.collect(r.op.Operation.SelectionSet, root.Name)
	data := newObject(len(fields))
	failed := false
	for _, f := range fields {
		value, ok := r.resolveRootField(root, f)
		if !ok {
			failed = true
			continue
		}
		data.set(f.Alias, value)
	}

	resp := &graphql.Response{Errors: r.errors}
	if failed {
		resp.Data = json.RawMessage("null")
		return resp
	}
	b, err := json.Marshal(data)
	if err != nil {
		return graphql.ErrorResponse(r.ctx, "failed to encode response: %v", err)
	}
	resp.Data = b
	return resp
}

func (r *request) resolveRootField(root *ast.Definition, f graphql.CollectedField) (any, bool) {
	path := ast.Path{ast.PathName(f.Alias)}
	typ := fieldType(root, f)
	var value any
	var err error
	switch f.Name {
	case "__typename":
		return root.Name, true
	case "__schema":
		value, err = r.introspectSchema(f)
	case "__type":
		value, err = r.introspectTypeByName(f)
	default:
		rf, ok := r.schema.roots[rootKey(root.Name, f.Name)]
		if !ok {
			err = fmt.Errorf("no resolver for %s.%s", root.Name, f.Name)
			break
		}
		value, err = r.resolve(rf, f)
	}
	if err != nil {
		r.errors = append(r.errors, toGQLError(err, path))
		return nil, !typ.NonNull
	}
	return r.complete(typ, value, f.Selections, path)
}

func (r *request) resolve(rf rootField, f graphql.CollectedField) (any, error) {
	value, err := r.resolveKind(rf, f)
	if errors.Is(err, ErrForbidden) && r.caller != nil && r.caller.missingAuthentication {
		return nil, ErrUnauthenticated
	}
	return value, err
}

func (r *request) resolveKind(rf rootField, f graphql.CollectedField) (any, error) {
	switch rf.kind {
	case rootRead:
		return r.resolveRead(rf.node, f)
	case rootConnection:
		return r.resolveConnection(rf.node, f)
	case rootAggregate:
		return r.resolveAggregate(rf.node, f)
	case rootCreate:
		return r.resolveCreate(rf.node, f)
	case rootUpdate:
		return r.resolveUpdate(rf.node, f)
	case rootDelete:
		return r.resolveDelete(rf.node, f)
	}
	return nil, fmt.Errorf("unknown operation for field %s", f.Name)
}

// principal of the request, established on first use.
func (r *request) principal() *principal {
	if r.caller != nil {
		return r.caller
	}
	r.caller = &principal{}
	if r.schema.verifier != nil {
		raw, ok := r.schema.tokenFunc(r.ctx)
		r.caller = r.schema.verifier.principal(r.ctx, raw, ok)
	}
	return r.caller
}

// transact runs work in a managed transaction of the provided mode.
func (r *request) transact(mode AccessMode, work func(ctx context.Context, tx Transaction) error) (string, error) {
	return r.schema.db.Execute(r.ctx, mode, func(ctx context.Context, tx Transaction) error {
		if r.schema.debug {
			tx = loggingTx{Transaction: tx, logger: r.schema.logger}
		}
		return work(ctx, tx)
	})
}

func (r *request) collect(sel ast.SelectionSet, typeName string) []graphql.CollectedField {
	return graphql.CollectFields(r.op, sel, []string{typeName})
}

func (r *request) arguments(f graphql.CollectedField) map[string]any {
	args, _ := normalize(f.ArgumentMap(r.op.Variables)).(map[string]any)
	return args
}

func fieldType(parent *ast.Definition, f graphql.CollectedField) *ast.Type {
	if f.Definition != nil {
		return f.Definition.Type
	}
	if def := parent.Fields.ForName(f.Name); def != nil {
		return def.Type
	}
	switch f.Name {
	case "__schema":
		return ast.NonNullNamedType("__Schema", nil)
	case "__type":
		return ast.NamedType("__Type", nil)
	}
	return ast.NonNullNamedType(stringType, nil)
}

// complete shapes a resolved value to the selection. The boolean is false when a
// null reached a non-null position and must propagate to the parent.
func (r *request) complete(t *ast.Type, value any, sel ast.SelectionSet, path ast.Path) (any, bool) {
	if value == nil {
		if t.NonNull {
			r.errors = append(r.errors, &gqlerror.Error{
				Message: "Cannot return null for non-nullable field",
				Path:    path,
			})
			return nil, false
		}
		return nil, true
	}

	if t.Elem != nil {
		items, ok := value.([]any)
		if !ok {
			return r.invalid(t, path, fmt.Errorf("expected a list, found %T", value))
		}
		out := make([]any, len(items))
		for i, item := range items {
			v, ok := r.complete(t.Elem, item, sel, extend(path, ast.PathIndex(i)))
			if !ok {
				return nil, !t.NonNull
			}
			out[i] = v
		}
		return out, true
	}

	def := r.schema.schema.Types[t.NamedType]
	if def == nil {
		return r.invalid(t, path, fmt.Errorf("unknown type %s", t.NamedType))
	}
	switch def.Kind {
	case ast.Object:
		m, ok := value.(map[string]any)
		if !ok {
			return r.invalid(t, path, fmt.Errorf("expected an object, found %T", value))
		}
		fields := r.collect(sel, def.Name)
		obj := newObject(len(fields))
		for _, f := range fields {
			if f.Name == "__typename" {
				obj.set(f.Alias, def.Name)
				continue
			}
			v, ok := r.complete(fieldType(def, f), m[f.Alias], f.Selections, extend(path, ast.PathName(f.Alias)))
			if !ok {
				return nil, !t.NonNull
			}
			obj.set(f.Alias, v)
		}
		return obj, true
	case ast.Enum:
		s, ok := value.(string)
		if !ok || def.EnumValues.ForName(s) == nil {
			return r.invalid(t, path, fmt.Errorf("%v is not a value of enum %s", value, def.Name))
		}
		return s, true
	}

	v, err := serializeScalar(def.Name, value)
	if err != nil {
		return r.invalid(t, path, err)
	}
	return v, true
}

func (r *request) invalid(t *ast.Type, path ast.Path, err error) (any, bool) {
	r.errors = append(r.errors, toGQLError(err, path))
	return nil, !t.NonNull
}

func extend(path ast.Path, elem ast.PathElement) ast.Path {
	out := make(ast.Path, len(path), len(path)+1)
	copy(out, path)
	return append(out, elem)
}

func serializeScalar(name string, value any) (any, error) {
	switch name {
	case intType:
		// Int is a signed 32-bit integer
		if i, ok := toInt64(value); ok && i >= math.MinInt32 && i <= math.MaxInt32 {
			return i, nil
		}
		return nil, fmt.Errorf("Int cannot represent value: %v", value)
	case floatType:
		switch v := value.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		}
		if i, ok := toInt64(value); ok {
			return float64(i), nil
		}
		return nil, fmt.Errorf("Float cannot represent value: %v", value)
	case stringType:
		if s, ok := value.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("String cannot represent value: %v", value)
	case idType:
		if s, ok := value.(string); ok {
			return s, nil
		}
		if i, ok := toInt64(value); ok {
			return strconv.FormatInt(i, 10), nil
		}
		return nil, fmt.Errorf("ID cannot represent value: %v", value)
	case booleanType:
		if b, ok := value.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("Boolean cannot represent value: %v", value)
	}
	return value, nil
}

func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return int64(v), true
		}
	case json.Number:
		i, err := v.Int64()
		return i, err == nil
	}
	return 0, false
}
