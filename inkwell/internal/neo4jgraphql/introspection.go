package neo4jgraphql

import (
	"errors"

	"github.com/99designs/gqlgen/graphql"
	"github.com/99designs/gqlgen/graphql/introspection"
	"github.com/vektah/gqlparser/v2/ast"
)

var errIntrospectionDisabled = errors.New("introspection disabled")

func (r *request) introspectSchema(f graphql.CollectedField) (any, error) {
	if r.op.DisableIntrospection {
		return nil, errIntrospectionDisabled
	}
	sch := introspection.WrapSchema(r.schema.schema)
	out := make(map[string]any)
	for _, sf := range r.collect(f.Selections, "__Schema") {
		switch sf.Name {
		case "description":
			out[sf.Alias] = nullable(sch.Description())
		case "types":
			types := sch.Types()
			list := make([]any, 0, len(types))
			for i := range types {
				list = append(list, r.typeObject(&types[i], sf))
			}
			out[sf.Alias] = list
		case "queryType":
			out[sf.Alias] = r.typeObject(sch.QueryType(), sf)
		case "mutationType":
			out[sf.Alias] = r.typeObject(sch.MutationType(), sf)
		case "subscriptionType":
			out[sf.Alias] = r.typeObject(sch.SubscriptionType(), sf)
		case "directives":
			directives := sch.Directives()
			list := make([]any, 0, len(directives))
			for i := range directives {
				list = append(list, r.directiveObject(&directives[i], sf))
			}
			out[sf.Alias] = list
		}
	}
	return out, nil
}

func (r *request) introspectTypeByName(f graphql.CollectedField) (any, error) {
	if r.op.DisableIntrospection {
		return nil, errIntrospectionDisabled
	}
	name, _ := r.arguments(f)["name"].(string)
	return r.typeObject(introspection.WrapTypeFromDef(r.schema.schema, r.schema.schema.Types[name]), f), nil
}

// typeObject resolves a __Type selection. List and non-null wrappers only carry kind and ofType.
func (r *request) typeObject(t *introspection.Type, f graphql.CollectedField) any {
	if t == nil {
		return nil
	}
	kind := ast.DefinitionKind(t.Kind())
	out := make(map[string]any)
	for _, tf := range r.collect(f.Selections, "__Type") {
		switch tf.Name {
		case "kind":
			out[tf.Alias] = string(kind)
		case "name":
			out[tf.Alias] = nullable(t.Name())
		case "description":
			out[tf.Alias] = nullable(t.Description())
		case "ofType":
			out[tf.Alias] = r.typeObject(t.OfType(), tf)
		case "fields":
			if kind != ast.Object && kind != ast.Interface {
				out[tf.Alias] = nil
				continue
			}
			includeDeprecated, _ := r.arguments(tf)["includeDeprecated"].(bool)
			fields := t.Fields(includeDeprecated)
			list := make([]any, 0, len(fields))
			for i := range fields {
				list = append(list, r.fieldObject(&fields[i], tf))
			}
			out[tf.Alias] = list
		case "interfaces":
			if kind != ast.Object && kind != ast.Interface {
				out[tf.Alias] = nil
				continue
			}
			out[tf.Alias] = r.typeList(t.Interfaces(), tf)
		case "possibleTypes":
			if kind != ast.Interface && kind != ast.Union {
				out[tf.Alias] = nil
				continue
			}
			out[tf.Alias] = r.typeList(t.PossibleTypes(), tf)
		case "enumValues":
			if kind != ast.Enum {
				out[tf.Alias] = nil
				continue
			}
			includeDeprecated, _ := r.arguments(tf)["includeDeprecated"].(bool)
			values := t.EnumValues(includeDeprecated)
			list := make([]any, 0, len(values))
			for i := range values {
				list = append(list, r.enumValueObject(&values[i], tf))
			}
			out[tf.Alias] = list
		case "inputFields":
			if kind != ast.InputObject {
				out[tf.Alias] = nil
				continue
			}
			out[tf.Alias] = r.inputValueList(t.InputFields(), tf)
		case "specifiedByURL":
			out[tf.Alias] = nullable(t.SpecifiedByURL())
		case "isOneOf":
			if kind != ast.InputObject {
				out[tf.Alias] = nil
				continue
			}
			out[tf.Alias] = t.IsOneOf()
		}
	}
	return out
}

func (r *request) typeList(types []introspection.Type, f graphql.CollectedField) []any {
	list := make([]any, 0, len(types))
	for i := range types {
		list = append(list, r.typeObject(&types[i], f))
	}
	return list
}

func (r *request) fieldObject(fld *introspection.Field, f graphql.CollectedField) any {
	out := make(map[string]any)
	for _, ff := range r.collect(f.Selections, "__Field") {
		switch ff.Name {
		case "name":
			out[ff.Alias] = fld.Name
		case "description":
			out[ff.Alias] = nullable(fld.Description())
		case "args":
			out[ff.Alias] = r.inputValueList(fld.Args, ff)
		case "type":
			out[ff.Alias] = r.typeObject(fld.Type, ff)
		case "isDeprecated":
			out[ff.Alias] = fld.IsDeprecated()
		case "deprecationReason":
			out[ff.Alias] = nullable(fld.DeprecationReason())
		}
	}
	return out
}

func (r *request) inputValueList(values []introspection.InputValue, f graphql.CollectedField) []any {
	list := make([]any, 0, len(values))
	for i := range values {
		list = append(list, r.inputValueObject(&values[i], f))
	}
	return list
}

func (r *request) inputValueObject(v *introspection.InputValue, f graphql.CollectedField) any {
	out := make(map[string]any)
	for _, vf := range r.collect(f.Selections, "__InputValue") {
		switch vf.Name {
		case "name":
			out[vf.Alias] = v.Name
		case "description":
			out[vf.Alias] = nullable(v.Description())
		case "type":
			out[vf.Alias] = r.typeObject(v.Type, vf)
		case "defaultValue":
			out[vf.Alias] = nullable(v.DefaultValue)
		case "isDeprecated":
			out[vf.Alias] = v.IsDeprecated()
		case "deprecationReason":
			out[vf.Alias] = nullable(v.DeprecationReason())
		}
	}
	return out
}

func (r *request) enumValueObject(ev *introspection.EnumValue, f graphql.CollectedField) any {
	out := make(map[string]any)
	for _, vf := range r.collect(f.Selections, "__EnumValue") {
		switch vf.Name {
		case "name":
			out[vf.Alias] = ev.Name
		case "description":
			out[vf.Alias] = nullable(ev.Description())
		case "isDeprecated":
			out[vf.Alias] = ev.IsDeprecated()
		case "deprecationReason":
			out[vf.Alias] = nullable(ev.DeprecationReason())
		}
	}
	return out
}

func (r *request) directiveObject(d *introspection.Directive, f graphql.CollectedField) any {
	out := make(map[string]any)
	for _, df := range r.collect(f.Selections, "__Directive") {
		switch df.Name {
		case "name":
			out[df.Alias] = d.Name
		case "description":
			out[df.Alias] = nullable(d.Description())
		case "locations":
			locations := make([]any, 0, len(d.Locations))
			for _, loc := range d.Locations {
				locations = append(locations, loc)
			}
			out[df.Alias] = locations
		case "args":
			out[df.Alias] = r.inputValueList(d.Args, df)
		case "isRepeatable":
			out[df.Alias] = d.IsRepeatable
		}
	}
	return out
}

// nullable unwraps an optional introspection string into a JSON null or value.
func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
