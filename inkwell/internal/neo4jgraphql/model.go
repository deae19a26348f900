package neo4jgraphql

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

// directiveDefinitions declares the vocabulary type definitions may be annotated with.
const directiveDefinitions = `
directive @id on FIELD_DEFINITION
directive @unique(constraintName: String) on FIELD_DEFINITION
directive @relationship(type: String!, direction: RelationshipDirection!) on FIELD_DEFINITION
directive @plural(value: String!) on OBJECT
directive @authorization(filter: [AuthorizationRule!], validate: [AuthorizationRule!]) on OBJECT

enum RelationshipDirection {
  IN
  OUT
}

scalar AuthorizationRule
`

const typeDefsSource = "typedefs.graphql"

const (
	idDirective            = "id"
	uniqueDirective        = "unique"
	relationshipDirective  = "relationship"
	pluralDirective        = "plural"
	authorizationDirective = "authorization"
)

// Scalars node properties may be declared with.
const (
	idType      = "ID"
	stringType  = "String"
	intType     = "Int"
	floatType   = "Float"
	booleanType = "Boolean"
)

func isSupportedScalar(name string) bool {
	switch name {
	case idType, stringType, intType, floatType, booleanType:
		return true
	}
	return false
}

// model of the graph described by the type definitions.
type model struct {
	nodes  []*node
	byName map[string]*node
}

// node is an object type stored as nodes labelled with its name.
type node struct {
	name       string
	plural     string
	properties []*property
	rels       []*relationship
	rules      *authorizationRules
}

// pluralType is the upper camel plural used in type names, e.g. Posts.
func (n *node) pluralType() string {
	return upperFirst(n.plural)
}

func (n *node) property(name string) *property {
	for _, p := range n.properties {
		if p.name == name {
			return p
		}
	}
	return nil
}

func (n *node) relationship(name string) *relationship {
	for _, r := range n.rels {
		if r.name == name {
			return r
		}
	}
	return nil
}

// property is a scalar field stored on the node.
type property struct {
	name           string
	scalar         string
	list           bool
	nonNull        bool
	generatedID    bool
	unique         bool
	constraintName string
	typ            *ast.Type
}

func (p *property) numeric() bool {
	return !p.list && (p.scalar == intType || p.scalar == floatType)
}

func (p *property) textual() bool {
	return !p.list && (p.scalar == stringType || p.scalar == idType)
}

// relationship is a field resolved by traversing typed relationships.
type relationship struct {
	name      string
	relType   string
	direction string
	target    *node
	list      bool
	nonNull   bool
	typ       *ast.Type
}

// pattern from one node variable to another, with the target label applied.
func (r *relationship) pattern(from, to string) string {
	return r.path(from, to+":"+r.target.name, "")
}

// path between two node variables, optionally naming the relationship.
func (r *relationship) path(from, to, relVar string) string {
	rel := fmt.Sprintf("[%s:%s]", relVar, r.relType)
	if r.direction == "IN" {
		return fmt.Sprintf("(%s)<-%s-(%s)", from, rel, to)
	}
	return fmt.Sprintf("(%s)-%s->(%s)", from, rel, to)
}

// parseTypeDefs validates type definitions against the directive vocabulary and
// builds the model from them.
func parseTypeDefs(typeDefs string) (*model, error) {
	sch, err := gqlparser.LoadSchema(
		&ast.Source{Name: "directives.graphql", Input: directiveDefinitions, BuiltIn: true},
		&ast.Source{Name: typeDefsSource, Input: typeDefs},
	)
	if err != nil {
		return nil, fmt.Errorf("invalid type definitions: %w", err)
	}

	var defs []*ast.Definition
	for _, def := range sch.Types {
		if def.BuiltIn || def.Position == nil || def.Position.Src == nil || def.Position.Src.Name != typeDefsSource {
			continue
		}
		if def.Kind != ast.Object {
			return nil, fmt.Errorf("type %q: only object types are supported, found %s", def.Name, strings.ToLower(string(def.Kind)))
		}
		if def.Name == "Query" || def.Name == "Mutation" || def.Name == "Subscription" {
			return nil, fmt.Errorf("type %q: root types are generated and must not be declared", def.Name)
		}
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool {
		return declaredBefore(defs[i].Position, defs[j].Position)
	})
	if len(defs) == 0 {
		return nil, fmt.Errorf("type definitions declare no types")
	}

	m := &model{byName: make(map[string]*node, len(defs))}
	for _, def := range defs {
		plural := lowerFirst(pluralize(def.Name))
		if d := def.Directives.ForName(pluralDirective); d != nil {
			plural = d.Arguments.ForName("value").Value.Raw
		}
		n := &node{name: def.Name, plural: plural}
		m.nodes = append(m.nodes, n)
		m.byName[n.name] = n
	}

	var errs error
	for _, def := range defs {
		n := m.byName[def.Name]
		for _, fld := range def.Fields {
			if err := m.addField(n, fld); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("field %s.%s: %w", def.Name, fld.Name, err))
			}
		}
		if len(n.properties) == 0 {
			errs = multierror.Append(errs, fmt.Errorf("type %q: at least one scalar field is required", def.Name))
		}
	}
	if errs != nil {
		return nil, errs
	}

	plurals := make(map[string]string, len(m.nodes))
	for _, n := range m.nodes {
		if other, ok := plurals[n.plural]; ok {
			errs = multierror.Append(errs, fmt.Errorf("types %q and %q share the plural %q", other, n.name, n.plural))
		}
		plurals[n.plural] = n.name
	}
	for _, def := range defs {
		n := m.byName[def.Name]
		rules, err := parseAuthorizationRules(def.Directives.ForName(authorizationDirective))
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("type %q: %w", def.Name, err))
			continue
		}
		n.rules = rules
	}
	if errs != nil {
		return nil, errs
	}
	for _, n := range m.nodes {
		if err := n.rules.check(n); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("type %q: invalid authorization rule: %w", n.name, err))
		}
	}
	return m, errs
}

func (m *model) addField(n *node, fld *ast.FieldDefinition) error {
	if len(fld.Arguments) > 0 {
		return fmt.Errorf("arguments are generated and must not be declared")
	}
	base := fld.Type
	list := base.Elem != nil
	if list {
		base = base.Elem
		if base.Elem != nil {
			return fmt.Errorf("nested lists are not supported")
		}
	}

	if d := fld.Directives.ForName(relationshipDirective); d != nil {
		target, ok := m.byName[base.NamedType]
		if !ok {
			return fmt.Errorf("@relationship target %q is not a declared type", base.NamedType)
		}
		if list && !base.NonNull {
			return fmt.Errorf("list relationships must have non-null elements")
		}
		direction := d.Arguments.ForName("direction").Value.Raw
		if direction != "IN" && direction != "OUT" {
			return fmt.Errorf("@relationship direction must be IN or OUT, found %q", direction)
		}
		n.rels = append(n.rels, &relationship{
			name:      fld.Name,
			relType:   d.Arguments.ForName("type").Value.Raw,
			direction: direction,
			target:    target,
			list:      list,
			nonNull:   fld.Type.NonNull,
			typ:       fld.Type,
		})
		return nil
	}

	if _, ok := m.byName[base.NamedType]; ok {
		return fmt.Errorf("object field of type %q requires @relationship", base.NamedType)
	}
	if !isSupportedScalar(base.NamedType) {
		return fmt.Errorf("unsupported type %q", base.NamedType)
	}
	p := &property{
		name:    fld.Name,
		scalar:  base.NamedType,
		list:    list,
		nonNull: fld.Type.NonNull,
		typ:     fld.Type,
	}
	if fld.Directives.ForName(idDirective) != nil {
		if list || p.scalar != idType {
			return fmt.Errorf("@id requires type ID")
		}
		p.generatedID = true
		p.unique = true
	}
	if d := fld.Directives.ForName(uniqueDirective); d != nil {
		if list {
			return fmt.Errorf("@unique is not supported on lists")
		}
		p.unique = true
		if arg := d.Arguments.ForName("constraintName"); arg != nil {
			p.constraintName = arg.Value.Raw
		}
	}
	if p.unique && p.constraintName == "" {
		p.constraintName = n.name + "_" + p.name
	}
	n.properties = append(n.properties, p)
	return nil
}

func declaredBefore(a, b *ast.Position) bool {
	if a == nil || b == nil {
		return b != nil
	}
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Column < b.Column
}

func pluralize(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, "y") && len(lower) > 1 && !strings.ContainsRune("aeiou", rune(lower[len(lower)-2])):
		return name[:len(name)-1] + "ies"
	case strings.HasSuffix(lower, "s"), strings.HasSuffix(lower, "x"), strings.HasSuffix(lower, "z"),
		strings.HasSuffix(lower, "ch"), strings.HasSuffix(lower, "sh"):
		return name + "es"
	}
	return name + "s"
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
