package neo4jgraphql

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
)

// Shared type names.
const (
	sortDirectionType = "SortDirection"
	pageInfoType      = "PageInfo"
	createInfoType    = "CreateInfo"
	updateInfoType    = "UpdateInfo"
	deleteInfoType    = "DeleteInfo"
	emptyInputField   = "_emptyInput"
)

// rootKind identifies the generated operation a root field resolves.
type rootKind int

const (
	rootRead rootKind = iota
	rootConnection
	rootAggregate
	rootCreate
	rootUpdate
	rootDelete
)

type rootField struct {
	kind rootKind
	node *node
}

func rootKey(typeName, fieldName string) string {
	return typeName + "." + fieldName
}

// schemaGen derives the API document for a model.
type schemaGen struct {
	model    *model
	exclude  ExcludeDeprecatedFields
	defs     map[string]*ast.Definition
	query    *ast.Definition
	mutation *ast.Definition
	roots    map[string]rootField
}

// generateSchema returns the printed API and its validated schema.
func generateSchema(m *model, exclude ExcludeDeprecatedFields) (string, *ast.Schema, map[string]rootField, error) {
	gen := &schemaGen{
		model:    m,
		exclude:  exclude,
		defs:     make(map[string]*ast.Definition),
		query:    &ast.Definition{Kind: ast.Object, Name: "Query"},
		mutation: &ast.Definition{Kind: ast.Object, Name: "Mutation"},
		roots:    make(map[string]rootField),
	}
	gen.define(gen.query)
	gen.define(gen.mutation)
	gen.addSharedTypes()
	for _, n := range m.nodes {
		gen.addNode(n)
	}

	doc := &ast.SchemaDocument{}
	names := make([]string, 0, len(gen.defs))
	for name := range gen.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		doc.Definitions = append(doc.Definitions, gen.defs[name])
	}

	var buf bytes.Buffer
	formatter.NewFormatter(&buf).FormatSchemaDocument(doc)
	sdl := buf.String()

	sch, err := gqlparser.LoadSchema(&ast.Source{Name: "schema.graphql", Input: sdl})
	if err != nil {
		return "", nil, nil, fmt.Errorf("generated schema is invalid: %w", err)
	}
	return sdl, sch, gen.roots, nil
}

func (gen *schemaGen) define(def *ast.Definition) {
	gen.defs[def.Name] = def
}

func (gen *schemaGen) addSharedTypes() {
	gen.define(&ast.Definition{
		Kind: ast.Enum,
		Name: sortDirectionType,
		EnumValues: ast.EnumValueList{
			{Name: "ASC", Description: "Sort by field values in ascending order."},
			{Name: "DESC", Description: "Sort by field values in descending order."},
		},
	})
	gen.define(&ast.Definition{
		Kind:        ast.Object,
		Name:        pageInfoType,
		Description: "Pagination information (Relay)",
		Fields: ast.FieldList{
			field("hasNextPage", ast.NonNullNamedType(booleanType, nil)),
			field("hasPreviousPage", ast.NonNullNamedType(booleanType, nil)),
			field("startCursor", ast.NamedType(stringType, nil)),
			field("endCursor", ast.NamedType(stringType, nil)),
		},
	})

	create := ast.FieldList{
		field("nodesCreated", ast.NonNullNamedType(intType, nil)),
		field("relationshipsCreated", ast.NonNullNamedType(intType, nil)),
	}
	update := ast.FieldList{
		field("nodesCreated", ast.NonNullNamedType(intType, nil)),
		field("nodesDeleted", ast.NonNullNamedType(intType, nil)),
		field("relationshipsCreated", ast.NonNullNamedType(intType, nil)),
		field("relationshipsDeleted", ast.NonNullNamedType(intType, nil)),
	}
	del := ast.FieldList{
		field("nodesDeleted", ast.NonNullNamedType(intType, nil)),
		field("relationshipsDeleted", ast.NonNullNamedType(intType, nil)),
	}
	if !gen.exclude.Bookmark {
		bookmark := field("bookmark", ast.NamedType(stringType, nil))
		create = append(create, bookmark)
		update = append(update, bookmark)
		del = append(del, bookmark)
	}
	gen.define(&ast.Definition{Kind: ast.Object, Name: createInfoType, Fields: create})
	gen.define(&ast.Definition{Kind: ast.Object, Name: updateInfoType, Fields: update})
	gen.define(&ast.Definition{Kind: ast.Object, Name: deleteInfoType, Fields: del})
}

func (gen *schemaGen) addNode(n *node) {
	gen.addObjectType(n)
	gen.addWhereType(n)
	gen.addSortAndOptionsTypes(n)
	gen.addConnectionTypes(n)
	gen.addAggregateSelectionType(n)
	gen.addCreateInputType(n)
	gen.addUpdateInputType(n)
	for _, rel := range n.rels {
		gen.addRelationshipInputTypes(n, rel)
	}
	gen.addQueries(n)
	gen.addMutations(n)
}

func (gen *schemaGen) addObjectType(n *node) {
	def := &ast.Definition{Kind: ast.Object, Name: n.name}
	for _, p := range n.properties {
		def.Fields = append(def.Fields, field(p.name, copyType(p.typ)))
	}
	for _, rel := range n.rels {
		fld := field(rel.name, copyType(rel.typ))
		fld.Arguments = ast.ArgumentDefinitionList{
			argument("where", ast.NamedType(rel.target.name+"Where", nil)),
		}
		if rel.list {
			fld.Arguments = append(fld.Arguments, argument("options", ast.NamedType(rel.target.name+"Options", nil)))
		}
		def.Fields = append(def.Fields, fld)
	}
	gen.define(def)
}

func (gen *schemaGen) addWhereType(n *node) {
	whereName := n.name + "Where"
	where := &ast.Definition{Kind: ast.InputObject, Name: whereName}
	add := func(name string, typ *ast.Type) {
		where.Fields = append(where.Fields, field(name, typ))
	}
	negation := !gen.exclude.NegationFilters

	for _, p := range n.properties {
		scalar := ast.NamedType(p.scalar, nil)
		scalarList := ast.ListType(ast.NonNullNamedType(p.scalar, nil), nil)
		if p.list {
			add(p.name, scalarList)
			if negation {
				add(p.name+"_NOT", scalarList)
			}
			if !gen.exclude.ArrayFilters {
				add(p.name+"_INCLUDES", scalar)
				if negation {
					add(p.name+"_NOT_INCLUDES", scalar)
				}
			}
			continue
		}

		add(p.name, scalar)
		if negation {
			add(p.name+"_NOT", scalar)
		}
		if p.scalar == booleanType {
			continue
		}
		add(p.name+"_IN", scalarList)
		if negation {
			add(p.name+"_NOT_IN", scalarList)
		}
		if p.textual() {
			for _, op := range []string{"_CONTAINS", "_STARTS_WITH", "_ENDS_WITH"} {
				add(p.name+op, scalar)
				if negation {
					add(p.name+"_NOT"+op, scalar)
				}
			}
		}
		if p.numeric() {
			for _, op := range []string{"_LT", "_LTE", "_GT", "_GTE"} {
				add(p.name+op, scalar)
			}
		}
	}

	for _, rel := range n.rels {
		target := ast.NamedType(rel.target.name+"Where", nil)
		if rel.list {
			if !gen.exclude.ArrayFilters {
				add(rel.name, target)
				if negation {
					add(rel.name+"_NOT", target)
				}
			}
			for _, op := range []string{"_ALL", "_NONE", "_SINGLE", "_SOME"} {
				add(rel.name+op, target)
			}
		} else {
			add(rel.name, target)
			if negation {
				add(rel.name+"_NOT", target)
			}
		}
		if !gen.exclude.AggregationFilters {
			add(rel.name+"Aggregate", ast.NamedType(relationshipInputName(n, rel, "AggregateInput"), nil))
		}
	}

	add("OR", ast.ListType(ast.NonNullNamedType(whereName, nil), nil))
	add("AND", ast.ListType(ast.NonNullNamedType(whereName, nil), nil))
	add("NOT", ast.NamedType(whereName, nil))
	gen.define(where)

	gen.define(&ast.Definition{
		Kind:   ast.InputObject,
		Name:   n.name + "ConnectWhere",
		Fields: ast.FieldList{field("node", ast.NonNullNamedType(whereName, nil))},
	})
}

func sortable(n *node) []*property {
	var props []*property
	for _, p := range n.properties {
		if !p.list {
			props = append(props, p)
		}
	}
	return props
}

func (gen *schemaGen) addSortAndOptionsTypes(n *node) {
	options := &ast.Definition{Kind: ast.InputObject, Name: n.name + "Options"}
	if props := sortable(n); len(props) > 0 {
		sortDef := &ast.Definition{
			Kind:        ast.InputObject,
			Name:        n.name + "Sort",
			Description: fmt.Sprintf("Fields to sort %s by. The order in which sorts are applied is not guaranteed when specifying many fields in one %sSort object.", n.pluralType(), n.name),
		}
		for _, p := range props {
			sortDef.Fields = append(sortDef.Fields, field(p.name, ast.NamedType(sortDirectionType, nil)))
		}
		gen.define(sortDef)
		sortField := field("sort", ast.ListType(ast.NonNullNamedType(sortDef.Name, nil), nil))
		sortField.Description = fmt.Sprintf("Specify one or more %sSort objects to sort %s by. The sorts will be applied in the order in which they are arranged in the array.", n.name, n.pluralType())
		options.Fields = append(options.Fields, sortField)
	}
	options.Fields = append(options.Fields,
		field("limit", ast.NamedType(intType, nil)),
		field("offset", ast.NamedType(intType, nil)),
	)
	gen.define(options)
}

func (gen *schemaGen) addConnectionTypes(n *node) {
	edge := n.name + "Edge"
	gen.define(&ast.Definition{
		Kind: ast.Object,
		Name: edge,
		Fields: ast.FieldList{
			field("cursor", ast.NonNullNamedType(stringType, nil)),
			field("node", ast.NonNullNamedType(n.name, nil)),
		},
	})
	gen.define(&ast.Definition{
		Kind: ast.Object,
		Name: n.pluralType() + "Connection",
		Fields: ast.FieldList{
			field("totalCount", ast.NonNullNamedType(intType, nil)),
			field("pageInfo", ast.NonNullNamedType(pageInfoType, nil)),
			field("edges", ast.NonNullListType(ast.NonNullNamedType(edge, nil), nil)),
		},
	})
}

func (gen *schemaGen) addAggregateSelectionType(n *node) {
	def := &ast.Definition{
		Kind:   ast.Object,
		Name:   n.name + "AggregateSelection",
		Fields: ast.FieldList{field("count", ast.NonNullNamedType(intType, nil))},
	}
	for _, p := range n.properties {
		var selection string
		switch {
		case p.numeric():
			selection = gen.numericAggregateSelection(p.scalar)
		case p.textual() && !gen.exclude.StringAggregation:
			selection = gen.textAggregateSelection(p.scalar)
		default:
			continue
		}
		def.Fields = append(def.Fields, field(p.name, ast.NonNullNamedType(selection, nil)))
	}
	gen.define(def)
}

func (gen *schemaGen) numericAggregateSelection(scalar string) string {
	name := scalar + "AggregateSelection"
	gen.define(&ast.Definition{
		Kind: ast.Object,
		Name: name,
		Fields: ast.FieldList{
			field("max", ast.NamedType(scalar, nil)),
			field("min", ast.NamedType(scalar, nil)),
			field("average", ast.NamedType(floatType, nil)),
			field("sum", ast.NamedType(scalar, nil)),
		},
	})
	return name
}

func (gen *schemaGen) textAggregateSelection(scalar string) string {
	name := scalar + "AggregateSelection"
	gen.define(&ast.Definition{
		Kind: ast.Object,
		Name: name,
		Fields: ast.FieldList{
			field("shortest", ast.NamedType(scalar, nil)),
			field("longest", ast.NamedType(scalar, nil)),
		},
	})
	return name
}

func (gen *schemaGen) addCreateInputType(n *node) {
	def := &ast.Definition{Kind: ast.InputObject, Name: n.name + "CreateInput"}
	for _, p := range n.properties {
		if p.generatedID {
			continue
		}
		def.Fields = append(def.Fields, field(p.name, copyType(p.typ)))
	}
	for _, rel := range n.rels {
		def.Fields = append(def.Fields, field(rel.name, ast.NamedType(relationshipInputName(n, rel, "FieldInput"), nil)))
	}
	if len(def.Fields) == 0 {
		def.Fields = append(def.Fields, field(emptyInputField, ast.NamedType(booleanType, nil)))
	}
	gen.define(def)
}

func (gen *schemaGen) addUpdateInputType(n *node) {
	def := &ast.Definition{Kind: ast.InputObject, Name: n.name + "UpdateInput"}
	for _, p := range n.properties {
		if p.generatedID {
			continue
		}
		typ := copyType(p.typ)
		typ.NonNull = false
		def.Fields = append(def.Fields, field(p.name, typ))
		if p.list {
			continue
		}
		switch p.scalar {
		case intType:
			for _, op := range []string{"_INCREMENT", "_DECREMENT"} {
				def.Fields = append(def.Fields, field(p.name+op, ast.NamedType(intType, nil)))
			}
		case floatType:
			for _, op := range []string{"_ADD", "_SUBTRACT", "_MULTIPLY", "_DIVIDE"} {
				def.Fields = append(def.Fields, field(p.name+op, ast.NamedType(floatType, nil)))
			}
		}
	}
	for _, rel := range n.rels {
		def.Fields = append(def.Fields, field(rel.name, ast.NamedType(relationshipInputName(n, rel, "FieldInput"), nil)))
	}
	if len(def.Fields) == 0 {
		def.Fields = append(def.Fields, field(emptyInputField, ast.NamedType(booleanType, nil)))
	}
	gen.define(def)
}

func (gen *schemaGen) addRelationshipInputTypes(n *node, rel *relationship) {
	create := relationshipInputName(n, rel, "CreateFieldInput")
	connect := relationshipInputName(n, rel, "ConnectFieldInput")
	gen.define(&ast.Definition{
		Kind:   ast.InputObject,
		Name:   create,
		Fields: ast.FieldList{field("node", ast.NonNullNamedType(rel.target.name+"CreateInput", nil))},
	})
	gen.define(&ast.Definition{
		Kind:   ast.InputObject,
		Name:   connect,
		Fields: ast.FieldList{field("where", ast.NamedType(rel.target.name+"ConnectWhere", nil))},
	})

	inputType := func(name string) *ast.Type {
		if rel.list {
			return ast.ListType(ast.NonNullNamedType(name, nil), nil)
		}
		return ast.NamedType(name, nil)
	}
	gen.define(&ast.Definition{
		Kind: ast.InputObject,
		Name: relationshipInputName(n, rel, "FieldInput"),
		Fields: ast.FieldList{
			field("create", inputType(create)),
			field("connect", inputType(connect)),
		},
	})

	if gen.exclude.AggregationFilters {
		return
	}
	aggregate := relationshipInputName(n, rel, "AggregateInput")
	def := &ast.Definition{Kind: ast.InputObject, Name: aggregate}
	for _, key := range []string{"count", "count_LT", "count_LTE", "count_GT", "count_GTE"} {
		def.Fields = append(def.Fields, field(key, ast.NamedType(intType, nil)))
	}
	def.Fields = append(def.Fields,
		field("AND", ast.ListType(ast.NonNullNamedType(aggregate, nil), nil)),
		field("OR", ast.ListType(ast.NonNullNamedType(aggregate, nil), nil)),
		field("NOT", ast.NamedType(aggregate, nil)),
	)
	gen.define(def)
}

func relationshipInputName(n *node, rel *relationship, suffix string) string {
	return n.name + upperFirst(rel.name) + suffix
}

func (gen *schemaGen) addQueries(n *node) {
	where := argument("where", ast.NamedType(n.name+"Where", nil))

	list := field(n.plural, ast.NonNullListType(ast.NonNullNamedType(n.name, nil), nil))
	list.Arguments = ast.ArgumentDefinitionList{
		where,
		argument("options", ast.NamedType(n.name+"Options", nil)),
	}

	conn := field(n.plural+"Connection", ast.NonNullNamedType(n.pluralType()+"Connection", nil))
	conn.Arguments = ast.ArgumentDefinitionList{
		argument("first", ast.NamedType(intType, nil)),
		argument("after", ast.NamedType(stringType, nil)),
		where,
	}
	if len(sortable(n)) > 0 {
		conn.Arguments = append(conn.Arguments, argument("sort", ast.ListType(ast.NonNullNamedType(n.name+"Sort", nil), nil)))
	}

	agg := field(n.plural+"Aggregate", ast.NonNullNamedType(n.name+"AggregateSelection", nil))
	agg.Arguments = ast.ArgumentDefinitionList{where}

	gen.query.Fields = append(gen.query.Fields, list, conn, agg)
	gen.roots[rootKey("Query", list.Name)] = rootField{kind: rootRead, node: n}
	gen.roots[rootKey("Query", conn.Name)] = rootField{kind: rootConnection, node: n}
	gen.roots[rootKey("Query", agg.Name)] = rootField{kind: rootAggregate, node: n}
}

func (gen *schemaGen) addMutations(n *node) {
	nodes := field(n.plural, ast.NonNullListType(ast.NonNullNamedType(n.name, nil), nil))

	createResponse := "Create" + n.pluralType() + "MutationResponse"
	gen.define(&ast.Definition{
		Kind: ast.Object,
		Name: createResponse,
		Fields: ast.FieldList{
			field("info", ast.NonNullNamedType(createInfoType, nil)),
			nodes,
		},
	})
	updateResponse := "Update" + n.pluralType() + "MutationResponse"
	gen.define(&ast.Definition{
		Kind: ast.Object,
		Name: updateResponse,
		Fields: ast.FieldList{
			field("info", ast.NonNullNamedType(updateInfoType, nil)),
			nodes,
		},
	})

	create := field("create"+n.pluralType(), ast.NonNullNamedType(createResponse, nil))
	create.Arguments = ast.ArgumentDefinitionList{
		argument("input", ast.NonNullListType(ast.NonNullNamedType(n.name+"CreateInput", nil), nil)),
	}
	update := field("update"+n.pluralType(), ast.NonNullNamedType(updateResponse, nil))
	update.Arguments = ast.ArgumentDefinitionList{
		argument("where", ast.NamedType(n.name+"Where", nil)),
		argument("update", ast.NamedType(n.name+"UpdateInput", nil)),
	}
	del := field("delete"+n.pluralType(), ast.NonNullNamedType(deleteInfoType, nil))
	del.Arguments = ast.ArgumentDefinitionList{
		argument("where", ast.NamedType(n.name+"Where", nil)),
	}

	gen.mutation.Fields = append(gen.mutation.Fields, create, update, del)
	gen.roots[rootKey("Mutation", create.Name)] = rootField{kind: rootCreate, node: n}
	gen.roots[rootKey("Mutation", update.Name)] = rootField{kind: rootUpdate, node: n}
	gen.roots[rootKey("Mutation", del.Name)] = rootField{kind: rootDelete, node: n}
}

func field(name string, typ *ast.Type) *ast.FieldDefinition {
	return &ast.FieldDefinition{Name: name, Type: typ}
}

func argument(name string, typ *ast.Type) *ast.ArgumentDefinition {
	return &ast.ArgumentDefinition{Name: name, Type: typ}
}

func copyType(t *ast.Type) *ast.Type {
	if t == nil {
		return nil
	}
	return &ast.Type{
		NamedType: t.NamedType,
		Elem:      copyType(t.Elem),
		NonNull:   t.NonNull,
	}
}
