package schemapack

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Definition is a declarative field layout. Values are View, []View,
// nested Definition or map[string]any, *Schema, []*Schema, or []any holding
// exactly one View or *Schema.
type Definition map[string]any

// NodeKind classifies a schema node. It is decided once, at definition time.
type NodeKind uint8

const (
	NodeScalar NodeKind = iota + 1
	NodeScalarArray
	NodeObject
	NodeSchema
	NodeSchemaArray
)

func (k NodeKind) String() string {
	switch k {
	case NodeScalar:
		return "scalar"
	case NodeScalarArray:
		return "scalar-array"
	case NodeObject:
		return "object"
	case NodeSchema:
		return "schema"
	case NodeSchemaArray:
		return "schema-array"
	default:
		return "unknown"
	}
}

// Node is one classified position in a schema tree.
type Node struct {
	Kind   NodeKind
	View   View    // NodeScalar, NodeScalarArray
	Fields []Field // NodeObject
	Schema *Schema // NodeSchema, NodeSchemaArray
}

// Field is a named node. Fields of one level are kept in canonical order.
type Field struct {
	Name string
	Node Node
}

// priority ranks nodes for canonical ordering.
func (n Node) priority() int {
	switch n.Kind {
	case NodeScalar:
		if n.View.IsString() {
			return 2
		}
		return 0
	case NodeScalarArray:
		if n.View.IsString() {
			return 3
		}
		return 1
	case NodeObject:
		return 4
	case NodeSchema:
		return 5
	default:
		return 6
	}
}

// ============================================================
// Schema
// ============================================================

// Schema is an immutable, registered field layout. Obtain one from
// Registry.Define; the zero value is not usable.
//
// IMMUTABLE after registration.
type Schema struct {
	id          uint8
	name        string
	fields      []Field
	canonical   string
	fingerprint [32]byte
	fixedSize   int
	registry    *Registry
}

// ID returns the wire id, 0..254.
func (s *Schema) ID() uint8 { return s.id }

// Name returns the optional registration name.
func (s *Schema) Name() string { return s.name }

// Fields returns a copy of the top-level fields in canonical order.
func (s *Schema) Fields() []Field { return cloneFields(s.fields) }

func cloneFields(fields []Field) []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	for i := range out {
		if out[i].Node.Kind == NodeObject {
			out[i].Node.Fields = cloneFields(out[i].Node.Fields)
		}
	}
	return out
}

// Keys returns the top-level field names in canonical order.
func (s *Schema) Keys() []string {
	keys := make([]string, len(s.fields))
	for i, f := range s.fields {
		keys[i] = f.Name
	}
	return keys
}

// Canonical returns the canonical text of the field layout. Nested schemas
// appear as #id.
func (s *Schema) Canonical() string { return s.canonical }

// Fingerprint returns the SHA-256 of the canonical text.
func (s *Schema) Fingerprint() [32]byte { return s.fingerprint }

// Hash returns the first 16 bytes of the fingerprint as hex.
func (s *Schema) Hash() string { return hex.EncodeToString(s.fingerprint[:16]) }

// FixedSize returns the encoded size of a single value when every field has
// a fixed width.
func (s *Schema) FixedSize() (int, bool) {
	if s.fixedSize < 0 {
		return 0, false
	}
	return 2 + s.fixedSize, true
}

// Registry returns the registry the schema belongs to.
func (s *Schema) Registry() *Registry { return s.registry }

// Label names the schema for logs and metrics.
func (s *Schema) Label() string {
	if s.name != "" {
		return s.name
	}
	return "#" + strconv.Itoa(int(s.id))
}

func (s *Schema) String() string {
	return fmt.Sprintf("schema %s %s", s.Label(), s.canonical)
}

// ============================================================
// Compilation
// ============================================================

// compileFields classifies and sorts one struct level.
func compileFields(def map[string]any, path string, r *Registry) ([]Field, error) {
	names := make([]string, 0, len(def))
	for name := range def {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]Field, 0, len(def))
	for _, name := range names {
		if name == "" {
			return nil, definitionErr(path, ErrEmptyFieldName)
		}
		node, err := compileNode(def[name], joinPath(path, name), r)
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{Name: name, Node: node})
	}
	sortFields(fields)
	return fields, nil
}

func compileNode(raw any, path string, r *Registry) (Node, error) {
	switch v := raw.(type) {
	case View:
		if err := v.validate(); err != nil {
			return Node{}, definitionErr(path, err)
		}
		return Node{Kind: NodeScalar, View: v}, nil
	case []View:
		if len(v) != 1 {
			return Node{}, definitionErr(path, fmt.Errorf("%w: array must hold exactly one view, got %d", ErrUnsupportedNode, len(v)))
		}
		return compileArray(v[0], path, r)
	case Definition:
		return compileObject(v, path, r)
	case map[string]any:
		return compileObject(v, path, r)
	case *Schema:
		if err := checkMember(v, path, r); err != nil {
			return Node{}, err
		}
		return Node{Kind: NodeSchema, Schema: v}, nil
	case []*Schema:
		if len(v) != 1 {
			return Node{}, definitionErr(path, fmt.Errorf("%w: array must hold exactly one schema, got %d", ErrUnsupportedNode, len(v)))
		}
		return compileArray(v[0], path, r)
	case []any:
		if len(v) != 1 {
			return Node{}, definitionErr(path, fmt.Errorf("%w: array must hold exactly one element, got %d", ErrUnsupportedNode, len(v)))
		}
		return compileArray(v[0], path, r)
	case nil:
		return Node{}, definitionErr(path, fmt.Errorf("%w: nil", ErrUnsupportedNode))
	default:
		return Node{}, definitionErr(path, fmt.Errorf("%w: %T", ErrUnsupportedNode, raw))
	}
}

func compileArray(elem any, path string, r *Registry) (Node, error) {
	switch e := elem.(type) {
	case View:
		if err := e.validate(); err != nil {
			return Node{}, definitionErr(path, err)
		}
		return Node{Kind: NodeScalarArray, View: e}, nil
	case *Schema:
		if err := checkMember(e, path, r); err != nil {
			return Node{}, err
		}
		return Node{Kind: NodeSchemaArray, Schema: e}, nil
	default:
		return Node{}, definitionErr(path, fmt.Errorf("%w: array element %T", ErrUnsupportedNode, elem))
	}
}

func compileObject(def map[string]any, path string, r *Registry) (Node, error) {
	fields, err := compileFields(def, path, r)
	if err != nil {
		return Node{}, err
	}
	return Node{Kind: NodeObject, Fields: fields}, nil
}

func checkMember(s *Schema, path string, r *Registry) error {
	if s == nil {
		return definitionErr(path, fmt.Errorf("%w: nil schema", ErrUnsupportedNode))
	}
	if s.registry != r {
		return definitionErr(path, ErrForeignSchema)
	}
	return nil
}

// sortFields orders one level by node priority, then by name.
func sortFields(fields []Field) {
	sort.Slice(fields, func(i, j int) bool {
		pi, pj := fields[i].Node.priority(), fields[j].Node.priority()
		if pi != pj {
			return pi < pj
		}
		return fields[i].Name < fields[j].Name
	})
}

// checkAcyclic walks every schema reachable from fields and fails on a
// reference back into the current path.
func checkAcyclic(fields []Field) error {
	state := make(map[*Schema]uint8) // 1 visiting, 2 done
	var visit func(s *Schema, trail []string) error
	visitFields := func(fs []Field, trail []string) error {
		for _, ref := range referencedSchemas(fs) {
			if err := visit(ref, trail); err != nil {
				return err
			}
		}
		return nil
	}
	visit = func(s *Schema, trail []string) error {
		trail = append(trail, s.Label())
		switch state[s] {
		case 1:
			return definitionErr(strings.Join(trail, " -> "), ErrCircularReference)
		case 2:
			return nil
		}
		state[s] = 1
		if err := visitFields(s.fields, trail); err != nil {
			return err
		}
		state[s] = 2
		return nil
	}
	return visitFields(fields, nil)
}

func referencedSchemas(fields []Field) []*Schema {
	var out []*Schema
	for _, f := range fields {
		switch f.Node.Kind {
		case NodeSchema, NodeSchemaArray:
			out = append(out, f.Node.Schema)
		case NodeObject:
			out = append(out, referencedSchemas(f.Node.Fields)...)
		}
	}
	return out
}

// ============================================================
// Canonical text
// ============================================================

func canonicalText(fields []Field) string {
	var sb strings.Builder
	writeFields(&sb, fields)
	return sb.String()
}

func writeFields(sb *strings.Builder, fields []Field) {
	sb.WriteString("{")
	for i, f := range fields {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(strconv.Quote(f.Name))
		sb.WriteString(":")
		writeNode(sb, f.Node)
	}
	sb.WriteString("}")
}

func writeNode(sb *strings.Builder, n Node) {
	switch n.Kind {
	case NodeScalar:
		sb.WriteString(n.View.String())
	case NodeScalarArray:
		sb.WriteString("[")
		sb.WriteString(n.View.String())
		sb.WriteString("]")
	case NodeObject:
		writeFields(sb, n.Fields)
	case NodeSchema:
		sb.WriteString("#")
		sb.WriteString(strconv.Itoa(int(n.Schema.id)))
	case NodeSchemaArray:
		sb.WriteString("[#")
		sb.WriteString(strconv.Itoa(int(n.Schema.id)))
		sb.WriteString("]")
	}
}

func fingerprintOf(canonical string) [32]byte {
	return sha256.Sum256([]byte(canonical))
}

// fixedFieldsSize returns the encoded size of fields, or -1 when any field
// has a variable width.
func fixedFieldsSize(fields []Field) int {
	total := 0
	for _, f := range fields {
		var n int
		switch f.Node.Kind {
		case NodeScalar:
			if f.Node.View.IsString() {
				return -1
			}
			n = f.Node.View.Width()
		case NodeObject:
			inner := fixedFieldsSize(f.Node.Fields)
			if inner < 0 {
				return -1
			}
			n = 2 + inner
		case NodeSchema:
			if f.Node.Schema.fixedSize < 0 {
				return -1
			}
			n = 3 + f.Node.Schema.fixedSize
		default:
			return -1
		}
		total += n
	}
	return total
}
