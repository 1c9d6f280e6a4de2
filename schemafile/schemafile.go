// Package schemafile loads schemapack schemas from YAML documents.
//
// A document holds named schemas under a top-level "schemas" key:
//
//	schemas:
//	  player:
//	    id: uint8
//	    x: {type: int16, digits: 2}
//	    name: {type: string, length: 16}
//	    tags: [string]
//	  snapshot:
//	    time: uint16
//	    players: [$player]
//	    focus: $player
//	    data: {list: [uint8]}
//
// A scalar is a type name or a mapping with a "type" key plus optional
// "digits" or "length". A one-element list is an array. "$name" references
// another schema of the same document. Any other mapping is a nested object.
package schemafile

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Neumenon/schemapack/schemapack"
)

// ErrUnknownReference is returned when a "$name" reference names no schema
// of the document.
var ErrUnknownReference = errors.New("unknown schema reference")

// ErrEmptyDocument is returned for a document without schemas.
var ErrEmptyDocument = errors.New("document defines no schemas")

const refPrefix = "$"

type document struct {
	Schemas map[string]map[string]any `yaml:"schemas"`
}

// Set holds the schemas registered from one document.
type Set struct {
	order   []string
	schemas map[string]*schemapack.Schema
}

// Get returns the schema registered under name.
func (s *Set) Get(name string) (*schemapack.Schema, bool) {
	sc, ok := s.schemas[name]
	return sc, ok
}

// Names returns schema names in registration order.
func (s *Set) Names() []string {
	return append([]string(nil), s.order...)
}

// Len returns the number of schemas in the set.
func (s *Set) Len() int { return len(s.order) }

// LoadFile reads and loads the document at path.
func LoadFile(r *schemapack.Registry, path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schemafile: read %s: %w", path, err)
	}
	return Load(r, data)
}

// Load registers every schema of the YAML document in r, dependencies
// first. Unknown and circular references are reported before anything is
// registered.
func Load(r *schemapack.Registry, data []byte) (*Set, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("schemafile: parse: %w", err)
	}
	if len(doc.Schemas) == 0 {
		return nil, ErrEmptyDocument
	}

	order, err := resolveOrder(doc.Schemas)
	if err != nil {
		return nil, err
	}

	set := &Set{schemas: make(map[string]*schemapack.Schema, len(order))}
	resolve := func(name string) (*schemapack.Schema, bool) {
		s, ok := set.schemas[name]
		return s, ok
	}
	for _, name := range order {
		def, err := buildDefinition(doc.Schemas[name], name, resolve)
		if err != nil {
			return nil, fmt.Errorf("schemafile: schema %q: %w", name, err)
		}
		s, err := r.Define(def, schemapack.WithName(name))
		if err != nil {
			return nil, fmt.Errorf("schemafile: schema %q: %w", name, err)
		}
		set.schemas[name] = s
		set.order = append(set.order, name)
	}
	return set, nil
}

// ============================================================
// Dependency Order
// ============================================================

// resolveOrder sorts schema names so every schema follows the schemas it
// references. Ties keep alphabetical order.
func resolveOrder(schemas map[string]map[string]any) ([]string, error) {
	names := make([]string, 0, len(schemas))
	for name := range schemas {
		names = append(names, name)
	}
	sort.Strings(names)

	deps := make(map[string][]string, len(schemas))
	for _, name := range names {
		refs := make(map[string]string) // ref -> field path
		collectRefs(schemas[name], name, refs)
		list := make([]string, 0, len(refs))
		for ref, path := range refs {
			if _, ok := schemas[ref]; !ok {
				return nil, &schemapack.DefinitionError{Path: path, Err: fmt.Errorf("%w: %s%s", ErrUnknownReference, refPrefix, ref)}
			}
			list = append(list, ref)
		}
		sort.Strings(list)
		deps[name] = list
	}

	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int, len(names))
	order := make([]string, 0, len(names))
	var visit func(name string, trail []string) error
	visit = func(name string, trail []string) error {
		trail = append(trail, name)
		switch state[name] {
		case visiting:
			return &schemapack.DefinitionError{Path: strings.Join(trail, " -> "), Err: schemapack.ErrCircularReference}
		case done:
			return nil
		}
		state[name] = visiting
		for _, dep := range deps[name] {
			if err := visit(dep, trail); err != nil {
				return err
			}
		}
		state[name] = done
		order = append(order, name)
		return nil
	}
	for _, name := range names {
		if err := visit(name, nil); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func collectRefs(raw any, path string, refs map[string]string) {
	switch v := raw.(type) {
	case string:
		if name, ok := strings.CutPrefix(v, refPrefix); ok {
			if _, seen := refs[name]; !seen {
				refs[name] = path
			}
		}
	case []any:
		for _, elem := range v {
			collectRefs(elem, path, refs)
		}
	case map[string]any:
		if isViewSpec(v) {
			return
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			collectRefs(v[k], path+"."+k, refs)
		}
	}
}

// ============================================================
// Node Parsing
// ============================================================

type resolver func(name string) (*schemapack.Schema, bool)

func buildDefinition(body map[string]any, path string, resolve resolver) (schemapack.Definition, error) {
	def := make(schemapack.Definition, len(body))
	for name, raw := range body {
		node, err := parseNode(raw, path+"."+name, resolve)
		if err != nil {
			return nil, err
		}
		def[name] = node
	}
	return def, nil
}

func parseNode(raw any, path string, resolve resolver) (any, error) {
	switch v := raw.(type) {
	case string:
		if name, ok := strings.CutPrefix(v, refPrefix); ok {
			s, found := resolve(name)
			if !found {
				return nil, &schemapack.DefinitionError{Path: path, Err: fmt.Errorf("%w: %s", ErrUnknownReference, v)}
			}
			return s, nil
		}
		view, err := schemapack.ParseView(v)
		if err != nil {
			return nil, &schemapack.DefinitionError{Path: path, Err: err}
		}
		return view, nil

	case []any:
		if len(v) != 1 {
			return nil, &schemapack.DefinitionError{Path: path, Err: fmt.Errorf("%w: array must hold exactly one element, got %d", schemapack.ErrUnsupportedNode, len(v))}
		}
		elem, err := parseNode(v[0], path, resolve)
		if err != nil {
			return nil, err
		}
		return []any{elem}, nil

	case map[string]any:
		if isViewSpec(v) {
			return parseViewSpec(v, path)
		}
		return buildDefinition(v, path, resolve)
	}
	return nil, &schemapack.DefinitionError{Path: path, Err: fmt.Errorf("%w: %T", schemapack.ErrUnsupportedNode, raw)}
}

// isViewSpec reports whether m is {type: <view>} with only digits or length
// beside it. Anything else is a nested object.
func isViewSpec(m map[string]any) bool {
	t, ok := m["type"].(string)
	if !ok {
		return false
	}
	if _, err := schemapack.ParseView(t); err != nil {
		return false
	}
	for k := range m {
		switch k {
		case "type", "digits", "length":
		default:
			return false
		}
	}
	return true
}

func parseViewSpec(m map[string]any, path string) (schemapack.View, error) {
	var opts []schemapack.ViewOption
	if raw, ok := m["digits"]; ok {
		n, ok := raw.(int)
		if !ok {
			return schemapack.View{}, &schemapack.DefinitionError{Path: path, Err: fmt.Errorf("%w: digits must be an integer", schemapack.ErrUnsupportedNode)}
		}
		opts = append(opts, schemapack.WithDigits(n))
	}
	if raw, ok := m["length"]; ok {
		n, ok := raw.(int)
		if !ok {
			return schemapack.View{}, &schemapack.DefinitionError{Path: path, Err: fmt.Errorf("%w: length must be an integer", schemapack.ErrUnsupportedNode)}
		}
		opts = append(opts, schemapack.WithLength(n))
	}
	view, err := schemapack.ParseView(m["type"].(string), opts...)
	if err != nil {
		return schemapack.View{}, &schemapack.DefinitionError{Path: path, Err: err}
	}
	return view, nil
}
