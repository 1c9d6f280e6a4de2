package schemapack

import (
	"fmt"
	"math"
	"reflect"
)

// Structure is the root shape tag stored in the first byte of every buffer.
type Structure uint8

const (
	StructureAny    Structure = 0 // decode-side wildcard, never written
	StructureSingle Structure = 1
	StructureArray  Structure = 2
)

func (s Structure) String() string {
	switch s {
	case StructureAny:
		return "any"
	case StructureSingle:
		return "single"
	case StructureArray:
		return "array"
	default:
		return fmt.Sprintf("structure(%d)", uint8(s))
	}
}

// Structural markers.
const (
	ObjectMarker uint16 = 61312
	ArrayMarker  uint16 = 48364
	SchemaMarker uint16 = 46670
)

// MaxArrayLen is the largest element count an array header can carry.
const MaxArrayLen = math.MaxUint16

// Observer is notified after every encode and decode.
type Observer interface {
	ObserveEncode(s *Schema, size int, err error)
	ObserveDecode(s *Schema, size int, err error)
}

// Model encodes and decodes values of one schema. It owns a single buffer
// that is reset at the start of every call.
//
// A Model is not safe for concurrent use. Use one Model per goroutine, or a
// ModelPool; any number of models may share a Schema.
type Model struct {
	schema   *Schema
	buf      *Buffer
	observer Observer
}

// ModelOption configures a Model.
type ModelOption func(*modelConfig)

type modelConfig struct {
	bufferSize int
	observer   Observer
}

// WithBufferSize sets the buffer capacity. Encoded output and decode input
// larger than n are rejected.
func WithBufferSize(n int) ModelOption {
	return func(c *modelConfig) { c.bufferSize = n }
}

// WithObserver installs an Observer.
func WithObserver(o Observer) ModelOption {
	return func(c *modelConfig) { c.observer = o }
}

// NewModel binds a schema to a fresh buffer.
func NewModel(s *Schema, opts ...ModelOption) *Model {
	cfg := modelConfig{bufferSize: DefaultBufferSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Model{
		schema:   s,
		buf:      NewBuffer(cfg.bufferSize),
		observer: cfg.observer,
	}
}

// NewModelFromDefinition defines a schema in r and binds a model to it.
func NewModelFromDefinition(r *Registry, def Definition, opts ...ModelOption) (*Model, error) {
	s, err := r.Define(def)
	if err != nil {
		return nil, err
	}
	return NewModel(s, opts...), nil
}

// Schema returns the bound schema.
func (m *Model) Schema() *Schema { return m.schema }

// ID returns the bound schema id.
func (m *Model) ID() uint8 { return m.schema.id }

// ============================================================
// Encode
// ============================================================

// Encode serializes v. A slice or array encodes as an array of schema
// values, anything else as a single value. The returned bytes are owned by
// the caller.
func (m *Model) Encode(v any) ([]byte, error) {
	out, err := m.encode(v)
	if m.observer != nil {
		m.observer.ObserveEncode(m.schema, len(out), err)
	}
	return out, err
}

func (m *Model) encode(v any) ([]byte, error) {
	m.buf.Refresh(nil)
	if items, ok := asList(v); ok {
		if err := m.writePreamble(StructureArray, v); err != nil {
			return nil, err
		}
		if len(items) > MaxArrayLen {
			return nil, conformanceErr("", v, fmt.Errorf("%w: %d", ErrArrayTooLong, len(items)))
		}
		if err := m.buf.AppendUint16(uint16(len(items))); err != nil {
			return nil, conformanceErr("", v, err)
		}
		for i, item := range items {
			if err := m.encodeFields(item, m.schema.fields, indexPath("", i)); err != nil {
				return nil, err
			}
		}
	} else {
		if err := m.writePreamble(StructureSingle, v); err != nil {
			return nil, err
		}
		if err := m.encodeFields(v, m.schema.fields, ""); err != nil {
			return nil, err
		}
	}
	return m.buf.Finalize(), nil
}

func (m *Model) writePreamble(s Structure, v any) error {
	if err := m.buf.AppendUint8(uint8(s)); err != nil {
		return conformanceErr("", v, err)
	}
	if err := m.buf.AppendUint8(m.schema.id); err != nil {
		return conformanceErr("", v, err)
	}
	return nil
}

func (m *Model) encodeFields(v any, fields []Field, path string) error {
	obj, err := asObject(v)
	if err != nil {
		return conformanceErr(path, v, err)
	}
	for _, f := range fields {
		fieldPath := joinPath(path, f.Name)
		val, ok := obj[f.Name]
		if !ok {
			return conformanceErr(fieldPath, nil, ErrMissingField)
		}
		if err := m.encodeNode(val, f.Node, fieldPath); err != nil {
			return err
		}
	}
	return nil
}

func (m *Model) encodeNode(v any, n Node, path string) error {
	switch n.Kind {
	case NodeScalar:
		if err := m.buf.Append(n.View, v); err != nil {
			return conformanceErr(path, v, err)
		}
		return nil

	case NodeObject:
		if err := m.buf.AppendUint16(ObjectMarker); err != nil {
			return conformanceErr(path, v, err)
		}
		return m.encodeFields(v, n.Fields, path)

	case NodeSchema:
		return m.encodeSchemaValue(v, n.Schema, path)

	case NodeScalarArray, NodeSchemaArray:
		items, ok := asList(v)
		if !ok {
			return conformanceErr(path, v, fmt.Errorf("%w: want array", ErrShapeMismatch))
		}
		if len(items) > MaxArrayLen {
			return conformanceErr(path, v, fmt.Errorf("%w: %d", ErrArrayTooLong, len(items)))
		}
		if err := m.buf.AppendUint16(ArrayMarker); err != nil {
			return conformanceErr(path, v, err)
		}
		if err := m.buf.AppendUint16(uint16(len(items))); err != nil {
			return conformanceErr(path, v, err)
		}
		for i, item := range items {
			itemPath := indexPath(path, i)
			if n.Kind == NodeScalarArray {
				if err := m.buf.Append(n.View, item); err != nil {
					return conformanceErr(itemPath, item, err)
				}
				continue
			}
			if err := m.encodeSchemaValue(item, n.Schema, itemPath); err != nil {
				return err
			}
		}
		return nil
	}
	return conformanceErr(path, v, fmt.Errorf("%w: %s", ErrUnsupportedNode, n.Kind))
}

func (m *Model) encodeSchemaValue(v any, s *Schema, path string) error {
	if err := m.buf.AppendUint16(SchemaMarker); err != nil {
		return conformanceErr(path, v, err)
	}
	if err := m.buf.AppendUint8(s.id); err != nil {
		return conformanceErr(path, v, err)
	}
	return m.encodeFields(v, s.fields, path)
}

// asList reports whether v is a slice or array and returns its elements.
// Strings and byte strings are not lists.
func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []map[string]any:
		out := make([]any, len(l))
		for i, item := range l {
			out[i] = item
		}
		return out, true
	case nil, string:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// asObject returns v as a string-keyed map. Structs go through
// structToMap.
func asObject(v any) (map[string]any, error) {
	switch o := v.(type) {
	case map[string]any:
		return o, nil
	case Definition:
		return o, nil
	case nil:
		return nil, fmt.Errorf("%w: want object, got nil", ErrShapeMismatch)
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("%w: want object, got nil pointer", ErrShapeMismatch)
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: map keys must be strings", ErrShapeMismatch)
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return out, nil
	case reflect.Struct:
		return structToMap(rv.Interface())
	}
	return nil, fmt.Errorf("%w: want object", ErrShapeMismatch)
}

// ============================================================
// Decode
// ============================================================

// Decode reconstructs a value. Single payloads decode to map[string]any,
// arrays to []map[string]any.
func (m *Model) Decode(data []byte) (any, error) {
	return m.DecodeExpect(data, StructureAny)
}

// DecodeExpect is Decode with a required root structure. StructureAny
// accepts either.
func (m *Model) DecodeExpect(data []byte, expect Structure) (any, error) {
	v, err := m.decode(data, expect)
	if m.observer != nil {
		m.observer.ObserveDecode(m.schema, len(data), err)
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// DecodeSingle decodes a single-value payload.
func (m *Model) DecodeSingle(data []byte) (map[string]any, error) {
	v, err := m.DecodeExpect(data, StructureSingle)
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

// DecodeArray decodes an array payload.
func (m *Model) DecodeArray(data []byte) ([]map[string]any, error) {
	v, err := m.DecodeExpect(data, StructureArray)
	if err != nil {
		return nil, err
	}
	return v.([]map[string]any), nil
}

func (m *Model) decode(data []byte, expect Structure) (any, error) {
	if len(data) > m.buf.Cap() {
		return nil, decodeErr(-1, fmt.Errorf("%w: input %d bytes, capacity %d", ErrBufferOverflow, len(data), m.buf.Cap()))
	}
	if data == nil {
		data = []byte{}
	}
	m.buf.Refresh(data)

	tag, err := m.buf.ReadUint8()
	if err != nil {
		return nil, err
	}
	structure := Structure(tag)
	if structure != StructureSingle && structure != StructureArray {
		return nil, decodeErr(0, fmt.Errorf("%w: %d", ErrUnknownStructure, tag))
	}
	if expect != StructureAny && structure != expect {
		return nil, decodeErr(0, fmt.Errorf("%w: want %s, got %s", ErrStructureMismatch, expect, structure))
	}
	id, err := m.buf.ReadUint8()
	if err != nil {
		return nil, err
	}
	if id != m.schema.id {
		return nil, decodeErr(1, fmt.Errorf("%w: want %d, got %d", ErrSchemaMismatch, m.schema.id, id))
	}

	var out any
	if structure == StructureArray {
		count, err := m.buf.ReadUint16()
		if err != nil {
			return nil, err
		}
		items := make([]map[string]any, 0, m.capHint(int(count)))
		for i := 0; i < int(count); i++ {
			item, err := m.decodeFields(m.schema.fields)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		out = items
	} else {
		obj, err := m.decodeFields(m.schema.fields)
		if err != nil {
			return nil, err
		}
		out = obj
	}

	if rest := m.buf.Remaining(); rest > 0 {
		return nil, decodeErr(m.buf.Offset(), fmt.Errorf("%w: %d", ErrTrailingBytes, rest))
	}
	return out, nil
}

// capHint bounds a preallocation by the bytes left so a forged count cannot
// force a large allocation.
func (m *Model) capHint(count int) int {
	return min(count, m.buf.Remaining())
}

func (m *Model) decodeFields(fields []Field) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		v, err := m.decodeNode(f.Node)
		if err != nil {
			return nil, err
		}
		out[f.Name] = v
	}
	return out, nil
}

func (m *Model) decodeNode(n Node) (any, error) {
	switch n.Kind {
	case NodeScalar:
		return m.buf.Read(n.View)

	case NodeObject:
		if err := m.expectMarker(ObjectMarker, "object"); err != nil {
			return nil, err
		}
		return m.decodeFields(n.Fields)

	case NodeSchema:
		return m.decodeSchemaValue(n.Schema)

	case NodeScalarArray:
		count, err := m.arrayHeader()
		if err != nil {
			return nil, err
		}
		items := make([]any, 0, m.capHint(count))
		for i := 0; i < count; i++ {
			v, err := m.buf.Read(n.View)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil

	case NodeSchemaArray:
		count, err := m.arrayHeader()
		if err != nil {
			return nil, err
		}
		items := make([]map[string]any, 0, m.capHint(count))
		for i := 0; i < count; i++ {
			v, err := m.decodeSchemaValue(n.Schema)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil
	}
	return nil, decodeErr(m.buf.Offset(), fmt.Errorf("%w: %s", ErrUnsupportedNode, n.Kind))
}

func (m *Model) decodeSchemaValue(s *Schema) (map[string]any, error) {
	if err := m.expectMarker(SchemaMarker, "schema"); err != nil {
		return nil, err
	}
	off := m.buf.Offset()
	id, err := m.buf.ReadUint8()
	if err != nil {
		return nil, err
	}
	if id != s.id {
		return nil, decodeErr(off, fmt.Errorf("%w: want %d, got %d", ErrSchemaMismatch, s.id, id))
	}
	return m.decodeFields(s.fields)
}

func (m *Model) arrayHeader() (int, error) {
	if err := m.expectMarker(ArrayMarker, "array"); err != nil {
		return 0, err
	}
	count, err := m.buf.ReadUint16()
	return int(count), err
}

func (m *Model) expectMarker(want uint16, name string) error {
	off := m.buf.Offset()
	got, err := m.buf.ReadUint16()
	if err != nil {
		return err
	}
	if got != want {
		return decodeErr(off, fmt.Errorf("%w: want %s marker %d, got %d", ErrMissingMarker, name, want, got))
	}
	return nil
}

// ============================================================
// Peeking
// ============================================================

// PeekStructure returns the root structure tag of data without decoding.
func PeekStructure(data []byte) (Structure, error) {
	if len(data) < 1 {
		return 0, decodeErr(0, ErrTruncated)
	}
	s := Structure(data[0])
	if s != StructureSingle && s != StructureArray {
		return 0, decodeErr(0, fmt.Errorf("%w: %d", ErrUnknownStructure, data[0]))
	}
	return s, nil
}

// PeekSchemaID returns the root schema id of data without decoding.
func PeekSchemaID(data []byte) (uint8, error) {
	if _, err := PeekStructure(data); err != nil {
		return 0, err
	}
	if len(data) < 2 {
		return 0, decodeErr(1, ErrTruncated)
	}
	return data[1], nil
}
