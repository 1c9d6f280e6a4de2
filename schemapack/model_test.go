package schemapack

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wire builds expected byte layouts by hand.
type wire struct{ b []byte }

func (w *wire) u8(v uint8) *wire   { w.b = append(w.b, v); return w }
func (w *wire) i8(v int8) *wire    { return w.u8(uint8(v)) }
func (w *wire) u16(v uint16) *wire { w.b = binary.BigEndian.AppendUint16(w.b, v); return w }
func (w *wire) i16(v int16) *wire  { return w.u16(uint16(v)) }
func (w *wire) i32(v int32) *wire  { w.b = binary.BigEndian.AppendUint32(w.b, uint32(v)); return w }
func (w *wire) f32(v float32) *wire {
	w.b = binary.BigEndian.AppendUint32(w.b, math.Float32bits(v))
	return w
}
func (w *wire) str(s string) *wire {
	w.b = append(w.b, '"')
	w.b = append(w.b, s...)
	w.b = append(w.b, '"')
	return w
}

type stateFixture struct {
	nested *Schema
	state  *Schema
	value  map[string]any
}

func newStateFixture(t *testing.T) stateFixture {
	t.Helper()
	reg := NewRegistry()
	nested, err := reg.Define(Definition{"y": Uint8(), "x": Uint8()}, WithName("nested"))
	require.NoError(t, err)
	state, err := reg.Define(Definition{
		"e": []*Schema{nested},
		"b": String(),
		"g": []View{Uint16()},
		"a": Int8(),
		"f": nested,
		"d": Definition{
			"two": Float32(),
			"one": Int16(),
			"three": Definition{
				"how":   Int32(),
				"about": Int16(),
			},
		},
		"h": []View{String()},
		"i": Float32(),
	}, WithName("state"))
	require.NoError(t, err)

	return stateFixture{
		nested: nested,
		state:  state,
		value: map[string]any{
			"b": "wow",
			"e": []any{
				map[string]any{"x": 1, "y": 1},
				map[string]any{"x": 12, "y": 12},
				map[string]any{"y": 123, "x": 123},
			},
			"g": []any{1, 2, 3},
			"a": 2,
			"f": map[string]any{"y": 3, "x": 3},
			"d": map[string]any{
				"two": 4.269,
				"one": 4,
				"three": map[string]any{
					"how":   -11234,
					"about": -234,
				},
			},
			"h": []any{"some", "string", "of variable", "lengths", "1"},
			"i": 3.1415,
		},
	}
}

// ============================================================
// Wire Layout
// ============================================================

func TestEncodeFlattensInCanonicalOrder(t *testing.T) {
	fx := newStateFixture(t)
	out, err := NewModel(fx.state).Encode(fx.value)
	require.NoError(t, err)

	w := new(wire)
	w.u8(uint8(StructureSingle)).u8(fx.state.ID())
	w.i8(2)                                        // a
	w.f32(3.1415)                                  // i
	w.u16(ArrayMarker).u16(3).u16(1).u16(2).u16(3) // g
	w.str("wow")                                   // b
	w.u16(ArrayMarker).u16(5)                      // h
	w.str("some").str("string").str("of variable").str("lengths").str("1")
	w.u16(ObjectMarker) // d
	w.i16(4)            // d.one
	w.f32(4.269)        // d.two
	w.u16(ObjectMarker) // d.three
	w.i16(-234)         // d.three.about
	w.i32(-11234)       // d.three.how

	w.u16(SchemaMarker).u8(fx.nested.ID()).u8(3).u8(3) // f
	w.u16(ArrayMarker).u16(3)                          // e
	for _, v := range []uint8{1, 12, 123} {
		w.u16(SchemaMarker).u8(fx.nested.ID()).u8(v).u8(v)
	}

	assert.Equal(t, w.b, out)
}

func TestEncodeArrayPreamble(t *testing.T) {
	reg := NewRegistry()
	m, err := NewModelFromDefinition(reg, Definition{"id": Uint8(), "x": Uint16()})
	require.NoError(t, err)

	single, err := m.Encode(map[string]any{"id": 0, "x": 1.2345})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 0, 0, 1}, single)

	array, err := m.Encode([]map[string]any{
		{"id": 0, "x": 0.1234},
		{"id": 1, "x": 1.2345},
	})
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 0, 0, 2, 0, 0, 0, 1, 0, 1}, array)

	id, err := PeekSchemaID(array)
	require.NoError(t, err)
	assert.Equal(t, m.ID(), id)

	s, err := PeekStructure(single)
	require.NoError(t, err)
	assert.Equal(t, StructureSingle, s)
	s, err = PeekStructure(array)
	require.NoError(t, err)
	assert.Equal(t, StructureArray, s)
}

// ============================================================
// Round Trips
// ============================================================

func TestDecodeRoundTrip(t *testing.T) {
	fx := newStateFixture(t)
	m := NewModel(fx.state)
	out, err := m.Encode(fx.value)
	require.NoError(t, err)

	got, err := m.DecodeSingle(out)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"a": int8(2),
		"i": 3.1415,
		"g": []any{uint16(1), uint16(2), uint16(3)},
		"b": "wow",
		"h": []any{"some", "string", "of variable", "lengths", "1"},
		"d": map[string]any{
			"one": int16(4),
			"two": 4.269,
			"three": map[string]any{
				"about": int16(-234),
				"how":   int32(-11234),
			},
		},
		"f": map[string]any{"x": uint8(3), "y": uint8(3)},
		"e": []map[string]any{
			{"x": uint8(1), "y": uint8(1)},
			{"x": uint8(12), "y": uint8(12)},
			{"x": uint8(123), "y": uint8(123)},
		},
	}, got)
}

func TestIdentityLaw(t *testing.T) {
	fx := newStateFixture(t)
	m := NewModel(fx.state)

	first, err := m.Encode(fx.value)
	require.NoError(t, err)
	decoded, err := m.Decode(first)
	require.NoError(t, err)
	second, err := m.Encode(decoded)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	list, err := m.Encode([]any{fx.value, fx.value})
	require.NoError(t, err)
	decodedList, err := m.Decode(list)
	require.NoError(t, err)
	again, err := m.Encode(decodedList)
	require.NoError(t, err)
	assert.Equal(t, list, again)
}

func TestDecodeArray(t *testing.T) {
	reg := NewRegistry()
	m, err := NewModelFromDefinition(reg, Definition{"x": Int32(), "name": String()})
	require.NoError(t, err)

	out, err := m.Encode([]any{
		map[string]any{"x": -1, "name": "a"},
		map[string]any{"x": 7, "name": "b"},
	})
	require.NoError(t, err)

	got, err := m.DecodeArray(out)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{
		{"x": int32(-1), "name": "a"},
		{"x": int32(7), "name": "b"},
	}, got)
}

func TestDigitsThroughModel(t *testing.T) {
	reg := NewRegistry()
	m, err := NewModelFromDefinition(reg, Definition{
		"id": Uint8(),
		"x":  Uint16(WithDigits(4)),
		"y":  Int16(WithDigits(2)),
	})
	require.NoError(t, err)

	out, err := m.Encode(map[string]any{"id": 0, "x": 5.211427545, "y": -12.00315})
	require.NoError(t, err)
	got, err := m.DecodeSingle(out)
	require.NoError(t, err)
	assert.Equal(t, 5.2114, got["x"])
	assert.Equal(t, -12.0, got["y"])
	assert.Equal(t, uint8(0), got["id"])
}

func TestFloatTruncationLaw(t *testing.T) {
	reg := NewRegistry()
	m, err := NewModelFromDefinition(reg, Definition{"x": Float32(), "y": Float64()})
	require.NoError(t, err)

	for _, f := range []float64{1.1234567, 1234567.1234567, -0.000123456789, 42, 0} {
		out, err := m.Encode(map[string]any{"x": f, "y": f})
		require.NoError(t, err)
		got, err := m.DecodeSingle(out)
		require.NoError(t, err)
		assert.Equal(t, roundSignificant(f, 7), got["x"], "float32 %v", f)
		assert.Equal(t, roundSignificant(f, 16), got["y"], "float64 %v", f)
	}
}

// float32 holds a little over 7 significant digits, so a few 7-digit
// decimals have no float32 that rounds back to them. Those read back one
// unit off in the last digit, and a second round trip is stable.
func TestFloat32NearestRepresentable(t *testing.T) {
	reg := NewRegistry()
	m, err := NewModelFromDefinition(reg, Definition{"x": Float32()})
	require.NoError(t, err)

	roundTrip := func(f float64) ([]byte, float64) {
		t.Helper()
		out, err := m.Encode(map[string]any{"x": f})
		require.NoError(t, err)
		got, err := m.DecodeSingle(out)
		require.NoError(t, err)
		return out, got["x"].(float64)
	}

	first, got := roundTrip(0.0009971157963708384)
	assert.Equal(t, 0.0009971159, got)
	second, again := roundTrip(got)
	assert.Equal(t, first, second)
	assert.Equal(t, got, again)

	for i := 1; i <= 2000; i++ {
		f := float64(i) * 0.000123456789 * math.Pow(10, float64(i%13-6))
		want := roundSignificant(f, 7)
		_, got := roundTrip(f)
		assert.InEpsilon(t, want, got, 2e-6, "float32 %v", f)
		_, again := roundTrip(got)
		assert.Equal(t, got, again, "float32 %v", f)
	}
}

func TestEmptyCollections(t *testing.T) {
	reg := NewRegistry()
	player := reg.MustDefine(Definition{"id": Uint8()})
	m := NewModel(reg.MustDefine(Definition{
		"time": Uint16(),
		"data": Definition{
			"list":    []View{Uint8()},
			"names":   []View{String()},
			"players": []*Schema{player},
			"empty":   Definition{},
		},
	}))

	out, err := m.Encode(map[string]any{
		"time": 1,
		"data": map[string]any{
			"list":    []any{},
			"names":   []string{},
			"players": []map[string]any{},
			"empty":   map[string]any{},
		},
	})
	require.NoError(t, err)

	got, err := m.DecodeSingle(out)
	require.NoError(t, err)
	data := got["data"].(map[string]any)
	assert.Equal(t, []any{}, data["list"])
	assert.Equal(t, []any{}, data["names"])
	assert.Equal(t, []map[string]any{}, data["players"])
	assert.Equal(t, map[string]any{}, data["empty"])

	root, err := m.Encode([]any{})
	require.NoError(t, err)
	assert.Equal(t, []byte{2, m.ID(), 0, 0}, root)
	items, err := m.DecodeArray(root)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSizeDeterminism(t *testing.T) {
	reg := NewRegistry()
	m, err := NewModelFromDefinition(reg, Definition{
		"n":    Uint32(),
		"f":    Float64(),
		"name": String(),
		"list": []View{Int16()},
	})
	require.NoError(t, err)

	a, err := m.Encode(map[string]any{"n": 1, "f": 0.5, "name": "abc", "list": []int{1, 2}})
	require.NoError(t, err)
	b, err := m.Encode(map[string]any{"n": 4000000000, "f": -1e300, "name": "xyz", "list": []int{-32768, 32767}})
	require.NoError(t, err)
	assert.Equal(t, len(a), len(b))
}

func TestEncodeAcceptedShapes(t *testing.T) {
	type point struct {
		X int16 `mapstructure:"x"`
		Y int16 `mapstructure:"y"`
	}
	reg := NewRegistry()
	m, err := NewModelFromDefinition(reg, Definition{"x": Int16(), "y": Int16()})
	require.NoError(t, err)

	want, err := m.Encode(map[string]any{"x": 1, "y": 2})
	require.NoError(t, err)

	for name, v := range map[string]any{
		"typed_map":  map[string]int{"x": 1, "y": 2},
		"definition": Definition{"x": 1, "y": 2},
		"struct":     point{X: 1, Y: 2},
		"pointer":    &point{X: 1, Y: 2},
	} {
		t.Run(name, func(t *testing.T) {
			got, err := m.Encode(v)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	list, err := m.Encode([]point{{1, 2}, {3, 4}})
	require.NoError(t, err)
	assert.Equal(t, []byte{2, m.ID(), 0, 2, 0, 1, 0, 2, 0, 3, 0, 4}, list)
}

// ============================================================
// Conformance Errors
// ============================================================

func TestEncodeConformanceErrors(t *testing.T) {
	fx := newStateFixture(t)
	m := NewModel(fx.state)

	mutate := func(f func(v map[string]any)) map[string]any {
		v := newStateFixture(t).value
		f(v)
		return v
	}

	tests := []struct {
		name  string
		value any
		want  error
		path  string
	}{
		{
			name:  "missing_top_level",
			value: mutate(func(v map[string]any) { delete(v, "a") }),
			want:  ErrMissingField,
			path:  "a",
		},
		{
			name: "missing_nested",
			value: mutate(func(v map[string]any) {
				delete(v["d"].(map[string]any)["three"].(map[string]any), "how")
			}),
			want: ErrMissingField,
			path: "d.three.how",
		},
		{
			name: "out_of_range_in_schema_array",
			value: mutate(func(v map[string]any) {
				v["e"].([]any)[1].(map[string]any)["x"] = 300
			}),
			want: ErrOutOfRange,
			path: "e[1].x",
		},
		{
			name:  "array_expected",
			value: mutate(func(v map[string]any) { v["g"] = 5 }),
			want:  ErrShapeMismatch,
			path:  "g",
		},
		{
			name:  "object_expected",
			value: mutate(func(v map[string]any) { v["d"] = "nope" }),
			want:  ErrShapeMismatch,
			path:  "d",
		},
		{
			name:  "schema_value_nil",
			value: mutate(func(v map[string]any) { v["f"] = nil }),
			want:  ErrShapeMismatch,
			path:  "f",
		},
		{
			name:  "scalar_array_element",
			value: mutate(func(v map[string]any) { v["g"] = []any{1, "two"} }),
			want:  ErrUnsupportedValue,
			path:  "g[1]",
		},
		{
			name:  "delimiter",
			value: mutate(func(v map[string]any) { v["h"] = []any{`a"b`} }),
			want:  ErrDelimiterInValue,
			path:  "h[0]",
		},
		{
			name:  "array_too_long",
			value: mutate(func(v map[string]any) { v["g"] = make([]uint16, MaxArrayLen+1) }),
			want:  ErrArrayTooLong,
			path:  "g",
		},
		{
			name:  "root_not_object",
			value: 42,
			want:  ErrShapeMismatch,
			path:  "",
		},
		{
			name:  "root_array_element",
			value: []any{"x"},
			want:  ErrShapeMismatch,
			path:  "[0]",
		},
		{
			name:  "non_string_keys",
			value: map[int]any{1: 2},
			want:  ErrShapeMismatch,
			path:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := m.Encode(tt.value)
			require.ErrorIs(t, err, tt.want)
			assert.Nil(t, out)

			var ce *ConformanceError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.path, ce.Path)
		})
	}

	// The model is reusable after a failure.
	_, err := m.Encode(fx.value)
	assert.NoError(t, err)
}

func TestEncodeBufferOverflow(t *testing.T) {
	reg := NewRegistry()
	s := reg.MustDefine(Definition{"name": String()})
	m := NewModel(s, WithBufferSize(8))

	_, err := m.Encode(map[string]any{"name": "abc"})
	require.NoError(t, err)

	_, err = m.Encode(map[string]any{"name": "abcdefgh"})
	var ce *ConformanceError
	require.True(t, errors.As(err, &ce))
	assert.ErrorIs(t, err, ErrBufferOverflow)
	assert.Equal(t, "name", ce.Path)
}

// ============================================================
// Decode Errors
// ============================================================

func TestDecodeErrors(t *testing.T) {
	fx := newStateFixture(t)
	m := NewModel(fx.state)
	good, err := m.Encode(fx.value)
	require.NoError(t, err)

	other := NewModel(fx.nested)
	foreign, err := other.Encode(map[string]any{"x": 1, "y": 2})
	require.NoError(t, err)

	corrupt := func(at int, b byte) []byte {
		out := append([]byte(nil), good...)
		out[at] = b
		return out
	}
	// Offset of the object marker for d: preamble 2, a 1, i 4, g 10, b 5,
	// h 4 + 39 string bytes.
	dMarker := 2 + 1 + 4 + 10 + 5 + 4 + 39
	// f: d spans marker 2, one 2, two 4, marker 2, about 2, how 4.
	fID := dMarker + 16 + 2

	tests := []struct {
		name   string
		data   []byte
		expect Structure
		want   error
	}{
		{"empty", []byte{}, StructureAny, ErrTruncated},
		{"nil", nil, StructureAny, ErrTruncated},
		{"unknown_structure", corrupt(0, 9), StructureAny, ErrUnknownStructure},
		{"structure_mismatch", good, StructureArray, ErrStructureMismatch},
		{"root_schema_mismatch", foreign, StructureAny, ErrSchemaMismatch},
		{"truncated", good[:len(good)-1], StructureAny, ErrTruncated},
		{"truncated_preamble", good[:1], StructureAny, ErrTruncated},
		{"trailing", append(append([]byte(nil), good...), 0), StructureAny, ErrTrailingBytes},
		{"missing_object_marker", corrupt(dMarker, 0), StructureAny, ErrMissingMarker},
		{"nested_schema_mismatch", corrupt(fID, 99), StructureAny, ErrSchemaMismatch},
		{"bad_string", corrupt(2+1+4+10, 'x'), StructureAny, ErrMalformedString},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := m.DecodeExpect(tt.data, tt.expect)
			require.ErrorIs(t, err, tt.want)
			assert.Nil(t, v)

			var de *DecodeError
			assert.True(t, errors.As(err, &de))
		})
	}

	v, err := m.DecodeExpect(good, StructureSingle)
	require.NoError(t, err)
	assert.NotNil(t, v)
}

func TestDecodeRejectsOversizedInput(t *testing.T) {
	reg := NewRegistry()
	m := NewModel(reg.MustDefine(Definition{"list": []View{Uint8()}}), WithBufferSize(16))

	big := NewModel(m.Schema())
	data, err := big.Encode(map[string]any{"list": make([]int, 32)})
	require.NoError(t, err)

	_, err = m.Decode(data)
	assert.ErrorIs(t, err, ErrBufferOverflow)
}

func TestPeekErrors(t *testing.T) {
	_, err := PeekSchemaID(nil)
	assert.ErrorIs(t, err, ErrTruncated)
	_, err = PeekSchemaID([]byte{1})
	assert.ErrorIs(t, err, ErrTruncated)
	_, err = PeekSchemaID([]byte{7, 0})
	assert.ErrorIs(t, err, ErrUnknownStructure)
	_, err = PeekStructure([]byte{0})
	assert.ErrorIs(t, err, ErrUnknownStructure)
}

// ============================================================
// Observer
// ============================================================

type recordingObserver struct {
	encodes, decodes int
	bytes            int
	errs             int
}

func (o *recordingObserver) ObserveEncode(_ *Schema, n int, err error) {
	o.encodes++
	o.bytes += n
	if err != nil {
		o.errs++
	}
}

func (o *recordingObserver) ObserveDecode(_ *Schema, n int, err error) {
	o.decodes++
	o.bytes += n
	if err != nil {
		o.errs++
	}
}

func TestObserver(t *testing.T) {
	reg := NewRegistry()
	obs := &recordingObserver{}
	m := NewModel(reg.MustDefine(Definition{"x": Uint8()}), WithObserver(obs))

	out, err := m.Encode(map[string]any{"x": 1})
	require.NoError(t, err)
	_, err = m.Decode(out)
	require.NoError(t, err)
	_, err = m.Encode(map[string]any{"x": 1000})
	require.Error(t, err)

	assert.Equal(t, 2, obs.encodes)
	assert.Equal(t, 1, obs.decodes)
	assert.Equal(t, 6, obs.bytes)
	assert.Equal(t, 1, obs.errs)
}
