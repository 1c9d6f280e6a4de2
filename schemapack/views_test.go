package schemapack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseView(t *testing.T) {
	tests := []struct {
		input string
		want  View
	}{
		{"int8", Int8()},
		{"uint8", Uint8()},
		{"int16", Int16()},
		{"uint16", Uint16()},
		{"int32", Int32()},
		{"uint32", Uint32()},
		{"int64", Int64()},
		{"bigint64", Int64()},
		{"uint64", Uint64()},
		{"float32", Float32()},
		{"float64", Float64()},
		{"bool", Bool()},
		{"boolean", Bool()},
		{"string", String()},
		{" Uint16 ", Uint16()},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseView(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseView("int128")
	assert.ErrorIs(t, err, ErrUnsupportedNode)
}

func TestViewEquality(t *testing.T) {
	assert.True(t, Uint16() == Uint16())
	assert.True(t, Uint16(WithDigits(2)) == Uint16(WithDigits(2)))
	assert.False(t, Uint16(WithDigits(2)) == Uint16(WithDigits(3)))
	assert.False(t, Uint16() == Int16())
	assert.False(t, String() == String(WithLength(4)))
}

func TestViewAccessors(t *testing.T) {
	v := Int16(WithDigits(2))
	assert.Equal(t, KindInt16, v.Kind())
	assert.Equal(t, 2, v.Width())
	d, ok := v.Digits()
	assert.True(t, ok)
	assert.Equal(t, 2, d)
	_, ok = v.Length()
	assert.False(t, ok)

	s := String(WithLength(8))
	n, ok := s.Length()
	assert.True(t, ok)
	assert.Equal(t, 8, n)
	assert.True(t, s.IsString())

	widths := map[View]int{
		Int8(): 1, Uint8(): 1, Int16(): 2, Uint16(): 2, Int32(): 4, Uint32(): 4,
		Int64(): 8, Uint64(): 8, Float32(): 4, Float64(): 8, Bool(): 1, String(): 1,
	}
	for view, want := range widths {
		assert.Equal(t, want, view.Width(), view.String())
	}
}

func TestViewString(t *testing.T) {
	assert.Equal(t, "uint16", Uint16().String())
	assert.Equal(t, "uint16(digits=4)", Uint16(WithDigits(4)).String())
	assert.Equal(t, "string(length=16)", String(WithLength(16)).String())
	assert.Equal(t, "float64", KindFloat64.String())
	assert.Equal(t, "kind(99)", Kind(99).String())
}

func TestViewValidate(t *testing.T) {
	tests := []struct {
		name    string
		view    View
		wantErr bool
	}{
		{"plain", Uint8(), false},
		{"digits_on_int", Int32(WithDigits(3)), false},
		{"digits_on_float", Float32(WithDigits(2)), false},
		{"digits_on_string", String(WithDigits(2)), true},
		{"digits_on_bool", Bool(WithDigits(1)), true},
		{"digits_too_large", Float64(WithDigits(MaxDigits + 1)), true},
		{"negative_digits", Int16(WithDigits(-1)), true},
		{"length_on_string", String(WithLength(3)), false},
		{"length_on_number", Uint8(WithLength(3)), true},
		{"negative_length", String(WithLength(-1)), true},
		{"zero_value", View{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.view.validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedNode)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
