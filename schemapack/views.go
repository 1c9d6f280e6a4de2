package schemapack

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Kind identifies a primitive wire type.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt8
	KindUint8
	KindInt16
	KindUint16
	KindInt32
	KindUint32
	KindInt64
	KindUint64
	KindFloat32
	KindFloat64
	KindBool
	KindString
)

type kindClass uint8

const (
	classInt kindClass = iota
	classFloat
	classBool
	classString
)

// kindInfo is the fixed dispatch entry for one Kind.
type kindInfo struct {
	name   string
	width  int
	class  kindClass
	signed bool
	sig    int      // significant digits kept for floats
	min    *big.Int // integer range, nil for non-integers
	max    *big.Int
}

var kinds = [...]kindInfo{
	KindInvalid: {name: "invalid"},
	KindInt8:    {name: "int8", width: 1, class: classInt, signed: true, min: big.NewInt(math.MinInt8), max: big.NewInt(math.MaxInt8)},
	KindUint8:   {name: "uint8", width: 1, class: classInt, min: big.NewInt(0), max: big.NewInt(math.MaxUint8)},
	KindInt16:   {name: "int16", width: 2, class: classInt, signed: true, min: big.NewInt(math.MinInt16), max: big.NewInt(math.MaxInt16)},
	KindUint16:  {name: "uint16", width: 2, class: classInt, min: big.NewInt(0), max: big.NewInt(math.MaxUint16)},
	KindInt32:   {name: "int32", width: 4, class: classInt, signed: true, min: big.NewInt(math.MinInt32), max: big.NewInt(math.MaxInt32)},
	KindUint32:  {name: "uint32", width: 4, class: classInt, min: big.NewInt(0), max: big.NewInt(math.MaxUint32)},
	KindInt64:   {name: "int64", width: 8, class: classInt, signed: true, min: big.NewInt(math.MinInt64), max: big.NewInt(math.MaxInt64)},
	KindUint64:  {name: "uint64", width: 8, class: classInt, min: big.NewInt(0), max: new(big.Int).SetUint64(math.MaxUint64)},
	KindFloat32: {name: "float32", width: 4, class: classFloat, signed: true, sig: 7},
	KindFloat64: {name: "float64", width: 8, class: classFloat, signed: true, sig: 16},
	KindBool:    {name: "bool", width: 1, class: classBool},
	KindString:  {name: "string", width: 1, class: classString},
}

// String returns the kind name.
func (k Kind) String() string {
	if int(k) < len(kinds) {
		return kinds[k].name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

func (k Kind) info() kindInfo {
	if int(k) < len(kinds) {
		return kinds[k]
	}
	return kinds[KindInvalid]
}

// MaxDigits bounds the digits option: beyond it float64 carries no more
// decimal information.
const MaxDigits = 16

// View describes one primitive wire type. Views are comparable values; two
// views with the same kind and options are equal.
type View struct {
	kind      Kind
	digits    int
	hasDigits bool
	length    int
	hasLength bool
}

// ViewOption configures a View at definition time.
type ViewOption func(*View)

// WithDigits quantizes a numeric field to n decimal places on write and read.
func WithDigits(n int) ViewOption {
	return func(v *View) {
		v.hasDigits = true
		v.digits = n
	}
}

// WithLength truncates a string field to n characters on write.
func WithLength(n int) ViewOption {
	return func(v *View) {
		v.hasLength = true
		v.length = n
	}
}

func newView(k Kind, opts []ViewOption) View {
	v := View{kind: k}
	for _, opt := range opts {
		opt(&v)
	}
	return v
}

// Int8 is a signed 8-bit integer: [-128, 127].
func Int8(opts ...ViewOption) View { return newView(KindInt8, opts) }

// Uint8 is an unsigned 8-bit integer: [0, 255].
func Uint8(opts ...ViewOption) View { return newView(KindUint8, opts) }

// Int16 is a signed 16-bit integer: [-32768, 32767].
func Int16(opts ...ViewOption) View { return newView(KindInt16, opts) }

// Uint16 is an unsigned 16-bit integer: [0, 65535].
func Uint16(opts ...ViewOption) View { return newView(KindUint16, opts) }

// Int32 is a signed 32-bit integer.
func Int32(opts ...ViewOption) View { return newView(KindInt32, opts) }

// Uint32 is an unsigned 32-bit integer.
func Uint32(opts ...ViewOption) View { return newView(KindUint32, opts) }

// Int64 is a signed 64-bit integer, encoded exactly.
func Int64(opts ...ViewOption) View { return newView(KindInt64, opts) }

// Uint64 is an unsigned 64-bit integer, encoded exactly.
func Uint64(opts ...ViewOption) View { return newView(KindUint64, opts) }

// Float32 is a 32-bit float truncated to 7 significant digits. A few 7-digit
// decimals have no float32 that rounds back to them; those decode one unit
// off in the 7th digit, and decoding is stable from the second round trip.
func Float32(opts ...ViewOption) View { return newView(KindFloat32, opts) }

// Float64 is a 64-bit float truncated to 16 significant digits.
func Float64(opts ...ViewOption) View { return newView(KindFloat64, opts) }

// Bool is a single byte, 0 or 1.
func Bool(opts ...ViewOption) View { return newView(KindBool, opts) }

// String is delimiter-framed UTF-8.
func String(opts ...ViewOption) View { return newView(KindString, opts) }

// Kind returns the wire kind.
func (v View) Kind() Kind { return v.kind }

// Width returns the byte width of one value (one character for strings).
func (v View) Width() int { return v.kind.info().width }

// Digits returns the digits option, if set.
func (v View) Digits() (int, bool) { return v.digits, v.hasDigits }

// Length returns the length option, if set.
func (v View) Length() (int, bool) { return v.length, v.hasLength }

// IsString reports whether the view is a string.
func (v View) IsString() bool { return v.kind == KindString }

// String returns the canonical text of the view, e.g. "uint16(digits=4)".
func (v View) String() string {
	var sb strings.Builder
	sb.WriteString(v.kind.String())
	switch {
	case v.hasDigits:
		sb.WriteString("(digits=")
		sb.WriteString(strconv.Itoa(v.digits))
		sb.WriteString(")")
	case v.hasLength:
		sb.WriteString("(length=")
		sb.WriteString(strconv.Itoa(v.length))
		sb.WriteString(")")
	}
	return sb.String()
}

// validate checks option combinations. It runs once, at definition time.
func (v View) validate() error {
	info := v.kind.info()
	if v.kind == KindInvalid || info.width == 0 {
		return fmt.Errorf("%w: invalid view kind %s", ErrUnsupportedNode, v.kind)
	}
	if v.hasDigits {
		if info.class != classInt && info.class != classFloat {
			return fmt.Errorf("%w: digits option on %s", ErrUnsupportedNode, v.kind)
		}
		if v.digits < 0 || v.digits > MaxDigits {
			return fmt.Errorf("%w: digits %d outside [0, %d]", ErrUnsupportedNode, v.digits, MaxDigits)
		}
	}
	if v.hasLength {
		if info.class != classString {
			return fmt.Errorf("%w: length option on %s", ErrUnsupportedNode, v.kind)
		}
		if v.length < 0 {
			return fmt.Errorf("%w: negative length %d", ErrUnsupportedNode, v.length)
		}
	}
	return nil
}

// ParseView maps a type name to its View.
func ParseView(name string, opts ...ViewOption) (View, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "int8":
		return Int8(opts...), nil
	case "uint8":
		return Uint8(opts...), nil
	case "int16":
		return Int16(opts...), nil
	case "uint16":
		return Uint16(opts...), nil
	case "int32":
		return Int32(opts...), nil
	case "uint32":
		return Uint32(opts...), nil
	case "int64", "bigint64":
		return Int64(opts...), nil
	case "uint64", "biguint64":
		return Uint64(opts...), nil
	case "float32":
		return Float32(opts...), nil
	case "float64":
		return Float64(opts...), nil
	case "bool", "boolean":
		return Bool(opts...), nil
	case "string", "str":
		return String(opts...), nil
	default:
		return View{}, fmt.Errorf("%w: unknown view type %q", ErrUnsupportedNode, name)
	}
}
