package schemapack

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"
)

// DefaultBufferSize is the scratch capacity of a Buffer when none is given.
const DefaultBufferSize = 1 << 20

// StringDelimiter frames every encoded string.
const StringDelimiter byte = '"'

// Buffer is a cursor over a fixed-capacity byte region. Encoding writes into
// a private scratch region; decoding wraps caller-supplied bytes.
//
// A Buffer is not safe for concurrent use.
type Buffer struct {
	capacity int
	scratch  []byte
	data     []byte
	offset   int
	num      big.Int
}

// NewBuffer creates a buffer with the given capacity. A non-positive
// capacity selects DefaultBufferSize. The scratch region is allocated on
// first write.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &Buffer{capacity: capacity}
}

// Cap returns the fixed capacity.
func (b *Buffer) Cap() int { return b.capacity }

// Offset returns the cursor position.
func (b *Buffer) Offset() int { return b.offset }

// Len returns the size of the current region.
func (b *Buffer) Len() int { return len(b.data) }

// Remaining returns the bytes between the cursor and the end of the region.
func (b *Buffer) Remaining() int { return len(b.data) - b.offset }

// Refresh resets the cursor to zero. With data it wraps data for reading;
// with nil it selects the scratch region for writing.
func (b *Buffer) Refresh(data []byte) {
	b.offset = 0
	if data != nil {
		b.data = data
		return
	}
	if b.scratch == nil {
		b.scratch = make([]byte, b.capacity)
	}
	b.data = b.scratch
}

// Finalize returns a copy of the bytes written so far.
func (b *Buffer) Finalize() []byte {
	out := make([]byte, b.offset)
	copy(out, b.data[:b.offset])
	return out
}

func (b *Buffer) reserve(n int) (int, error) {
	if b.data == nil {
		b.Refresh(nil)
	}
	if b.offset+n > len(b.data) {
		return 0, fmt.Errorf("%w: need %d bytes at offset %d, capacity %d", ErrBufferOverflow, n, b.offset, len(b.data))
	}
	off := b.offset
	b.offset += n
	return off, nil
}

func (b *Buffer) putUint(bits uint64, width int) error {
	off, err := b.reserve(width)
	if err != nil {
		return err
	}
	switch width {
	case 1:
		b.data[off] = byte(bits)
	case 2:
		binary.BigEndian.PutUint16(b.data[off:], uint16(bits))
	case 4:
		binary.BigEndian.PutUint32(b.data[off:], uint32(bits))
	case 8:
		binary.BigEndian.PutUint64(b.data[off:], bits)
	}
	return nil
}

// AppendUint8 writes one raw byte.
func (b *Buffer) AppendUint8(x uint8) error { return b.putUint(uint64(x), 1) }

// AppendUint16 writes a big-endian uint16. Markers and counts use it.
func (b *Buffer) AppendUint16(x uint16) error { return b.putUint(uint64(x), 2) }

// Append writes value using the encoding of v and advances the cursor.
func (b *Buffer) Append(v View, value any) error {
	info := v.kind.info()
	switch info.class {
	case classInt:
		if info.width == 0 {
			break
		}
		return b.appendInt(v, info, value)
	case classFloat:
		return b.appendFloat(v, info, value)
	case classBool:
		return b.appendBool(value)
	case classString:
		return b.appendString(v, value)
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedNode, v.kind)
}

func (b *Buffer) appendInt(v View, info kindInfo, value any) error {
	n := &b.num
	if v.hasDigits {
		f, err := floatOf(value)
		if err != nil {
			return err
		}
		if err := scaleDecimal(f, v.digits, n); err != nil {
			return err
		}
	} else if err := integerOf(value, n); err != nil {
		return err
	}
	if n.Cmp(info.min) < 0 || n.Cmp(info.max) > 0 {
		return fmt.Errorf("%w: %s does not fit %s", ErrOutOfRange, n.String(), v)
	}
	var bits uint64
	if info.signed {
		bits = uint64(n.Int64())
	} else {
		bits = n.Uint64()
	}
	return b.putUint(bits, info.width)
}

func (b *Buffer) appendFloat(v View, info kindInfo, value any) error {
	f, err := floatOf(value)
	if err != nil {
		return err
	}
	if v.hasDigits {
		f = roundDecimals(f, v.digits)
	}
	f = roundSignificant(f, info.sig)
	if v.kind == KindFloat32 {
		if !math.IsInf(f, 0) && math.Abs(f) > math.MaxFloat32 {
			return fmt.Errorf("%w: %v does not fit float32", ErrOutOfRange, f)
		}
		return b.putUint(uint64(math.Float32bits(float32(f))), 4)
	}
	return b.putUint(math.Float64bits(f), 8)
}

func (b *Buffer) appendBool(value any) error {
	t, ok := value.(bool)
	if !ok {
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Bool {
			return fmt.Errorf("%w: want bool", ErrUnsupportedValue)
		}
		t = rv.Bool()
	}
	if t {
		return b.putUint(1, 1)
	}
	return b.putUint(0, 1)
}

func (b *Buffer) appendString(v View, value any) error {
	s, ok := value.(string)
	if !ok {
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.String {
			return fmt.Errorf("%w: want string", ErrUnsupportedValue)
		}
		s = rv.String()
	}
	if v.hasLength && utf8.RuneCountInString(s) > v.length {
		s = truncateRunes(s, v.length)
	}
	if strings.IndexByte(s, StringDelimiter) >= 0 {
		return ErrDelimiterInValue
	}
	off, err := b.reserve(len(s) + 2)
	if err != nil {
		return err
	}
	b.data[off] = StringDelimiter
	copy(b.data[off+1:], s)
	b.data[off+1+len(s)] = StringDelimiter
	return nil
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func (b *Buffer) getUint(width int) (uint64, error) {
	if b.offset+width > len(b.data) {
		return 0, decodeErr(b.offset, ErrTruncated)
	}
	p := b.data[b.offset:]
	b.offset += width
	switch width {
	case 1:
		return uint64(p[0]), nil
	case 2:
		return uint64(binary.BigEndian.Uint16(p)), nil
	case 4:
		return uint64(binary.BigEndian.Uint32(p)), nil
	default:
		return binary.BigEndian.Uint64(p), nil
	}
}

// ReadUint8 reads one raw byte.
func (b *Buffer) ReadUint8() (uint8, error) {
	x, err := b.getUint(1)
	return uint8(x), err
}

// ReadUint16 reads a big-endian uint16.
func (b *Buffer) ReadUint16() (uint16, error) {
	x, err := b.getUint(2)
	return uint16(x), err
}

// Read decodes one value of v at the cursor and advances past it.
func (b *Buffer) Read(v View) (any, error) {
	info := v.kind.info()
	switch info.class {
	case classInt:
		if info.width == 0 {
			break
		}
		return b.readInt(v, info)
	case classFloat:
		return b.readFloat(v)
	case classBool:
		start := b.offset
		x, err := b.getUint(1)
		if err != nil {
			return nil, err
		}
		if x > 1 {
			return nil, decodeErr(start, fmt.Errorf("%w: 0x%02x", ErrInvalidBool, x))
		}
		return x == 1, nil
	case classString:
		return b.readString()
	}
	return nil, decodeErr(b.offset, fmt.Errorf("%w: %s", ErrUnsupportedNode, v.kind))
}

// ReadAt decodes one value of v at offset without moving the cursor.
func (b *Buffer) ReadAt(v View, offset int) (any, error) {
	if offset < 0 || offset > len(b.data) {
		return nil, decodeErr(offset, ErrTruncated)
	}
	saved := b.offset
	b.offset = offset
	defer func() { b.offset = saved }()
	return b.Read(v)
}

func (b *Buffer) readInt(v View, info kindInfo) (any, error) {
	bits, err := b.getUint(info.width)
	if err != nil {
		return nil, err
	}
	shift := 64 - 8*info.width
	signed := int64(bits<<shift) >> shift
	if v.hasDigits {
		var text string
		if info.signed {
			text = strconv.FormatInt(signed, 10)
		} else {
			text = strconv.FormatUint(bits, 10)
		}
		return unscaleDecimal(text, v.digits), nil
	}
	switch v.kind {
	case KindInt8:
		return int8(signed), nil
	case KindUint8:
		return uint8(bits), nil
	case KindInt16:
		return int16(signed), nil
	case KindUint16:
		return uint16(bits), nil
	case KindInt32:
		return int32(signed), nil
	case KindUint32:
		return uint32(bits), nil
	case KindInt64:
		return signed, nil
	default:
		return bits, nil
	}
}

func (b *Buffer) readFloat(v View) (any, error) {
	var f float64
	if v.kind == KindFloat32 {
		bits, err := b.getUint(4)
		if err != nil {
			return nil, err
		}
		f = float64(math.Float32frombits(uint32(bits)))
	} else {
		bits, err := b.getUint(8)
		if err != nil {
			return nil, err
		}
		f = math.Float64frombits(bits)
	}
	f = roundSignificant(f, v.kind.info().sig)
	if v.hasDigits {
		f = roundDecimals(f, v.digits)
	}
	return f, nil
}

func (b *Buffer) readString() (any, error) {
	start := b.offset
	if start >= len(b.data) {
		return nil, decodeErr(start, ErrTruncated)
	}
	if b.data[start] != StringDelimiter {
		return nil, decodeErr(start, fmt.Errorf("%w: missing opening delimiter", ErrMalformedString))
	}
	end := bytes.IndexByte(b.data[start+1:], StringDelimiter)
	if end < 0 {
		return nil, decodeErr(start, fmt.Errorf("%w: missing closing delimiter", ErrMalformedString))
	}
	s := string(b.data[start+1 : start+1+end])
	b.offset = start + end + 2
	return s, nil
}
