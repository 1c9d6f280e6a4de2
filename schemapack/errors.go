package schemapack

import (
	"errors"
	"fmt"
)

// Definition errors
var (
	ErrUnsupportedNode   = errors.New("unsupported schema node")
	ErrEmptyFieldName    = errors.New("empty field name")
	ErrForeignSchema     = errors.New("schema belongs to another registry")
	ErrCircularReference = errors.New("circular schema reference")
	ErrDuplicateSchema   = errors.New("identical schema already registered")
	ErrDuplicateName     = errors.New("schema name already registered")
	ErrCatalogFull       = errors.New("schema catalog full")
)

// Conformance errors
var (
	ErrShapeMismatch    = errors.New("value does not match schema node")
	ErrMissingField     = errors.New("missing field")
	ErrUnsupportedValue = errors.New("unsupported value type")
	ErrOutOfRange       = errors.New("value out of range")
	ErrDelimiterInValue = errors.New("string contains delimiter byte")
	ErrArrayTooLong     = errors.New("array exceeds 65535 elements")
	ErrBufferOverflow   = errors.New("buffer capacity exceeded")
)

// Decode errors
var (
	ErrStructureMismatch = errors.New("structure tag mismatch")
	ErrUnknownStructure  = errors.New("unknown structure tag")
	ErrSchemaMismatch    = errors.New("schema id mismatch")
	ErrMissingMarker     = errors.New("missing structural marker")
	ErrMalformedString   = errors.New("malformed string")
	ErrInvalidBool       = errors.New("invalid boolean byte")
	ErrTruncated         = errors.New("unexpected end of buffer")
	ErrTrailingBytes     = errors.New("trailing bytes after payload")
	ErrUnknownSchema     = errors.New("no model for schema id")
)

// DefinitionError is returned when a schema definition cannot be built or
// registered. Path is the dotted field path of the offending node, if any.
type DefinitionError struct {
	Path string
	Err  error
}

func (e *DefinitionError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("schemapack: definition %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("schemapack: definition: %v", e.Err)
}

func (e *DefinitionError) Unwrap() error { return e.Err }

// ConformanceError is returned by Encode when a value does not fit the
// schema node it is paired with.
type ConformanceError struct {
	Path  string
	Value any
	Err   error
}

func (e *ConformanceError) Error() string {
	path := e.Path
	if path == "" {
		path = "$"
	}
	if e.Value == nil {
		return fmt.Sprintf("schemapack: encode %s: %v", path, e.Err)
	}
	return fmt.Sprintf("schemapack: encode %s: %v (got %T)", path, e.Err, e.Value)
}

func (e *ConformanceError) Unwrap() error { return e.Err }

// DecodeError is returned when a buffer cannot be decoded. Offset is the
// cursor position where the problem was detected, or -1.
type DecodeError struct {
	Offset int
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("schemapack: decode: %v at offset %d", e.Err, e.Offset)
	}
	return fmt.Sprintf("schemapack: decode: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func definitionErr(path string, err error) error {
	return &DefinitionError{Path: path, Err: err}
}

func conformanceErr(path string, value any, err error) error {
	return &ConformanceError{Path: path, Value: value, Err: err}
}

func decodeErr(offset int, err error) error {
	return &DecodeError{Offset: offset, Err: err}
}

// joinPath appends a field name to a dotted path.
func joinPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}

func indexPath(base string, i int) string {
	return fmt.Sprintf("%s[%d]", base, i)
}
