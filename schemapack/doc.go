// Package schemapack implements a schema-driven binary object codec.
//
// A Schema is a declarative field layout. Values are written field by field
// in a canonical order, so field names never reach the wire; the decoder
// recovers them by walking the same Schema.
//
// # Defining Schemas
//
// Schemas live in an explicit Registry that assigns one-byte ids:
//
//	reg := schemapack.NewRegistry()
//	player := reg.MustDefine(schemapack.Definition{
//	    "id":   schemapack.Uint8(),
//	    "x":    schemapack.Int16(schemapack.WithDigits(2)),
//	    "name": schemapack.String(schemapack.WithLength(16)),
//	}, schemapack.WithName("player"))
//	snapshot := reg.MustDefine(schemapack.Definition{
//	    "time":    schemapack.Uint16(),
//	    "players": []*schemapack.Schema{player},
//	    "data":    schemapack.Definition{"list": []schemapack.View{schemapack.Uint8()}},
//	})
//
// # Wire Format
//
//	[0]      structure tag: 1 single, 2 array
//	[1]      root schema id
//	[2..3]   element count (arrays only)
//	...      fields in canonical order
//
// Per struct level the canonical order is: numeric and boolean scalars,
// scalar arrays, strings, string arrays, nested objects, nested schemas,
// schema arrays; ties broken by name. Multi-byte values are big-endian.
// Nested objects start with ObjectMarker, nested schemas with SchemaMarker
// and their id, arrays with ArrayMarker and a uint16 count. Strings are
// framed by StringDelimiter.
//
// # Numbers
//
// float32 and float64 keep 7 and 16 significant digits. WithDigits(n)
// quantizes to n decimal places; on integer kinds the value is stored as
// round(v * 10^n) and decodes to float64. 64-bit integers are exact.
//
// # Concurrency
//
// Registry and ModelPool are safe for concurrent use. A Model is not: use one
// per goroutine. Schemas are immutable and may be shared freely.
package schemapack
