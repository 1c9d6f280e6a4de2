package schemapack

import (
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// MaxSchemas is the catalog ceiling: ids are one byte and 255 is reserved.
const MaxSchemas = 255

// Registry is a catalog of schemas keyed by wire id. Ids are assigned in
// registration order starting at 0.
//
// A Registry is safe for concurrent use. Registered schemas live as long as
// the registry.
type Registry struct {
	mu            sync.RWMutex
	schemas       []*Schema
	byFingerprint map[[32]byte]*Schema
	byName        map[string]*Schema
	logger        *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger used for registration events.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		byFingerprint: make(map[[32]byte]*Schema),
		byName:        make(map[string]*Schema),
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SchemaOption configures a schema at definition time.
type SchemaOption func(*schemaConfig)

type schemaConfig struct {
	name string
}

// WithName registers the schema under a unique name.
func WithName(name string) SchemaOption {
	return func(c *schemaConfig) { c.name = name }
}

// Define validates def, fixes canonical field order, and registers the
// resulting schema. On error nothing is registered.
func (r *Registry) Define(def Definition, opts ...SchemaOption) (*Schema, error) {
	var cfg schemaConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if def == nil {
		return nil, definitionErr("", fmt.Errorf("%w: nil definition", ErrUnsupportedNode))
	}

	fields, err := compileFields(def, "", r)
	if err != nil {
		return nil, err
	}
	if err := checkAcyclic(fields); err != nil {
		return nil, err
	}

	canonical := canonicalText(fields)
	s := &Schema{
		name:        cfg.name,
		fields:      fields,
		canonical:   canonical,
		fingerprint: fingerprintOf(canonical),
		fixedSize:   fixedFieldsSize(fields),
		registry:    r,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.schemas) >= MaxSchemas {
		return nil, definitionErr("", fmt.Errorf("%w: %d schemas registered", ErrCatalogFull, len(r.schemas)))
	}
	if prev, ok := r.byFingerprint[s.fingerprint]; ok {
		return nil, definitionErr("", fmt.Errorf("%w: same layout as %s", ErrDuplicateSchema, prev.Label()))
	}
	if s.name != "" {
		if _, ok := r.byName[s.name]; ok {
			return nil, definitionErr("", fmt.Errorf("%w: %q", ErrDuplicateName, s.name))
		}
		r.byName[s.name] = s
	}
	s.id = uint8(len(r.schemas))
	r.schemas = append(r.schemas, s)
	r.byFingerprint[s.fingerprint] = s

	r.logger.Debug("schema registered",
		"id", s.id,
		"name", s.name,
		"fields", len(s.fields),
		"hash", hex.EncodeToString(s.fingerprint[:8]),
	)
	return s, nil
}

// MustDefine is like Define but panics on error. It is meant for
// package-level schema variables.
func (r *Registry) MustDefine(def Definition, opts ...SchemaOption) *Schema {
	s, err := r.Define(def, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Lookup returns the schema registered under id.
func (r *Registry) Lookup(id uint8) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.schemas) {
		return nil, false
	}
	return r.schemas[id], true
}

// LookupName returns the schema registered under name.
func (r *Registry) LookupName(name string) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byName[name]
	return s, ok
}

// Schemas returns all registered schemas in id order.
func (r *Registry) Schemas() []*Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Schema, len(r.schemas))
	copy(out, r.schemas)
	return out
}

// Len returns the number of registered schemas.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.schemas)
}
