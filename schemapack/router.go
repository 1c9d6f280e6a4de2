package schemapack

import (
	"fmt"
	"sync"
)

// Router decodes payloads of several schemas by peeking the root schema id.
// It is safe for concurrent use.
type Router struct {
	mu    sync.RWMutex
	pools map[uint8]*ModelPool
	opts  []ModelOption
}

// NewRouter creates a router whose models are built with opts.
func NewRouter(opts ...ModelOption) *Router {
	return &Router{pools: make(map[uint8]*ModelPool), opts: opts}
}

// Register routes payloads carrying s.ID() to s. Registering a second
// schema with the same id replaces the first.
func (r *Router) Register(schemas ...*Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range schemas {
		r.pools[s.id] = NewModelPool(s, r.opts...)
	}
}

// RegisterAll routes every schema currently in reg.
func (r *Router) RegisterAll(reg *Registry) {
	r.Register(reg.Schemas()...)
}

// Pool returns the model pool for id.
func (r *Router) Pool(id uint8) (*ModelPool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pools[id]
	return p, ok
}

// Decode decodes data with the model registered for its root schema id.
func (r *Router) Decode(data []byte) (*Schema, any, error) {
	id, err := PeekSchemaID(data)
	if err != nil {
		return nil, nil, err
	}
	p, ok := r.Pool(id)
	if !ok {
		return nil, nil, decodeErr(1, fmt.Errorf("%w: %d", ErrUnknownSchema, id))
	}
	v, err := p.Decode(data)
	if err != nil {
		return p.schema, nil, err
	}
	return p.schema, v, nil
}
