package schemapack

import "sync"

// ModelPool hands out models bound to one schema, one per call. It is safe
// for concurrent use.
type ModelPool struct {
	schema *Schema
	pool   sync.Pool
}

// NewModelPool creates a pool whose models are built with opts.
func NewModelPool(s *Schema, opts ...ModelOption) *ModelPool {
	p := &ModelPool{schema: s}
	p.pool.New = func() any { return NewModel(s, opts...) }
	return p
}

// Schema returns the pooled schema.
func (p *ModelPool) Schema() *Schema { return p.schema }

// Get borrows a model. Return it with Put when done.
func (p *ModelPool) Get() *Model { return p.pool.Get().(*Model) }

// Put returns a model to the pool.
func (p *ModelPool) Put(m *Model) {
	if m == nil || m.schema != p.schema {
		return
	}
	p.pool.Put(m)
}

// Encode encodes v with a borrowed model.
func (p *ModelPool) Encode(v any) ([]byte, error) {
	m := p.Get()
	defer p.Put(m)
	return m.Encode(v)
}

// Decode decodes data with a borrowed model.
func (p *ModelPool) Decode(data []byte) (any, error) {
	m := p.Get()
	defer p.Put(m)
	return m.Decode(data)
}

// DecodeExpect decodes data with a borrowed model and a required structure.
func (p *ModelPool) DecodeExpect(data []byte, expect Structure) (any, error) {
	m := p.Get()
	defer p.Put(m)
	return m.DecodeExpect(data, expect)
}

// DecodeInto decodes data into out with a borrowed model.
func (p *ModelPool) DecodeInto(data []byte, out any) error {
	m := p.Get()
	defer p.Put(m)
	return m.DecodeInto(data, out)
}
