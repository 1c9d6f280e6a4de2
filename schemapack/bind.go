package schemapack

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// structToMap flattens a struct into a field map using mapstructure tags.
// Elements of struct slices keep their type; asObject converts each one when
// its node is reached.
func structToMap(v any) (map[string]any, error) {
	var out map[string]any
	if err := mapstructure.Decode(v, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
	}
	return out, nil
}

// DecodeInto decodes data and binds the result into out, which must be a
// pointer to a struct or map for single payloads, or to a slice for arrays.
// Fields are matched by `mapstructure` tag, falling back to the field name.
func (m *Model) DecodeInto(data []byte, out any) error {
	v, err := m.Decode(data)
	if err != nil {
		return err
	}
	return bind(v, out)
}

func bind(v any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: false,
		TagName:          "mapstructure",
	})
	if err != nil {
		return fmt.Errorf("schemapack: bind: %w", err)
	}
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("schemapack: bind: %w", err)
	}
	return nil
}
