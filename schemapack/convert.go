package schemapack

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
)

// integerOf stores v in dst as an exact integer. Fractional values are
// truncated toward zero.
func integerOf(v any, dst *big.Int) error {
	switch n := v.(type) {
	case int:
		dst.SetInt64(int64(n))
	case int8:
		dst.SetInt64(int64(n))
	case int16:
		dst.SetInt64(int64(n))
	case int32:
		dst.SetInt64(int64(n))
	case int64:
		dst.SetInt64(n)
	case uint:
		dst.SetUint64(uint64(n))
	case uint8:
		dst.SetUint64(uint64(n))
	case uint16:
		dst.SetUint64(uint64(n))
	case uint32:
		dst.SetUint64(uint64(n))
	case uint64:
		dst.SetUint64(n)
	case float32:
		return truncateFloat(float64(n), dst)
	case float64:
		return truncateFloat(n, dst)
	case *big.Int:
		if n == nil {
			return fmt.Errorf("%w: nil *big.Int", ErrUnsupportedValue)
		}
		dst.Set(n)
	case json.Number:
		if _, ok := dst.SetString(string(n), 10); ok {
			return nil
		}
		f, err := n.Float64()
		if err != nil {
			return fmt.Errorf("%w: %q is not a number", ErrUnsupportedValue, string(n))
		}
		return truncateFloat(f, dst)
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			dst.SetInt64(rv.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			dst.SetUint64(rv.Uint())
		case reflect.Float32, reflect.Float64:
			return truncateFloat(rv.Float(), dst)
		default:
			return fmt.Errorf("%w: want number", ErrUnsupportedValue)
		}
	}
	return nil
}

func truncateFloat(f float64, dst *big.Int) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: %v", ErrOutOfRange, f)
	}
	new(big.Float).SetFloat64(math.Trunc(f)).Int(dst)
	return nil
}

// floatOf converts any numeric value to float64.
func floatOf(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		f, err := strconv.ParseFloat(string(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrUnsupportedValue, string(n))
		}
		return f, nil
	case *big.Int:
		if n == nil {
			return 0, fmt.Errorf("%w: nil *big.Int", ErrUnsupportedValue)
		}
		f, _ := new(big.Float).SetInt(n).Float64()
		return f, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	}
	return 0, fmt.Errorf("%w: want number", ErrUnsupportedValue)
}

// roundSignificant keeps sig significant decimal digits of f.
func roundSignificant(f float64, sig int) float64 {
	if f == 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	r, err := strconv.ParseFloat(strconv.FormatFloat(f, 'g', sig, 64), 64)
	if err != nil {
		return f
	}
	return r
}

// roundDecimals keeps d decimal places of f.
func roundDecimals(f float64, d int) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	r, err := strconv.ParseFloat(strconv.FormatFloat(f, 'f', d, 64), 64)
	if err != nil {
		return f
	}
	return r
}

// scaleDecimal stores round(f * 10^d) in dst. The rounding happens on the
// decimal text so write and read agree digit for digit.
func scaleDecimal(f float64, d int, dst *big.Int) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: %v", ErrOutOfRange, f)
	}
	text := strings.Replace(strconv.FormatFloat(f, 'f', d, 64), ".", "", 1)
	if _, ok := dst.SetString(text, 10); !ok {
		return fmt.Errorf("%w: %v", ErrUnsupportedValue, f)
	}
	return nil
}

// unscaleDecimal reads an integer's decimal text as value / 10^d.
func unscaleDecimal(text string, d int) float64 {
	if d > 0 {
		neg := strings.HasPrefix(text, "-")
		text = strings.TrimPrefix(text, "-")
		if len(text) <= d {
			text = strings.Repeat("0", d-len(text)+1) + text
		}
		text = text[:len(text)-d] + "." + text[len(text)-d:]
		if neg {
			text = "-" + text
		}
	}
	f, _ := strconv.ParseFloat(text, 64)
	return f
}
