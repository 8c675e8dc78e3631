package signing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"reflect"

	"github.com/shopspring/decimal"
)

// Reserved parameter names.
const (
	ItemListKey  = "itemList"
	TimestampKey = "timestamp"
	SignKey      = "sign"
)

// ParameterSet is a flat request parameter mapping. Iteration order carries no
// meaning; the canonical form is always produced from sorted keys.
type ParameterSet map[string]any

// Clone returns a shallow copy.
func (p ParameterSet) Clone() ParameterSet {
	out := make(ParameterSet, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Normalize converts param into a fresh ParameterSet without touching the
// caller's value.
//
// Maps keep their scalar values as-is so numbers render exactly as supplied.
// Records (structs and pointers to structs) take a JSON round trip, so field
// names come from their json tags. Nested maps, slices and structs inside a
// mapping are flattened to plain JSON values the same way.
func Normalize(param any) (ParameterSet, error) {
	switch p := param.(type) {
	case nil:
		return nil, serializationErr("nil", fmt.Errorf("no parameters"))
	case ParameterSet:
		return normalizeMap(p)
	case map[string]any:
		return normalizeMap(p)
	case map[string]string:
		out := make(ParameterSet, len(p))
		for k, v := range p {
			out[k] = v
		}
		return out, nil
	case url.Values:
		out := make(ParameterSet, len(p))
		for k, vs := range p {
			if len(vs) == 0 {
				out[k] = nil
				continue
			}
			out[k] = vs[0]
		}
		return out, nil
	}

	rv := reflect.ValueOf(param)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, serializationErr(fmt.Sprintf("%T", param), fmt.Errorf("nil pointer"))
		}
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return normalizeMap(m)
	}

	v, err := roundTrip(param)
	if err != nil {
		return nil, serializationErr(fmt.Sprintf("%T", param), err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, serializationErr(fmt.Sprintf("%T", param), fmt.Errorf("not a JSON object"))
	}
	return ParameterSet(obj), nil
}

func normalizeMap(m map[string]any) (ParameterSet, error) {
	out := make(ParameterSet, len(m))
	for k, v := range m {
		nv, err := normalizeValue(v)
		if err != nil {
			return nil, serializationErr(fmt.Sprintf("field %q", k), err)
		}
		out[k] = nv
	}
	return out, nil
}

// normalizeValue keeps scalars in their native form and flattens everything
// else into plain JSON values.
func normalizeValue(v any) (any, error) {
	switch t := v.(type) {
	case nil, string, bool, json.Number, decimal.Decimal,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return v, nil
	case float32:
		return v, checkFinite(float64(t))
	case float64:
		return v, checkFinite(t)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return normalizeValue(rv.Elem().Interface())
	case reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return nil, nil
		}
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), nil
	case reflect.Float32:
		return float32(rv.Float()), checkFinite(rv.Float())
	case reflect.Float64:
		return rv.Float(), checkFinite(rv.Float())
	}
	return roundTrip(v)
}

// NaN and infinities have no JSON form, so they could never reach the gateway.
func checkFinite(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("non-finite float %v", f)
	}
	return nil
}

func roundTrip(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
