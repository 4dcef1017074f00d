package value

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
)

// Wire tags for top-level array entries.
const (
	tagRef   = 0
	tagArray = 1
)

// Entry is the payload of a Value: nil, bool, float64, string, []any,
// map[string]any or Ref. Use Normalize to convert loosely typed Go values.
type Entry = any

// Ref points at another node instead of embedding its state.
type Ref struct {
	Subject Subject
}

// RefTo builds a reference to the node addressed by segments.
func RefTo(segments ...string) Ref {
	return Ref{Subject: Subject(segments)}
}

// Normalize converts v into the canonical Entry representation: every numeric
// kind becomes float64, slices become []any and string-keyed maps become
// map[string]any. NaN and infinities are rejected.
func Normalize(v any) (Entry, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case bool, string:
		return val, nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, fmt.Errorf("non-finite number %v", val)
		}
		return val, nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %q: %w", val, err)
		}
		return f, nil
	case Ref:
		return Ref{Subject: val.Subject.Clone()}, nil
	case Subject:
		return Ref{Subject: val.Clone()}, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			n, err := Normalize(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			n, err := Normalize(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			out[k] = n
		}
		return out, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	case reflect.Float32:
		return Normalize(rv.Float())
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			n, err := Normalize(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("unsupported map key type %s", rv.Type().Key())
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			n, err := Normalize(iter.Value().Interface())
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", iter.Key().String(), err)
			}
			out[iter.Key().String()] = n
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported entry type %T", v)
}

// AsNumber reports whether e is a number.
func AsNumber(e Entry) (float64, bool) {
	f, ok := e.(float64)
	return f, ok
}

// AsRef reports whether e is a reference.
func AsRef(e Entry) (Ref, bool) {
	r, ok := e.(Ref)
	return r, ok
}

// EncodeEntry converts an entry into its JSON wire form: references become
// [0, subject], top-level arrays become [1, array].
func EncodeEntry(e Entry) any {
	switch val := e.(type) {
	case Ref:
		segments := make([]any, len(val.Subject))
		for i, seg := range val.Subject {
			segments[i] = seg
		}
		return []any{float64(tagRef), segments}
	case []any:
		return []any{float64(tagArray), val}
	default:
		return e
	}
}

// DecodeEntry inverts EncodeEntry for a value decoded by encoding/json.
func DecodeEntry(raw any) (Entry, error) {
	arr, ok := raw.([]any)
	if !ok {
		return Normalize(raw)
	}
	if len(arr) != 2 {
		return nil, fmt.Errorf("tagged entry: want 2 elements, got %d", len(arr))
	}
	tag, ok := arr[0].(float64)
	if !ok {
		return nil, fmt.Errorf("tagged entry: tag is %T", arr[0])
	}
	switch int(tag) {
	case tagRef:
		segments, ok := arr[1].([]any)
		if !ok {
			return nil, fmt.Errorf("reference: subject is %T", arr[1])
		}
		subject := make(Subject, len(segments))
		for i, seg := range segments {
			s, ok := seg.(string)
			if !ok {
				return nil, fmt.Errorf("reference: segment %d is %T", i, seg)
			}
			subject[i] = s
		}
		return Ref{Subject: subject}, nil
	case tagArray:
		items, ok := arr[1].([]any)
		if !ok {
			return nil, fmt.Errorf("array: payload is %T", arr[1])
		}
		return Normalize(items)
	}
	return nil, fmt.Errorf("tagged entry: unknown tag %v", tag)
}

// EqualEntries compares two entries by their canonical encoding.
func EqualEntries(a, b Entry) bool {
	ca, errA := MarshalCanonical(EncodeEntry(a))
	cb, errB := MarshalCanonical(EncodeEntry(b))
	if errA != nil || errB != nil {
		return false
	}
	return string(ca) == string(cb)
}
