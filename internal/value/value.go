package value

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Value is a versioned entry: the state token of the write plus its payload.
type Value struct {
	State string
	Entry Entry
}

// V builds a Value from a state and a loosely typed entry.
// It panics when entry cannot be normalized; use Normalize for untrusted input.
func V(state string, entry any) Value {
	e, err := Normalize(entry)
	if err != nil {
		panic(fmt.Sprintf("value.V: %v", err))
	}
	return Value{State: state, Entry: e}
}

// Encoded returns the [state, entry] wire form.
func (v Value) Encoded() []any {
	return []any{v.State, EncodeEntry(v.Entry)}
}

// MarshalJSON encodes the value as [state, entry].
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Encoded())
}

// UnmarshalJSON decodes [state, entry].
func (v *Value) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("value: %w", err)
	}
	if len(parts) != 2 {
		return fmt.Errorf("value: want [state, entry], got %d elements", len(parts))
	}
	var state string
	if err := json.Unmarshal(parts[0], &state); err != nil {
		return fmt.Errorf("value state: %w", err)
	}
	raw, err := decodeRaw(parts[1])
	if err != nil {
		return fmt.Errorf("value entry: %w", err)
	}
	entry, err := DecodeEntry(raw)
	if err != nil {
		return fmt.Errorf("value entry: %w", err)
	}
	v.State = state
	v.Entry = entry
	return nil
}

func decodeRaw(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// ChangeTuple records one observed mutation of (Subject, Prop).
// Prev is the value it replaced, when there was one.
type ChangeTuple struct {
	Subject Subject
	Prop    string
	Value   Value
	Prev    *Value
}

// Strip returns the tuple without its previous value, which is how tuples
// travel between peers.
func (t ChangeTuple) Strip() ChangeTuple {
	return ChangeTuple{Subject: t.Subject, Prop: t.Prop, Value: t.Value}
}

// Fingerprint identifies (subject, prop, value) for duplicate detection.
func (t ChangeTuple) Fingerprint() string {
	data, err := MarshalCanonical([]any{subjectArray(t.Subject), t.Prop, t.Value.Encoded()})
	if err != nil {
		return fmt.Sprintf("%q|%q|%q|%v", Key(t.Subject), t.Prop, t.Value.State, t.Value.Entry)
	}
	return string(data)
}

func (t ChangeTuple) String() string {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Sprintf("%v %s %v", t.Subject, t.Prop, t.Value)
	}
	return string(data)
}

// MarshalJSON encodes [subject, prop, value] or [subject, prop, value, prev].
func (t ChangeTuple) MarshalJSON() ([]byte, error) {
	parts := []any{t.Subject, t.Prop, t.Value}
	if t.Prev != nil {
		parts = append(parts, *t.Prev)
	}
	return json.Marshal(parts)
}

// UnmarshalJSON decodes the array form written by MarshalJSON.
func (t *ChangeTuple) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("tuple: %w", err)
	}
	if len(parts) != 3 && len(parts) != 4 {
		return fmt.Errorf("tuple: want 3 or 4 elements, got %d", len(parts))
	}
	var out ChangeTuple
	if err := json.Unmarshal(parts[0], &out.Subject); err != nil {
		return fmt.Errorf("tuple subject: %w", err)
	}
	if err := json.Unmarshal(parts[1], &out.Prop); err != nil {
		return fmt.Errorf("tuple prop: %w", err)
	}
	if err := json.Unmarshal(parts[2], &out.Value); err != nil {
		return fmt.Errorf("tuple value: %w", err)
	}
	if len(parts) == 4 {
		var prev Value
		if err := json.Unmarshal(parts[3], &prev); err != nil {
			return fmt.Errorf("tuple previous value: %w", err)
		}
		out.Prev = &prev
	}
	*t = out
	return nil
}

func subjectArray(s Subject) []any {
	out := make([]any, len(s))
	for i, seg := range s {
		out[i] = seg
	}
	return out
}
