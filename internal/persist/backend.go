package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ssured/drawbot/internal/value"
)

// UUIDKey is the backend key holding the store's instance id.
const UUIDKey = "UUID-KEY"

// Backend is a byte-oriented key/value store.
//
// Get reports whether the key exists. Implementations must be safe for
// concurrent use; the adapter never writes the same key from two goroutines
// at once.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte) error
	Close() error
}

// Record is the stored form of one node.
type Record map[string]value.Value

// Load reads the record stored for subject. A missing subject yields an
// empty record.
func Load(ctx context.Context, b Backend, subject value.Subject) (Record, error) {
	return loadKey(ctx, b, value.Key(subject))
}

func loadKey(ctx context.Context, b Backend, key string) (Record, error) {
	data, ok, err := b.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	rec := Record{}
	if !ok {
		return rec, nil
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

// Tuples returns the record as change tuples for subject, in key order.
func (r Record) Tuples(subject value.Subject) []value.ChangeTuple {
	props := make([]string, 0, len(r))
	for prop := range r {
		props = append(props, prop)
	}
	sort.Strings(props)

	out := make([]value.ChangeTuple, 0, len(props))
	for _, prop := range props {
		out = append(out, value.ChangeTuple{Subject: subject, Prop: prop, Value: r[prop]})
	}
	return out
}

// Merge applies v to prop when it wins the last-writer-wins comparison and
// reports whether the record changed.
func (r Record) Merge(prop string, v value.Value, epsilon float64) bool {
	cur, ok := r[prop]
	if ok {
		if v.State < cur.State {
			return false
		}
		if v.State == cur.State && value.Compare(v.Entry, cur.Entry, epsilon) <= 0 {
			return false
		}
	}
	r[prop] = v
	return true
}
