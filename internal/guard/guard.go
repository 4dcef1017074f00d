package guard

import (
	"regexp"
	"time"

	"github.com/ssured/drawbot/internal/value"
)

// Scope resolves references while decoding entries.
type Scope interface {
	Resolve(ref value.Ref) (any, bool)
}

// Guard converts between T and a wire entry.
//
// ToValue returns the entry to store for v, or false when v does not validate.
// FromValue returns the typed value for e, or false when e does not validate.
// Symmetric guards satisfy FromValue(ToValue(v)) == v on their valid domain.
type Guard[T any] interface {
	ToValue(v T) (value.Entry, bool)
	FromValue(e value.Entry, scope Scope) (T, bool)
}

type funcGuard[T any] struct {
	to   func(T) (value.Entry, bool)
	from func(value.Entry, Scope) (T, bool)
}

func (g funcGuard[T]) ToValue(v T) (value.Entry, bool) { return g.to(v) }

func (g funcGuard[T]) FromValue(e value.Entry, scope Scope) (T, bool) { return g.from(e, scope) }

// Func builds a guard from two conversion functions.
func Func[T any](to func(T) (value.Entry, bool), from func(value.Entry, Scope) (T, bool)) Guard[T] {
	return funcGuard[T]{to: to, from: from}
}

// Symmetric builds a guard that applies the same test in both directions.
// The accepted value is normalized before it is stored.
func Symmetric[T any](test func(v any) (T, bool)) Guard[T] {
	return funcGuard[T]{
		to: func(v T) (value.Entry, bool) {
			t, ok := test(v)
			if !ok {
				return nil, false
			}
			e, err := value.Normalize(t)
			if err != nil {
				return nil, false
			}
			return e, true
		},
		from: func(e value.Entry, _ Scope) (T, bool) {
			return test(e)
		},
	}
}

// Null accepts only nil.
func Null() Guard[any] {
	return Symmetric(func(v any) (any, bool) {
		return nil, v == nil
	})
}

// String accepts any string.
func String() Guard[string] {
	return Symmetric(func(v any) (string, bool) {
		s, ok := v.(string)
		return s, ok
	})
}

// Number accepts any finite number.
func Number() Guard[float64] {
	return Symmetric(func(v any) (float64, bool) {
		f, ok := v.(float64)
		return f, ok
	})
}

// Integer accepts numbers without a fractional part.
func Integer() Guard[int64] {
	return funcGuard[int64]{
		to: func(v int64) (value.Entry, bool) {
			return float64(v), true
		},
		from: func(e value.Entry, _ Scope) (int64, bool) {
			f, ok := e.(float64)
			if !ok || f != float64(int64(f)) {
				return 0, false
			}
			return int64(f), true
		},
	}
}

// Bool accepts true and false.
func Bool() Guard[bool] {
	return Symmetric(func(v any) (bool, bool) {
		b, ok := v.(bool)
		return b, ok
	})
}

// StringEnum accepts strings that are one of items.
func StringEnum[T ~string](items ...T) Guard[T] {
	member := func(s string) (T, bool) {
		for _, item := range items {
			if string(item) == s {
				return item, true
			}
		}
		var zero T
		return zero, false
	}
	return funcGuard[T]{
		to: func(v T) (value.Entry, bool) {
			if _, ok := member(string(v)); !ok {
				return nil, false
			}
			return string(v), true
		},
		from: func(e value.Entry, _ Scope) (T, bool) {
			s, ok := e.(string)
			if !ok {
				var zero T
				return zero, false
			}
			return member(s)
		},
	}
}

// Numeric is the set of types NumberEnum can hold.
type Numeric interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// NumberEnum accepts numbers that are one of items.
func NumberEnum[T Numeric](items ...T) Guard[T] {
	member := func(f float64) (T, bool) {
		for _, item := range items {
			if float64(item) == f {
				return item, true
			}
		}
		var zero T
		return zero, false
	}
	return funcGuard[T]{
		to: func(v T) (value.Entry, bool) {
			if _, ok := member(float64(v)); !ok {
				return nil, false
			}
			return float64(v), true
		},
		from: func(e value.Entry, _ Scope) (T, bool) {
			f, ok := e.(float64)
			if !ok {
				var zero T
				return zero, false
			}
			return member(f)
		},
	}
}

var isoDatePattern = regexp.MustCompile(`^\d\d\d\d-\d\d-\d\d$`)

// ISODate stores the local calendar date of a time as YYYY-MM-DD and reads
// it back at local noon.
func ISODate() Guard[time.Time] {
	return funcGuard[time.Time]{
		to: func(t time.Time) (value.Entry, bool) {
			if t.IsZero() {
				return nil, false
			}
			return t.In(time.Local).Format(time.DateOnly), true
		},
		from: func(e value.Entry, _ Scope) (time.Time, bool) {
			s, ok := e.(string)
			if !ok || !isoDatePattern.MatchString(s) {
				return time.Time{}, false
			}
			d, err := time.ParseInLocation(time.DateOnly, s, time.Local)
			if err != nil {
				return time.Time{}, false
			}
			return time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, time.Local), true
		},
	}
}

// Nullable extends g with nil: a nil pointer is stored as null and null reads
// back as a nil pointer.
func Nullable[T any](g Guard[T]) Guard[*T] {
	return funcGuard[*T]{
		to: func(v *T) (value.Entry, bool) {
			if v == nil {
				return nil, true
			}
			return g.ToValue(*v)
		},
		from: func(e value.Entry, scope Scope) (*T, bool) {
			if e == nil {
				return nil, true
			}
			v, ok := g.FromValue(e, scope)
			if !ok {
				return nil, false
			}
			return &v, true
		},
	}
}

// WithDefault substitutes def when g does not validate on read.
// Writes are unchanged: an invalid value is still rejected.
func WithDefault[T any](g Guard[T], def T) Guard[T] {
	return funcGuard[T]{
		to: g.ToValue,
		from: func(e value.Entry, scope Scope) (T, bool) {
			if v, ok := g.FromValue(e, scope); ok {
				return v, true
			}
			return def, true
		},
	}
}

// AnyOf tries guards in order; the first that validates wins.
func AnyOf[T any](guards ...Guard[T]) Guard[T] {
	return funcGuard[T]{
		to: func(v T) (value.Entry, bool) {
			for _, g := range guards {
				if e, ok := g.ToValue(v); ok {
					return e, true
				}
			}
			return nil, false
		},
		from: func(e value.Entry, scope Scope) (T, bool) {
			for _, g := range guards {
				if v, ok := g.FromValue(e, scope); ok {
					return v, true
				}
			}
			var zero T
			return zero, false
		},
	}
}
