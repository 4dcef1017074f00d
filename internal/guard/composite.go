package guard

import "github.com/ssured/drawbot/internal/value"

// Tuple accepts arrays of exactly len(guards) elements, validated positionally.
func Tuple[T any](guards ...Guard[T]) Guard[[]T] {
	return funcGuard[[]T]{
		to: func(v []T) (value.Entry, bool) {
			if len(v) != len(guards) {
				return nil, false
			}
			out := make([]any, len(v))
			for i, item := range v {
				e, ok := guards[i].ToValue(item)
				if !ok {
					return nil, false
				}
				out[i] = e
			}
			return out, true
		},
		from: func(e value.Entry, scope Scope) ([]T, bool) {
			arr, ok := e.([]any)
			if !ok || len(arr) != len(guards) {
				return nil, false
			}
			out := make([]T, len(arr))
			for i, item := range arr {
				v, ok := guards[i].FromValue(item, scope)
				if !ok {
					return nil, false
				}
				out[i] = v
			}
			return out, true
		},
	}
}

// Pair is the typed form of a two-element tuple.
type Pair[A, B any] struct {
	First  A
	Second B
}

// Tuple2 accepts two-element arrays of heterogeneous types.
func Tuple2[A, B any](ga Guard[A], gb Guard[B]) Guard[Pair[A, B]] {
	return funcGuard[Pair[A, B]]{
		to: func(v Pair[A, B]) (value.Entry, bool) {
			a, ok := ga.ToValue(v.First)
			if !ok {
				return nil, false
			}
			b, ok := gb.ToValue(v.Second)
			if !ok {
				return nil, false
			}
			return []any{a, b}, true
		},
		from: func(e value.Entry, scope Scope) (Pair[A, B], bool) {
			arr, ok := e.([]any)
			if !ok || len(arr) != 2 {
				return Pair[A, B]{}, false
			}
			a, ok := ga.FromValue(arr[0], scope)
			if !ok {
				return Pair[A, B]{}, false
			}
			b, ok := gb.FromValue(arr[1], scope)
			if !ok {
				return Pair[A, B]{}, false
			}
			return Pair[A, B]{First: a, Second: b}, true
		},
	}
}

// Triple is the typed form of a three-element tuple.
type Triple[A, B, C any] struct {
	First  A
	Second B
	Third  C
}

// Tuple3 accepts three-element arrays of heterogeneous types.
func Tuple3[A, B, C any](ga Guard[A], gb Guard[B], gc Guard[C]) Guard[Triple[A, B, C]] {
	pair := Tuple2(ga, gb)
	return funcGuard[Triple[A, B, C]]{
		to: func(v Triple[A, B, C]) (value.Entry, bool) {
			ab, ok := pair.ToValue(Pair[A, B]{First: v.First, Second: v.Second})
			if !ok {
				return nil, false
			}
			c, ok := gc.ToValue(v.Third)
			if !ok {
				return nil, false
			}
			return append(ab.([]any), c), true
		},
		from: func(e value.Entry, scope Scope) (Triple[A, B, C], bool) {
			arr, ok := e.([]any)
			if !ok || len(arr) != 3 {
				return Triple[A, B, C]{}, false
			}
			ab, ok := pair.FromValue(arr[:2], scope)
			if !ok {
				return Triple[A, B, C]{}, false
			}
			c, ok := gc.FromValue(arr[2], scope)
			if !ok {
				return Triple[A, B, C]{}, false
			}
			return Triple[A, B, C]{First: ab.First, Second: ab.Second, Third: c}, true
		},
	}
}

// Field binds one named property of T to a guard.
type Field[T any] struct {
	Name   string
	encode func(T) (value.Entry, bool)
	decode func(*T, value.Entry, Scope) bool
}

// F declares a field of T stored under name and validated by g.
func F[T, V any](name string, g Guard[V], get func(T) V, set func(*T, V)) Field[T] {
	return Field[T]{
		Name: name,
		encode: func(t T) (value.Entry, bool) {
			return g.ToValue(get(t))
		},
		decode: func(t *T, e value.Entry, scope Scope) bool {
			v, ok := g.FromValue(e, scope)
			if !ok {
				return false
			}
			set(t, v)
			return true
		},
	}
}

// Object accepts objects whose named fields all validate. It fails closed:
// one invalid field rejects the whole object. A missing field is presented to
// its guard as nil.
func Object[T any](fields ...Field[T]) Guard[T] {
	return funcGuard[T]{
		to: func(v T) (value.Entry, bool) {
			out := make(map[string]any, len(fields))
			for _, f := range fields {
				e, ok := f.encode(v)
				if !ok {
					return nil, false
				}
				out[f.Name] = e
			}
			return out, true
		},
		from: func(e value.Entry, scope Scope) (T, bool) {
			var out T
			obj, ok := e.(map[string]any)
			if !ok {
				return out, false
			}
			for _, f := range fields {
				if !f.decode(&out, obj[f.Name], scope) {
					var zero T
					return zero, false
				}
			}
			return out, true
		},
	}
}

// Record accepts string-keyed objects whose values all validate against g.
func Record[T any](g Guard[T]) Guard[map[string]T] {
	return funcGuard[map[string]T]{
		to: func(v map[string]T) (value.Entry, bool) {
			if v == nil {
				return nil, false
			}
			out := make(map[string]any, len(v))
			for k, item := range v {
				e, ok := g.ToValue(item)
				if !ok {
					return nil, false
				}
				out[k] = e
			}
			return out, true
		},
		from: func(e value.Entry, scope Scope) (map[string]T, bool) {
			obj, ok := e.(map[string]any)
			if !ok {
				return nil, false
			}
			out := make(map[string]T, len(obj))
			for k, item := range obj {
				v, ok := g.FromValue(item, scope)
				if !ok {
					return nil, false
				}
				out[k] = v
			}
			return out, true
		},
	}
}
