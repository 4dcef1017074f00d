package guard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssured/drawbot/internal/value"
)

// roundTrip asserts FromValue(ToValue(v)) == v.
func roundTrip[T any](t *testing.T, g Guard[T], v T) {
	t.Helper()
	e, ok := g.ToValue(v)
	require.True(t, ok, "ToValue(%v) should validate", v)
	got, ok := g.FromValue(e, nil)
	require.True(t, ok, "FromValue(%v) should validate", e)
	assert.Equal(t, v, got)
}

func TestPrimitives_RoundTrip(t *testing.T) {
	roundTrip(t, String(), "")
	roundTrip(t, String(), "drawbot")
	roundTrip(t, Number(), 0.0)
	roundTrip(t, Number(), -12.5)
	roundTrip(t, Integer(), int64(42))
	roundTrip(t, Bool(), true)
	roundTrip(t, Bool(), false)
	roundTrip[any](t, Null(), nil)
}

func TestPrimitives_Reject(t *testing.T) {
	_, ok := String().FromValue(1.0, nil)
	assert.False(t, ok)
	_, ok = Number().FromValue("1", nil)
	assert.False(t, ok)
	_, ok = Bool().FromValue(nil, nil)
	assert.False(t, ok)
	_, ok = Null().FromValue("", nil)
	assert.False(t, ok)
	_, ok = Integer().FromValue(1.5, nil)
	assert.False(t, ok)
	_, ok = Null().ToValue("x")
	assert.False(t, ok)
}

func TestSymmetric_CustomTest(t *testing.T) {
	atLeastTwo := Symmetric(func(v any) (string, bool) {
		s, ok := v.(string)
		return s, ok && len(s) > 1
	})

	roundTrip(t, atLeastTwo, "ok")
	_, ok := atLeastTwo.ToValue("d")
	assert.False(t, ok)
	_, ok = atLeastTwo.FromValue("d", nil)
	assert.False(t, ok)
}

type penState string

func TestStringEnum(t *testing.T) {
	g := StringEnum[penState]("up", "down")

	roundTrip(t, g, penState("up"))
	_, ok := g.ToValue("sideways")
	assert.False(t, ok)
	_, ok = g.FromValue("sideways", nil)
	assert.False(t, ok)
	_, ok = g.FromValue(1.0, nil)
	assert.False(t, ok)
}

func TestNumberEnum(t *testing.T) {
	g := NumberEnum(1, 2, 4)

	roundTrip(t, g, 2)
	got, ok := g.FromValue(4.0, nil)
	require.True(t, ok)
	assert.Equal(t, 4, got)
	_, ok = g.FromValue(3.0, nil)
	assert.False(t, ok)
	_, ok = g.ToValue(3)
	assert.False(t, ok)
}

func TestISODate_FarEastOfUTC(t *testing.T) {
	local := time.Local
	time.Local = time.FixedZone("UTC+14", 14*60*60)
	t.Cleanup(func() { time.Local = local })

	g := ISODate()
	d, ok := g.FromValue("2024-03-10", nil)
	require.True(t, ok)
	e, ok := g.ToValue(d)
	require.True(t, ok)
	assert.Equal(t, "2024-03-10", e)
}

func TestISODate(t *testing.T) {
	g := ISODate()

	noon := time.Date(2021, time.March, 14, 12, 0, 0, 0, time.Local)
	roundTrip(t, g, noon)

	d, ok := g.FromValue("2020-02-29", nil)
	require.True(t, ok)
	assert.Equal(t, 12, d.Hour())
	assert.Equal(t, time.February, d.Month())

	for _, bad := range []any{"2020-2-29", "2020-02-29T00:00:00Z", 20200229.0, "2020-13-01"} {
		_, ok := g.FromValue(bad, nil)
		assert.False(t, ok, "%v", bad)
	}
	_, ok = g.ToValue(time.Time{})
	assert.False(t, ok)
}

func TestTuple(t *testing.T) {
	g := Tuple(Number(), Number())

	roundTrip(t, g, []float64{1, 2})
	_, ok := g.ToValue([]float64{1})
	assert.False(t, ok)
	_, ok = g.FromValue([]any{1.0, "2"}, nil)
	assert.False(t, ok)
	_, ok = g.FromValue([]any{1.0, 2.0, 3.0}, nil)
	assert.False(t, ok)
}

func TestTuple2AndTuple3(t *testing.T) {
	p := Tuple2(String(), Number())
	roundTrip(t, p, Pair[string, float64]{First: "x", Second: 3})

	e, ok := p.ToValue(Pair[string, float64]{First: "x", Second: 3})
	require.True(t, ok)
	assert.Equal(t, []any{"x", 3.0}, e)

	tr := Tuple3(String(), Number(), Bool())
	roundTrip(t, tr, Triple[string, float64, bool]{First: "pen", Second: 0.5, Third: true})
	_, ok = tr.FromValue([]any{"pen", 0.5}, nil)
	assert.False(t, ok)
	_, ok = tr.FromValue([]any{"pen", 0.5, "true"}, nil)
	assert.False(t, ok)
}

type point struct {
	X, Y  float64
	Label *string
}

func pointGuard() Guard[point] {
	return Object(
		F("x", Number(), func(p point) float64 { return p.X }, func(p *point, v float64) { p.X = v }),
		F("y", Number(), func(p point) float64 { return p.Y }, func(p *point, v float64) { p.Y = v }),
		F("label", Nullable(String()), func(p point) *string { return p.Label }, func(p *point, v *string) { p.Label = v }),
	)
}

func TestObject(t *testing.T) {
	g := pointGuard()
	label := "origin"

	roundTrip(t, g, point{X: 1, Y: 2})
	roundTrip(t, g, point{X: 0, Y: 0, Label: &label})

	e, ok := g.ToValue(point{X: 1, Y: 2})
	require.True(t, ok)
	assert.Equal(t, map[string]any{"x": 1.0, "y": 2.0, "label": nil}, e)

	// missing nullable field reads as nil
	got, ok := g.FromValue(map[string]any{"x": 1.0, "y": 2.0}, nil)
	require.True(t, ok)
	assert.Nil(t, got.Label)

	// fails closed
	_, ok = g.FromValue(map[string]any{"x": 1.0, "y": "2"}, nil)
	assert.False(t, ok)
	_, ok = g.FromValue([]any{1.0, 2.0}, nil)
	assert.False(t, ok)
}

func TestRecord(t *testing.T) {
	g := Record(Number())

	roundTrip(t, g, map[string]float64{"a": 1, "b": 2})
	roundTrip(t, g, map[string]float64{})
	_, ok := g.FromValue(map[string]any{"a": 1.0, "b": "x"}, nil)
	assert.False(t, ok)
	_, ok = g.ToValue(nil)
	assert.False(t, ok)
}

func TestNullable(t *testing.T) {
	g := Nullable(Number())
	n := 3.0

	roundTrip(t, g, &n)
	roundTrip(t, g, (*float64)(nil))
	_, ok := g.FromValue("x", nil)
	assert.False(t, ok)
}

func TestWithDefault(t *testing.T) {
	g := WithDefault(String(), "none")

	got, ok := g.FromValue(1.0, nil)
	require.True(t, ok)
	assert.Equal(t, "none", got)

	got, ok = g.FromValue("set", nil)
	require.True(t, ok)
	assert.Equal(t, "set", got)

	// the default only applies when reading
	_, ok = WithDefault(Integer(), 7).ToValue(1)
	assert.True(t, ok)
	_, ok = WithDefault(StringEnum("a"), "a").ToValue("b")
	assert.False(t, ok)
}

func TestAnyOf_FirstWins(t *testing.T) {
	type tagged struct{ kind string }

	first := Func(
		func(v tagged) (value.Entry, bool) { return "first", true },
		func(e value.Entry, _ Scope) (tagged, bool) {
			_, ok := e.(string)
			return tagged{kind: "first"}, ok
		},
	)
	second := Func(
		func(v tagged) (value.Entry, bool) { return "second", true },
		func(e value.Entry, _ Scope) (tagged, bool) { return tagged{kind: "second"}, true },
	)

	g := AnyOf(first, second)
	got, ok := g.FromValue("x", nil)
	require.True(t, ok)
	assert.Equal(t, "first", got.kind)

	got, ok = g.FromValue(1.0, nil)
	require.True(t, ok)
	assert.Equal(t, "second", got.kind)

	e, ok := g.ToValue(tagged{})
	require.True(t, ok)
	assert.Equal(t, "first", e)

	reversed := AnyOf(second, first)
	got, ok = reversed.FromValue("x", nil)
	require.True(t, ok)
	assert.Equal(t, "second", got.kind)
}

func TestAnyOf_NoneValidates(t *testing.T) {
	g := AnyOf(Guard[any](Null()), Func(
		func(v any) (value.Entry, bool) { return nil, false },
		func(e value.Entry, _ Scope) (any, bool) { return nil, false },
	))
	_, ok := g.FromValue("x", nil)
	assert.False(t, ok)
}
