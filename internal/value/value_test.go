package value

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	got, err := Normalize(map[string]any{
		"n":    3,
		"list": []int{1, 2},
		"deep": map[string]int{"x": 7},
		"ref":  S("a"),
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"n":    float64(3),
		"list": []any{float64(1), float64(2)},
		"deep": map[string]any{"x": float64(7)},
		"ref":  Ref{Subject: S("a")},
	}, got)

	_, err = Normalize(struct{}{})
	assert.Error(t, err)
}

func TestEntry_WireTags(t *testing.T) {
	assert.Equal(t, []any{float64(0), []any{"test"}}, EncodeEntry(RefTo("test")))
	assert.Equal(t, []any{float64(1), []any{"x"}}, EncodeEntry([]any{"x"}))
	assert.Equal(t, "plain", EncodeEntry("plain"))

	for _, e := range []Entry{RefTo("a", "b"), []any{"x", 1.5}, "s", 2.0, true, nil, map[string]any{"k": "v"}} {
		var raw any
		data, err := json.Marshal(EncodeEntry(e))
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &raw))
		got, err := DecodeEntry(raw)
		require.NoError(t, err)
		assert.Equal(t, e, got)
	}
}

func TestDecodeEntry_Malformed(t *testing.T) {
	for _, raw := range []any{
		[]any{float64(2), "x"},
		[]any{float64(0)},
		[]any{"0", []any{}},
		[]any{float64(0), []any{float64(1)}},
	} {
		_, err := DecodeEntry(raw)
		assert.Error(t, err, "%v", raw)
	}
}

func TestChangeTuple_JSON(t *testing.T) {
	prev := V("a", "data")
	tuple := ChangeTuple{
		Subject: S("test"),
		Prop:    "text",
		Value:   V("b", "something else"),
		Prev:    &prev,
	}

	data, err := json.Marshal(tuple)
	require.NoError(t, err)
	assert.JSONEq(t, `[["test"],"text",["b","something else"],["a","data"]]`, string(data))

	var decoded ChangeTuple
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, tuple, decoded)

	stripped, err := json.Marshal(tuple.Strip())
	require.NoError(t, err)
	assert.JSONEq(t, `[["test"],"text",["b","something else"]]`, string(stripped))
}

func TestChangeTuple_RefJSON(t *testing.T) {
	var decoded ChangeTuple
	require.NoError(t, json.Unmarshal([]byte(`[["test"],"response",["d",[0,["test"]]]]`), &decoded))
	assert.Equal(t, RefTo("test"), decoded.Value.Entry)
	assert.Nil(t, decoded.Prev)
}

func TestChangeTuple_Fingerprint(t *testing.T) {
	prev := V("a", 1)
	a := ChangeTuple{Subject: S("x"), Prop: "n", Value: V("b", 2)}
	b := ChangeTuple{Subject: S("x"), Prop: "n", Value: V("b", 2), Prev: &prev}
	c := ChangeTuple{Subject: S("x"), Prop: "n", Value: V("c", 2)}

	assert.Equal(t, a.Fingerprint(), b.Fingerprint(), "previous value is not part of the fingerprint")
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}
